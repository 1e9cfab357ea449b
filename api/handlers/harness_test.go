package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wastecollect/waste-dispatch-api/api"
	"github.com/wastecollect/waste-dispatch-api/api/handlers"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/dispatch"
	"github.com/wastecollect/waste-dispatch-api/dispatch/dispatchtest"
	"github.com/wastecollect/waste-dispatch-api/models"
)

const jwtSecret = "handler-test-secret"

type harness struct {
	store    *dispatchtest.Store
	notifier *dispatchtest.Notifier
	app      *handlers.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conf := config.Default()
	conf.JWTSecret = jwtSecret
	conf.CloudinaryAPISecret = "cloudinary-secret"
	conf.CloudinaryUploadPreset = "proofs"

	store := dispatchtest.NewStore()
	notifier := &dispatchtest.Notifier{}
	backends := handlers.Backends{
		Stores: dispatch.Stores{
			Requests:   store,
			Missions:   store,
			Collectors: store,
			Vehicles:   store,
		},
		Duty:          store,
		Organizations: store,
	}
	app := &handlers.App{Config: *conf, Services: handlers.NewServices(conf, backends, notifier, nil, nil)}
	app.Router = app.New()
	t.Cleanup(app.Services.Hub.Close)
	return &harness{store: store, notifier: notifier, app: app}
}

func token(t *testing.T, actor models.Actor) string {
	t.Helper()
	tok, err := api.SignActorToken(jwtSecret, actor, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends body as JSON on behalf of actor. A nil actor sends no credentials.
func (h *harness) do(t *testing.T, method, path string, actor *models.Actor, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *actor))
	}
	rr := httptest.NewRecorder()
	h.app.Router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) models.MessageError {
	t.Helper()
	var body models.ErrorMessageResponse
	decode(t, rr, &body)
	return body.Response
}

func (h *harness) addCollector(lon, lat float64, onDuty bool, org *primitive.ObjectID) models.User {
	p := models.NewPoint(lon, lat)
	seen := time.Now()
	u := models.User{
		ID: primitive.NewObjectID(),
		Details: models.UserDetails{
			Name:           "collector",
			Role:           "collector",
			OrganizationID: org,
			OnDuty:         onDuty,
			Location:       &p,
			LastLocationAt: &seen,
		},
	}
	h.store.AddUser(u)
	return u
}

func asCollector(u models.User) *models.Actor {
	a := models.Actor{ID: u.ID.Hex(), Role: models.RoleCollector}
	if u.Details.OrganizationID != nil {
		a.OrganizationID = u.Details.OrganizationID.Hex()
	}
	return &a
}

func asUser() *models.Actor {
	return &models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}
}

func asAdmin() *models.Actor {
	return &models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin}
}

func asOrgAdmin(org primitive.ObjectID) *models.Actor {
	return &models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleOrgAdmin, OrganizationID: org.Hex()}
}
