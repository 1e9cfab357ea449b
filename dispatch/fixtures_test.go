package dispatch_test

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wastecollect/waste-dispatch-api/dispatch"
	"github.com/wastecollect/waste-dispatch-api/dispatch/dispatchtest"
	"github.com/wastecollect/waste-dispatch-api/models"
)

type engine struct {
	store    *dispatchtest.Store
	notifier *dispatchtest.Notifier
	matcher  *dispatch.Matcher
	requests *dispatch.RequestService
	missions *dispatch.MissionService
	auto     *dispatch.AutoAssigner
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	store := dispatchtest.NewStore()
	notifier := &dispatchtest.Notifier{}
	stores := dispatch.Stores{
		Requests:   store,
		Missions:   store,
		Collectors: store,
		Vehicles:   store,
	}
	matcher := dispatch.NewMatcher(store, time.Hour)
	requests := dispatch.NewRequestService(stores, matcher, notifier, nil, dispatch.RequestOptions{
		DefaultPoint: models.NewPoint(9.7043, 4.0511),
		RadiusMeters: 50000,
	})
	return &engine{
		store:    store,
		notifier: notifier,
		matcher:  matcher,
		requests: requests,
		missions: dispatch.NewMissionService(stores, notifier, nil),
		auto:     dispatch.NewAutoAssigner(stores, requests, 10),
	}
}

func oid(hex string) primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		panic(err)
	}
	return id
}

// collector returns a collector at lon/lat whose position is age old
func collector(lon, lat float64, onDuty bool, age time.Duration, org *primitive.ObjectID) models.User {
	p := models.NewPoint(lon, lat)
	seen := time.Now().Add(-age)
	return models.User{
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
}

func pendingRequest(lon, lat float64, org *primitive.ObjectID) models.CollectionRequest {
	now := time.Now()
	return models.CollectionRequest{
		ID:              primitive.NewObjectID(),
		RequesterID:     primitive.NewObjectID(),
		OrganizationID:  org,
		WasteCategory:   "plastic",
		EstimatedWeight: 12,
		Location:        models.NewPoint(lon, lat),
		Urgency:         models.UrgencyMedium,
		Status:          models.RequestPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func adminActor() models.Actor {
	return models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin}
}

func orgAdmin(org primitive.ObjectID) models.Actor {
	return models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleOrgAdmin, OrganizationID: org.Hex()}
}

func collectorActor(u models.User) models.Actor {
	a := models.Actor{ID: u.ID.Hex(), Role: models.RoleCollector}
	if u.Details.OrganizationID != nil {
		a.OrganizationID = u.Details.OrganizationID.Hex()
	}
	return a
}

func requesterActor(r models.CollectionRequest) models.Actor {
	return models.Actor{ID: r.RequesterID.Hex(), Role: models.RoleUser}
}
