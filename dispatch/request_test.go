package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wastecollect/waste-dispatch-api/dispatch"
	"github.com/wastecollect/waste-dispatch-api/models"
)

func newRequestInput(lon, lat float64) dispatch.NewRequest {
	p := models.NewPoint(lon, lat)
	return dispatch.NewRequest{
		WasteCategory:   "organic",
		EstimatedWeight: 25,
		Address:         "Rue Joss, Douala",
		Location:        &p,
		Urgency:         models.UrgencyHigh,
	}
}

func TestRequestService_CreateMatchesNearbyCollector(t *testing.T) {
	e := newEngine(t)
	org := primitive.NewObjectID()
	c := collector(9.70, 4.05, true, time.Minute, &org)
	e.store.AddUser(c)
	requester := models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}
	in := newRequestInput(9.705, 4.052)
	in.OrganizationID = &org

	req, err := e.requests.Create(context.Background(), requester, in)

	require.NoError(t, err)
	assert.Equal(t, models.RequestScheduled, req.Status)
	require.NotNil(t, req.AssignedCollector)
	assert.Equal(t, c.ID, *req.AssignedCollector)
	assert.NotNil(t, req.ScheduledAt)

	stored, ok := e.store.Request(req.ID)
	require.True(t, ok)
	assert.Equal(t, models.RequestScheduled, stored.Status)

	collectorMsgs := e.notifier.MessagesFor(c.ID.Hex())
	require.Len(t, collectorMsgs, 1)
	assert.Equal(t, models.MessageNewRequest, collectorMsgs[0].Type)
	requesterMsgs := e.notifier.MessagesFor(requester.ID)
	require.Len(t, requesterMsgs, 1)
	assert.Equal(t, models.MessageCollectorAssigned, requesterMsgs[0].Type)
	events := e.notifier.Events(models.EventRequestAssigned)
	require.Len(t, events, 1)
	assert.Equal(t, org.Hex(), events[0].OrganizationID)
}

func TestRequestService_CreateStaysPendingWithoutCollector(t *testing.T) {
	e := newEngine(t)

	req, err := e.requests.Create(context.Background(), models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}, newRequestInput(9.705, 4.052))

	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Nil(t, req.AssignedCollector)
	assert.Empty(t, e.notifier.Published())
}

func TestRequestService_CreateUsesDefaultPoint(t *testing.T) {
	e := newEngine(t)
	in := newRequestInput(0, 0)
	in.Location = nil
	in.Urgency = ""

	req, err := e.requests.Create(context.Background(), models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}, in)

	require.NoError(t, err)
	assert.Equal(t, 9.7043, req.Location.Longitude())
	assert.Equal(t, 4.0511, req.Location.Latitude())
	assert.Equal(t, models.UrgencyMedium, req.Urgency)
}

func TestRequestService_CreateValidation(t *testing.T) {
	e := newEngine(t)
	requester := models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}
	bad := models.NewPoint(9.7, 120)

	tests := []struct {
		name  string
		actor models.Actor
		edit  func(*dispatch.NewRequest)
		field string
	}{
		{"missing category", requester, func(in *dispatch.NewRequest) { in.WasteCategory = " " }, "wasteCategory"},
		{"negative weight", requester, func(in *dispatch.NewRequest) { in.EstimatedWeight = -1 }, "estimatedWeight"},
		{"unknown urgency", requester, func(in *dispatch.NewRequest) { in.Urgency = "whenever" }, "urgency"},
		{"latitude out of range", requester, func(in *dispatch.NewRequest) { in.Location = &bad }, "location"},
		{"requester without id", models.Actor{ID: "not-an-id"}, func(in *dispatch.NewRequest) {}, "requesterId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newRequestInput(9.705, 4.052)
			tt.edit(&in)
			_, err := e.requests.Create(context.Background(), tt.actor, in)
			var verr *dispatch.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func scheduledRequest(e *engine) (models.CollectionRequest, models.User) {
	c := collector(9.70, 4.05, true, time.Minute, nil)
	e.store.AddUser(c)
	r := pendingRequest(9.70, 4.05, nil)
	now := time.Now()
	r.Status = models.RequestScheduled
	r.AssignedCollector = &c.ID
	r.ScheduledAt = &now
	e.store.AddRequest(r)
	return r, c
}

func TestRequestService_StartAndComplete(t *testing.T) {
	e := newEngine(t)
	r, c := scheduledRequest(e)
	ctx := context.Background()

	started, err := e.requests.Start(ctx, collectorActor(c), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)

	done, err := e.requests.Complete(ctx, collectorActor(c), r.ID, dispatch.ProofInput{ActualWeight: 31.5, Photos: []string{"bin.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, done.Status)
	require.NotNil(t, done.Proof)
	assert.Equal(t, 31.5, done.Proof.ActualWeight)
	assert.Equal(t, c.ID, done.Proof.CollectorID)
	require.NotNil(t, done.AssignedCollector)

	msgs := e.notifier.MessagesFor(r.RequesterID.Hex())
	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageCollectionStarted, msgs[0].Type)
	assert.Equal(t, models.MessageCollectionCompleted, msgs[1].Type)
}

func TestRequestService_StartByOtherCollectorIsForbidden(t *testing.T) {
	e := newEngine(t)
	r, _ := scheduledRequest(e)
	other := collector(9.70, 4.05, true, time.Minute, nil)

	_, err := e.requests.Start(context.Background(), collectorActor(other), r.ID)

	assert.True(t, errors.Is(err, dispatch.ErrForbidden))
}

func TestRequestService_CompleteBeforeStartIsInvalid(t *testing.T) {
	e := newEngine(t)
	r, c := scheduledRequest(e)

	_, err := e.requests.Complete(context.Background(), collectorActor(c), r.ID, dispatch.ProofInput{ActualWeight: 3})

	var ite *dispatch.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "scheduled", ite.From)
	assert.Equal(t, "completed", ite.To)
}

func TestRequestService_CancelReleasesCollector(t *testing.T) {
	e := newEngine(t)
	r, _ := scheduledRequest(e)

	cancelled, err := e.requests.Cancel(context.Background(), requesterActor(r), r.ID, "no longer needed")

	require.NoError(t, err)
	assert.Equal(t, models.RequestCancelled, cancelled.Status)
	assert.Nil(t, cancelled.AssignedCollector)
	assert.Equal(t, "no longer needed", cancelled.CancellationReason)
	stored, _ := e.store.Request(r.ID)
	assert.Nil(t, stored.AssignedCollector)
	assert.NotNil(t, stored.CancelledAt)

	_, err = e.requests.Cancel(context.Background(), requesterActor(r), r.ID, "again")
	var ite *dispatch.InvalidTransitionError
	assert.True(t, errors.As(err, &ite))
}

func TestRequestService_CancelByStrangerIsForbidden(t *testing.T) {
	e := newEngine(t)
	r, _ := scheduledRequest(e)

	_, err := e.requests.Cancel(context.Background(), models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}, r.ID, "")

	assert.True(t, errors.Is(err, dispatch.ErrForbidden))
}

func TestRequestService_Rematch(t *testing.T) {
	e := newEngine(t)
	org := primitive.NewObjectID()
	r := pendingRequest(9.705, 4.052, &org)
	e.store.AddRequest(r)
	ctx := context.Background()

	_, _, err := e.requests.Rematch(ctx, requesterActor(r), r.ID)
	assert.True(t, errors.Is(err, dispatch.ErrForbidden))

	got, matched, err := e.requests.Rematch(ctx, orgAdmin(org), r.ID)
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Equal(t, models.RequestPending, got.Status)

	c := collector(9.70, 4.05, true, time.Minute, &org)
	e.store.AddUser(c)
	got, matched, err = e.requests.Rematch(ctx, orgAdmin(org), r.ID)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, c.ID, *got.AssignedCollector)

	_, _, err = e.requests.Rematch(ctx, adminActor(), r.ID)
	var ite *dispatch.InvalidTransitionError
	assert.True(t, errors.As(err, &ite))
}

func TestRequestService_GetVisibility(t *testing.T) {
	e := newEngine(t)
	r, c := scheduledRequest(e)
	ctx := context.Background()

	_, err := e.requests.Get(ctx, requesterActor(r), r.ID)
	assert.NoError(t, err)
	_, err = e.requests.Get(ctx, collectorActor(c), r.ID)
	assert.NoError(t, err)
	_, err = e.requests.Get(ctx, models.Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}, r.ID)
	assert.True(t, errors.Is(err, dispatch.ErrForbidden))

	_, err = e.requests.Get(ctx, adminActor(), primitive.NewObjectID())
	var nf *dispatch.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestRequestService_SweepPending(t *testing.T) {
	e := newEngine(t)
	c := collector(9.70, 4.05, true, time.Minute, nil)
	e.store.AddUser(c)
	near := pendingRequest(9.701, 4.051, nil)
	far := pendingRequest(13.5, 2.9, nil)
	e.store.AddRequest(near)
	e.store.AddRequest(far)

	assigned, err := e.requests.SweepPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, assigned)
	stored, _ := e.store.Request(near.ID)
	assert.Equal(t, models.RequestScheduled, stored.Status)
	stored, _ = e.store.Request(far.ID)
	assert.Equal(t, models.RequestPending, stored.Status)
}
