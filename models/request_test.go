package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wastecollect/waste-dispatch-api/models"
)

func TestRequestChangeApplyScheduled(t *testing.T) {
	collector := primitive.NewObjectID()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := models.CollectionRequest{Status: models.RequestPending}

	c := models.RequestChange{
		From:              []models.RequestStatus{models.RequestPending},
		To:                models.RequestScheduled,
		AssignedCollector: &collector,
		At:                at,
	}
	assert.True(t, c.Allows(r.Status))
	c.Apply(&r)

	assert.Equal(t, models.RequestScheduled, r.Status)
	assert.Equal(t, collector, *r.AssignedCollector)
	assert.Equal(t, at, *r.ScheduledAt)
	assert.False(t, c.Allows(r.Status))
}

func TestRequestChangeApplyCancelClearsCollector(t *testing.T) {
	collector := primitive.NewObjectID()
	r := models.CollectionRequest{Status: models.RequestScheduled, AssignedCollector: &collector}

	models.RequestChange{
		From:               []models.RequestStatus{models.RequestPending, models.RequestScheduled, models.RequestInProgress},
		To:                 models.RequestCancelled,
		ClearCollector:     true,
		CancellationReason: "duplicate",
		At:                 time.Now(),
	}.Apply(&r)

	assert.Equal(t, models.RequestCancelled, r.Status)
	assert.Nil(t, r.AssignedCollector)
	assert.Equal(t, "duplicate", r.CancellationReason)
	assert.NotNil(t, r.CancelledAt)
	assert.Equal(t, r.Status.HasCollector(), r.AssignedCollector != nil)
}

func TestWebhookRegistrationSubscribes(t *testing.T) {
	w := models.WebhookRegistration{URL: "https://example.org/hook", Events: []string{models.EventMissionAssigned}, Enabled: true}
	assert.True(t, w.Subscribes(models.EventMissionAssigned))
	assert.False(t, w.Subscribes(models.EventMissionCreated))

	w.Events = []string{"*"}
	assert.True(t, w.Subscribes(models.EventMissionCreated))

	w.Enabled = false
	assert.False(t, w.Subscribes(models.EventMissionCreated))

	w.Secret = "s3cret"
	assert.Empty(t, w.Redacted().Secret)
}

func TestMissionCloneIsDeep(t *testing.T) {
	c := primitive.NewObjectID()
	m := models.Mission{
		CollectorID:         &c,
		BlockReason:         &models.BlockReason{Reason: "road closed"},
		ReassignmentHistory: []models.ReassignmentEntry{{ToCollectorID: c}},
	}
	cp := m.Clone()
	cp.BlockReason.Reason = "changed"
	cp.ReassignmentHistory[0].Reason = "changed"
	*cp.CollectorID = primitive.NewObjectID()

	assert.Equal(t, "road closed", m.BlockReason.Reason)
	assert.Empty(t, m.ReassignmentHistory[0].Reason)
	assert.Equal(t, c, *m.CollectorID)
}
