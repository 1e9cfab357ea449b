package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus is the lifecycle status of a collection request
type RequestStatus string

// Request statuses. completed and cancelled are terminal.
const (
	RequestPending    RequestStatus = "pending"
	RequestScheduled  RequestStatus = "scheduled"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

// HasCollector reports whether a request in this status must carry an assigned collector
func (s RequestStatus) HasCollector() bool {
	return s == RequestScheduled || s == RequestInProgress || s == RequestCompleted
}

// Urgency is the requested priority of a pickup
type Urgency string

// Urgency levels
const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Valid reports whether u is a known urgency
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// TimeWindow is the requester's preferred pickup slot
type TimeWindow struct {
	Date string `json:"date" bson:"date"`
	From string `json:"from" bson:"from"`
	To   string `json:"to" bson:"to"`
}

// CollectionProof is recorded by the collector when the pickup is done
type CollectionProof struct {
	ActualWeight float64            `json:"actualWeight" bson:"actualWeight"`
	Photos       []string           `json:"photos" bson:"photos"`
	CollectorID  primitive.ObjectID `json:"collectorId" bson:"collectorId"`
	CollectedAt  time.Time          `json:"collectedAt" bson:"collectedAt"`
}

// CollectionRequest holds the structure for the collection request collection in mongo
type CollectionRequest struct {
	ID                 primitive.ObjectID  `json:"_id" bson:"_id"`
	RequesterID        primitive.ObjectID  `json:"requesterId" bson:"requesterId"`
	OrganizationID     *primitive.ObjectID `json:"organizationId,omitempty" bson:"organizationId,omitempty"`
	WasteCategory      string              `json:"wasteCategory" bson:"wasteCategory"`
	EstimatedWeight    float64             `json:"estimatedWeight" bson:"estimatedWeight"`
	Address            string              `json:"address" bson:"address"`
	Location           Point               `json:"location" bson:"location"`
	Urgency            Urgency             `json:"urgency" bson:"urgency"`
	PreferredWindow    *TimeWindow         `json:"preferredWindow,omitempty" bson:"preferredWindow,omitempty"`
	Status             RequestStatus       `json:"status" bson:"status"`
	AssignedCollector  *primitive.ObjectID `json:"assignedCollector,omitempty" bson:"assignedCollector,omitempty"`
	Proof              *CollectionProof    `json:"proof,omitempty" bson:"proof,omitempty"`
	CancellationReason string              `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CreatedAt          time.Time           `json:"createdAt" bson:"createdAt"`
	ScheduledAt        *time.Time          `json:"scheduledAt,omitempty" bson:"scheduledAt,omitempty"`
	StartedAt          *time.Time          `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt        *time.Time          `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CancelledAt        *time.Time          `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	UpdatedAt          time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// RequestChange is a conditional status change: it only applies while the stored
// status is one of From.
type RequestChange struct {
	From               []RequestStatus
	To                 RequestStatus
	AssignedCollector  *primitive.ObjectID
	ClearCollector     bool
	Proof              *CollectionProof
	CancellationReason string
	At                 time.Time
}

// Allows reports whether the change may be applied to a request currently in status s
func (c RequestChange) Allows(s RequestStatus) bool {
	for _, f := range c.From {
		if f == s {
			return true
		}
	}
	return false
}

// Apply mutates r the same way the stored document is updated
func (c RequestChange) Apply(r *CollectionRequest) {
	at := c.At
	r.Status = c.To
	r.UpdatedAt = at
	if c.AssignedCollector != nil {
		id := *c.AssignedCollector
		r.AssignedCollector = &id
	}
	if c.ClearCollector {
		r.AssignedCollector = nil
	}
	if c.Proof != nil {
		p := *c.Proof
		r.Proof = &p
	}
	if c.CancellationReason != "" {
		r.CancellationReason = c.CancellationReason
	}
	switch c.To {
	case RequestScheduled:
		r.ScheduledAt = &at
	case RequestInProgress:
		r.StartedAt = &at
	case RequestCompleted:
		r.CompletedAt = &at
	case RequestCancelled:
		r.CancelledAt = &at
	}
}
