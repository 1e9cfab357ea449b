package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MissionStatus is the lifecycle status of a mission
type MissionStatus string

// Mission statuses. completed and cancelled are terminal.
const (
	MissionPlanned    MissionStatus = "planned"
	MissionAssigned   MissionStatus = "assigned"
	MissionInProgress MissionStatus = "in-progress"
	MissionBlocked    MissionStatus = "blocked"
	MissionCompleted  MissionStatus = "completed"
	MissionCancelled  MissionStatus = "cancelled"
)

// Valid reports whether s is a known mission status
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionPlanned, MissionAssigned, MissionInProgress, MissionBlocked, MissionCompleted, MissionCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible
func (s MissionStatus) Terminal() bool {
	return s == MissionCompleted || s == MissionCancelled
}

// BlockReason is attached when a mission enters the blocked status
type BlockReason struct {
	Reason      string    `json:"reason" bson:"reason"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Time        time.Time `json:"time" bson:"time"`
}

// ProofRecord is a photo taken on site before or after the collection
type ProofRecord struct {
	Photo    string    `json:"photo" bson:"photo"`
	Time     time.Time `json:"time" bson:"time"`
	Location *Point    `json:"location,omitempty" bson:"location,omitempty"`
}

// MissionProofs groups the before and after proof records
type MissionProofs struct {
	Before *ProofRecord `json:"before,omitempty" bson:"before,omitempty"`
	After  *ProofRecord `json:"after,omitempty" bson:"after,omitempty"`
}

// ReassignmentEntry is one immutable line of a mission's assignment audit trail
type ReassignmentEntry struct {
	FromCollectorID *primitive.ObjectID `json:"fromCollectorId,omitempty" bson:"fromCollectorId,omitempty"`
	ToCollectorID   primitive.ObjectID  `json:"toCollectorId" bson:"toCollectorId"`
	Reason          string              `json:"reason,omitempty" bson:"reason,omitempty"`
	ActorID         string              `json:"actorId" bson:"actorId"`
	Time            time.Time           `json:"time" bson:"time"`
}

// Mission holds the structure for the mission collection in mongo
type Mission struct {
	ID                  primitive.ObjectID  `json:"_id" bson:"_id"`
	CollectionID        primitive.ObjectID  `json:"collectionId" bson:"collectionId"`
	OrganizationID      primitive.ObjectID  `json:"organizationId" bson:"organizationId"`
	CollectorID         *primitive.ObjectID `json:"collectorId,omitempty" bson:"collectorId,omitempty"`
	VehicleID           *primitive.ObjectID `json:"vehicleId,omitempty" bson:"vehicleId,omitempty"`
	Status              MissionStatus       `json:"status" bson:"status"`
	BlockReason         *BlockReason        `json:"blockReason,omitempty" bson:"blockReason,omitempty"`
	Proofs              MissionProofs       `json:"proofs" bson:"proofs"`
	ReassignmentHistory []ReassignmentEntry `json:"reassignmentHistory" bson:"reassignmentHistory"`
	CreatedAt           time.Time           `json:"createdAt" bson:"createdAt"`
	AssignedAt          *time.Time          `json:"assignedAt,omitempty" bson:"assignedAt,omitempty"`
	StartedAt           *time.Time          `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	BlockedAt           *time.Time          `json:"blockedAt,omitempty" bson:"blockedAt,omitempty"`
	CompletedAt         *time.Time          `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CancelledAt         *time.Time          `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	UpdatedAt           time.Time           `json:"updatedAt" bson:"updatedAt"`
	Version             int64               `json:"version" bson:"version"`
}

// Clone returns a deep copy so a failed write never leaks into the caller's value
func (m Mission) Clone() Mission {
	c := m
	if m.CollectorID != nil {
		id := *m.CollectorID
		c.CollectorID = &id
	}
	if m.VehicleID != nil {
		id := *m.VehicleID
		c.VehicleID = &id
	}
	if m.BlockReason != nil {
		br := *m.BlockReason
		c.BlockReason = &br
	}
	if m.Proofs.Before != nil {
		p := *m.Proofs.Before
		c.Proofs.Before = &p
	}
	if m.Proofs.After != nil {
		p := *m.Proofs.After
		c.Proofs.After = &p
	}
	c.ReassignmentHistory = append([]ReassignmentEntry(nil), m.ReassignmentHistory...)
	return c
}
