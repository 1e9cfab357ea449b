package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType is the type of a realtime channel message
type MessageType string

// Realtime message types
const (
	MessageNewRequest          MessageType = "new_request"
	MessageCollectorAssigned   MessageType = "collector_assigned"
	MessageCollectionStarted   MessageType = "collection_started"
	MessageCollectionCompleted MessageType = "collection_completed"
)

// Message is pushed over a recipient's websocket connections
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// DirectMessage is a Message addressed to one recipient id
type DirectMessage struct {
	RecipientID string
	Message     Message
}

// Webhook event types
const (
	EventMissionCreated       = "mission.created"
	EventMissionAssigned      = "mission.assigned"
	EventMissionStatusChanged = "mission.status_changed"
	EventRequestAssigned      = "request.assigned"
	EventRequestStatusChanged = "request.status_changed"
)

// Event is the JSON body delivered to organization webhooks
type Event struct {
	EventType      string            `json:"eventType"`
	OrganizationID string            `json:"organizationId"`
	MissionID      string            `json:"missionId,omitempty"`
	RequestID      string            `json:"requestId,omitempty"`
	CollectorID    string            `json:"collectorId,omitempty"`
	Status         string            `json:"status,omitempty"`
	RelevantIDs    map[string]string `json:"relevantIds,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Notification is everything one state change fans out to. Event is only
// delivered when OrganizationID is set.
type Notification struct {
	OrganizationID *primitive.ObjectID
	Event          *Event
	Messages       []DirectMessage
}
