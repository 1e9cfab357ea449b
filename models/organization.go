package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization holds the structure for the organization collection in mongo
type Organization struct {
	ID        primitive.ObjectID    `json:"_id" bson:"_id"`
	Name      string                `json:"name" bson:"name"`
	Webhooks  []WebhookRegistration `json:"webhooks" bson:"webhooks"`
	CreatedAt time.Time             `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt" bson:"updatedAt"`
}

// WebhookRegistration is one outbound endpoint an organization subscribed to
type WebhookRegistration struct {
	URL     string   `json:"url" bson:"url"`
	Events  []string `json:"events" bson:"events"`
	Secret  string   `json:"secret,omitempty" bson:"secret"`
	Enabled bool     `json:"enabled" bson:"enabled"`
}

// Subscribes reports whether the registration is enabled and listens for eventType.
// A "*" entry subscribes to every event.
func (w WebhookRegistration) Subscribes(eventType string) bool {
	if !w.Enabled {
		return false
	}
	for _, e := range w.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// Redacted returns a copy without the shared secret, for responses
func (w WebhookRegistration) Redacted() WebhookRegistration {
	w.Secret = ""
	return w
}
