package dispatchtest

import (
	"sync"

	"github.com/wastecollect/waste-dispatch-api/models"
)

// Notifier records every published notification
type Notifier struct {
	mu        sync.Mutex
	published []models.Notification
}

func (n *Notifier) Publish(note models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, note)
}

// Published returns everything published so far
func (n *Notifier) Published() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.published...)
}

// Events returns the webhook events of the given type
func (n *Notifier) Events(eventType string) []models.Event {
	var out []models.Event
	for _, note := range n.Published() {
		if note.Event != nil && note.Event.EventType == eventType {
			out = append(out, *note.Event)
		}
	}
	return out
}

// MessagesFor returns the realtime messages addressed to recipient
func (n *Notifier) MessagesFor(recipient string) []models.Message {
	var out []models.Message
	for _, note := range n.Published() {
		for _, m := range note.Messages {
			if m.RecipientID == recipient {
				out = append(out, m.Message)
			}
		}
	}
	return out
}
