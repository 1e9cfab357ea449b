package dispatch

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wastecollect/waste-dispatch-api/models"
)

func hexOrEmpty(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}

func direct(recipient string, t models.MessageType, payload interface{}) models.DirectMessage {
	return models.DirectMessage{
		RecipientID: recipient,
		Message:     models.Message{Type: t, Payload: payload},
	}
}

// requestAssigned tells the collector about the new pickup and the requester who is coming
func requestAssigned(req models.CollectionRequest, collector models.User, at time.Time) models.Notification {
	n := models.Notification{
		OrganizationID: req.OrganizationID,
		Messages: []models.DirectMessage{
			direct(collector.ID.Hex(), models.MessageNewRequest, req),
			direct(req.RequesterID.Hex(), models.MessageCollectorAssigned, map[string]interface{}{
				"requestId":     req.ID.Hex(),
				"collectorId":   collector.ID.Hex(),
				"collectorName": collector.Details.Name,
			}),
		},
	}
	if req.OrganizationID != nil {
		n.Event = &models.Event{
			EventType:      models.EventRequestAssigned,
			OrganizationID: req.OrganizationID.Hex(),
			RequestID:      req.ID.Hex(),
			CollectorID:    collector.ID.Hex(),
			Status:         string(req.Status),
			RelevantIDs:    map[string]string{"requesterId": req.RequesterID.Hex()},
			Timestamp:      at,
		}
	}
	return n
}

// requestStatusChanged tells the requester about start and completion
func requestStatusChanged(req models.CollectionRequest, at time.Time) models.Notification {
	n := models.Notification{OrganizationID: req.OrganizationID}
	payload := map[string]interface{}{
		"requestId": req.ID.Hex(),
		"status":    req.Status,
	}
	switch req.Status {
	case models.RequestInProgress:
		n.Messages = append(n.Messages, direct(req.RequesterID.Hex(), models.MessageCollectionStarted, payload))
	case models.RequestCompleted:
		payload["proof"] = req.Proof
		n.Messages = append(n.Messages, direct(req.RequesterID.Hex(), models.MessageCollectionCompleted, payload))
	}
	if req.OrganizationID != nil {
		n.Event = &models.Event{
			EventType:      models.EventRequestStatusChanged,
			OrganizationID: req.OrganizationID.Hex(),
			RequestID:      req.ID.Hex(),
			CollectorID:    hexOrEmpty(req.AssignedCollector),
			Status:         string(req.Status),
			RelevantIDs:    map[string]string{"requesterId": req.RequesterID.Hex()},
			Timestamp:      at,
		}
	}
	return n
}

func missionEvent(eventType string, m models.Mission, at time.Time) *models.Event {
	ids := map[string]string{"collectionId": m.CollectionID.Hex()}
	if m.VehicleID != nil {
		ids["vehicleId"] = m.VehicleID.Hex()
	}
	return &models.Event{
		EventType:      eventType,
		OrganizationID: m.OrganizationID.Hex(),
		MissionID:      m.ID.Hex(),
		RequestID:      m.CollectionID.Hex(),
		CollectorID:    hexOrEmpty(m.CollectorID),
		Status:         string(m.Status),
		RelevantIDs:    ids,
		Timestamp:      at,
	}
}

// missionNotification wraps a mission webhook event with any realtime messages
func missionNotification(eventType string, m models.Mission, at time.Time, msgs ...models.DirectMessage) models.Notification {
	org := m.OrganizationID
	return models.Notification{
		OrganizationID: &org,
		Event:          missionEvent(eventType, m, at),
		Messages:       msgs,
	}
}
