package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/api"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/databases"
	"github.com/wastecollect/waste-dispatch-api/dispatch"
	"github.com/wastecollect/waste-dispatch-api/models"
)

// DutyStore toggles a collector's on-duty flag
type DutyStore interface {
	SetCollectorDuty(context.Context, primitive.ObjectID, bool) error
}

// Collector exposes the collector's own position and duty endpoints
type Collector struct {
	AutoAssign *dispatch.AutoAssigner
	DB         DutyStore
}

// LocationUpdate is a collector's position report
type LocationUpdate struct {
	Location models.Point `json:"location"`
	Accuracy float64      `json:"accuracy"`
}

// LocationResponse lists the requests assigned as a result of a location update
type LocationResponse struct {
	AssignedRequests []string `json:"assignedRequests"`
}

// DutyUpdate switches a collector on or off duty
type DutyUpdate struct {
	OnDuty bool `json:"onDuty"`
}

// collectorID returns the caller's id when the caller is a collector, or writes an error
func collectorID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return primitive.NilObjectID, false
	}
	if actor.Role != models.RoleCollector {
		config.ErrorStatus("only collectors may report locations or duty", http.StatusForbidden, w, dispatch.ErrForbidden)
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(actor.ID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

// UpdateLocationHandler stores the caller's position and runs auto-assignment for it
func (h Collector) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := collectorID(w, r)
	if !ok {
		return
	}
	var in LocationUpdate
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode location", http.StatusBadRequest, w, err)
		return
	}
	if in.Location.Type == "" {
		in.Location.Type = "Point"
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	assigned, err := h.AutoAssign.OnCollectorLocationUpdate(ctx, id, in.Location, in.Accuracy)
	if err != nil {
		writeError(w, "failed to update location", err)
		return
	}

	resp := LocationResponse{AssignedRequests: make([]string, 0, len(assigned))}
	for _, reqID := range assigned {
		resp.AssignedRequests = append(resp.AssignedRequests, reqID.Hex())
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateDutyHandler turns the caller on or off duty without touching their position
func (h Collector) UpdateDutyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := collectorID(w, r)
	if !ok {
		return
	}
	var in DutyUpdate
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode duty update", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	if err := h.DB.SetCollectorDuty(ctx, id, in.OnDuty); err != nil {
		if databases.IsNotFound(err) {
			config.ErrorStatus("collector not found", http.StatusNotFound, w, err)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			config.ErrorStatus("failed to update duty", http.StatusGatewayTimeout, w, err)
			return
		}
		config.ErrorStatus("failed to update duty", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("collector duty changed", "collectorId", id.Hex(), "onDuty", in.OnDuty)
	writeJSON(w, http.StatusOK, in)
}
