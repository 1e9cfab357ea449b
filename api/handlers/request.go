package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/wastecollect/waste-dispatch-api/api"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/dispatch"
	"github.com/wastecollect/waste-dispatch-api/models"
)

// Request exposes the collection request lifecycle
type Request struct {
	Service *dispatch.RequestService
}

// CancelRequestBody is the body of a cancel call
type CancelRequestBody struct {
	Reason string `json:"reason"`
}

// MatchResponse reports the outcome of a manual rematch
type MatchResponse struct {
	Request *models.CollectionRequest `json:"request"`
	Matched bool                      `json:"matched"`
}

// CreateRequestHandler stores a new request and dispatches it to the nearest eligible collector
func (h Request) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var in dispatch.NewRequest
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	req, err := h.Service.Create(ctx, actor, in)
	if err != nil {
		writeError(w, "failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// RequestByIDHandler returns a request visible to the caller
func (h Request) RequestByIDHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	req, err := h.Service.Get(ctx, actor, id)
	if err != nil {
		writeError(w, "failed to get request by ID", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// StartRequestHandler moves a scheduled request to in_progress
func (h Request) StartRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	req, err := h.Service.Start(ctx, actor, id)
	if err != nil {
		writeError(w, "failed to start request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CompleteRequestHandler records the collection proof and completes the request
func (h Request) CompleteRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}
	var proof dispatch.ProofInput
	if err := decodeBody(r, &proof); err != nil {
		config.ErrorStatus("failed to decode proof", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	req, err := h.Service.Complete(ctx, actor, id, proof)
	if err != nil {
		writeError(w, "failed to complete request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CancelRequestHandler cancels a request that has not finished yet
func (h Request) CancelRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}
	var body CancelRequestBody
	if err := decodeBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
		config.ErrorStatus("failed to decode cancellation", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	req, err := h.Service.Cancel(ctx, actor, id, body.Reason)
	if err != nil {
		writeError(w, "failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// MatchRequestHandler re-runs matching for one pending request. Finding nobody is not an error.
func (h Request) MatchRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	req, matched, err := h.Service.Rematch(ctx, actor, id)
	if err != nil {
		writeError(w, "failed to match request", err)
		return
	}
	writeJSON(w, http.StatusOK, MatchResponse{Request: req, Matched: matched})
}
