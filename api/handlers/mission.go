package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/api"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/dispatch"
	"github.com/wastecollect/waste-dispatch-api/models"
)

const defaultMissionPageSize = 20

// Mission exposes mission creation, assignment and the status state machine
type Mission struct {
	Service *dispatch.MissionService
}

// MissionList is a page of missions
type MissionList struct {
	Items      []models.Mission `json:"items"`
	NextPageID int              `json:"next_page_id,omitempty" example:"1"`
}

// CreateMissionHandler creates a mission for a collection request
func (h Mission) CreateMissionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var in dispatch.NewMission
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode mission", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	m, err := h.Service.Create(ctx, actor, in)
	if err != nil {
		writeError(w, "failed to create mission", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// MissionByIDHandler returns one mission
func (h Mission) MissionByIDHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "mission_id")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	m, err := h.Service.Get(ctx, actor, id)
	if err != nil {
		writeError(w, "failed to get mission by ID", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateMissionStatusHandler applies one status transition requested by the assigned collector
func (h Mission) UpdateMissionStatusHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "mission_id")
	if !ok {
		return
	}
	var in dispatch.StatusUpdate
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode status update", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	m, err := h.Service.UpdateStatus(ctx, actor, id, in)
	if err != nil {
		writeError(w, "failed to update mission status", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// AssignMissionHandler assigns or reassigns a mission to a collector
func (h Mission) AssignMissionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "mission_id")
	if !ok {
		return
	}
	var in dispatch.Assignment
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode assignment", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	m, err := h.Service.Assign(ctx, actor, id, in)
	if err != nil {
		writeError(w, "failed to assign mission", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// MissionsByOrganizationHandler lists an organization's missions, optionally filtered by status
func (h Mission) MissionsByOrganizationHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	orgID, ok := pathID(w, r, "organization_id")
	if !ok {
		return
	}
	status := models.MissionStatus(r.URL.Query().Get("status"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		zap.S().Debugw("limit not set, using default", "limit", defaultMissionPageSize)
		limit = defaultMissionPageSize
	}
	page := getPage(r)

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	missions, err := h.Service.ListByOrganization(ctx, actor, orgID, status, limit, page)
	if err != nil {
		writeError(w, "failed to list missions", err)
		return
	}

	list := MissionList{Items: missions}
	if list.Items == nil {
		list.Items = []models.Mission{}
	}
	if len(missions) == limit {
		list.NextPageID = page + 1
	}
	writeJSON(w, http.StatusOK, list)
}

// getPage reads the zero based page query parameter
func getPage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page
}
