package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/databases"
	"github.com/wastecollect/waste-dispatch-api/metrics"
	"github.com/wastecollect/waste-dispatch-api/models"
)

// maxWriteAttempts bounds the optimistic retries of a single mission write
const maxWriteAttempts = 3

// missionTransitions lists every legal mission status change
var missionTransitions = map[models.MissionStatus][]models.MissionStatus{
	models.MissionPlanned:    {models.MissionAssigned},
	models.MissionAssigned:   {models.MissionInProgress, models.MissionCancelled},
	models.MissionInProgress: {models.MissionBlocked, models.MissionCompleted, models.MissionCancelled},
	models.MissionBlocked:    {models.MissionInProgress, models.MissionCancelled},
}

// CanTransition reports whether a mission may move from one status to another
func CanTransition(from, to models.MissionStatus) bool {
	for _, s := range missionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NewMission references the records a mission binds together
type NewMission struct {
	CollectionID   primitive.ObjectID  `json:"collectionId"`
	OrganizationID primitive.ObjectID  `json:"organizationId"`
	CollectorID    *primitive.ObjectID `json:"collectorId,omitempty"`
	VehicleID      *primitive.ObjectID `json:"vehicleId,omitempty"`
}

// BlockInput explains why a mission is blocked
type BlockInput struct {
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
}

// StatusUpdate is one requested mission status change. Proof records are merged
// independently, so before and after may arrive on separate calls.
type StatusUpdate struct {
	Status      models.MissionStatus  `json:"status"`
	BlockReason *BlockInput           `json:"blockReason,omitempty"`
	Proofs      *models.MissionProofs `json:"proofs,omitempty"`
}

// Assignment names the collector, and optionally the vehicle, a mission goes to
type Assignment struct {
	CollectorID primitive.ObjectID  `json:"collectorId"`
	VehicleID   *primitive.ObjectID `json:"vehicleId,omitempty"`
	Reason      string              `json:"reason,omitempty"`
}

// MissionService owns mission records and their state machine
type MissionService struct {
	missions   MissionStore
	requests   RequestStore
	collectors CollectorStore
	vehicles   VehicleStore
	notifier   Notifier
	metrics    *metrics.Recorder
	now        func() time.Time
}

// NewMissionService wires a mission service. notifier and rec may be nil.
func NewMissionService(stores Stores, notifier Notifier, rec *metrics.Recorder) *MissionService {
	return &MissionService{
		missions:   stores.Missions,
		requests:   stores.Requests,
		collectors: stores.Collectors,
		vehicles:   stores.Vehicles,
		notifier:   notifierOrNoop(notifier),
		metrics:    rec,
		now:        time.Now,
	}
}

// Create dispatches a collection request inside an organization. Every referenced record
// must exist and belong to that organization. The mission starts assigned when a collector
// is given and planned otherwise.
func (s *MissionService) Create(ctx context.Context, actor models.Actor, in NewMission) (*models.Mission, error) {
	if in.CollectionID.IsZero() {
		return nil, invalid("collectionId", "is required")
	}
	if in.OrganizationID.IsZero() {
		return nil, invalid("organizationId", "is required")
	}
	if !actor.CanAdministerOrganization(in.OrganizationID.Hex()) {
		return nil, ErrForbidden
	}

	req, err := s.requests.FindRequestByID(ctx, in.CollectionID)
	if err != nil {
		return nil, lookupErr("collection", in.CollectionID, err)
	}
	if req.OrganizationID == nil || *req.OrganizationID != in.OrganizationID {
		return nil, notFound("collection", in.CollectionID.Hex())
	}
	if in.CollectorID != nil {
		if _, err := s.collectorIn(ctx, *in.CollectorID, in.OrganizationID); err != nil {
			return nil, err
		}
	}
	if in.VehicleID != nil {
		if err := s.vehicleIn(ctx, *in.VehicleID, in.OrganizationID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	m := &models.Mission{
		ID:                  primitive.NewObjectID(),
		CollectionID:        in.CollectionID,
		OrganizationID:      in.OrganizationID,
		VehicleID:           in.VehicleID,
		Status:              models.MissionPlanned,
		ReassignmentHistory: []models.ReassignmentEntry{},
		CreatedAt:           now,
		UpdatedAt:           now,
		Version:             1,
	}
	if in.CollectorID != nil {
		m.CollectorID = in.CollectorID
		m.Status = models.MissionAssigned
		m.AssignedAt = &now
		m.ReassignmentHistory = append(m.ReassignmentHistory, models.ReassignmentEntry{
			ToCollectorID: *in.CollectorID,
			Reason:        "initial assignment",
			ActorID:       actor.ID,
			Time:          now,
		})
	}
	if err := s.missions.InsertMission(ctx, m); err != nil {
		return nil, fmt.Errorf("insert mission: %w", err)
	}

	zap.S().Infow("mission created",
		"missionId", m.ID.Hex(),
		"organizationId", m.OrganizationID.Hex(),
		"status", m.Status)
	s.metrics.RecordTransition("mission", "", string(m.Status))

	var msgs []models.DirectMessage
	if m.CollectorID != nil {
		msgs = s.assignmentMessages(*m, req)
	}
	s.notifier.Publish(missionNotification(models.EventMissionCreated, *m, now, msgs...))
	return m, nil
}

// UpdateStatus applies one legal status change. Illegal changes fail with
// InvalidTransitionError and leave the mission untouched.
func (s *MissionService) UpdateStatus(ctx context.Context, actor models.Actor, id primitive.ObjectID, in StatusUpdate) (*models.Mission, error) {
	if !in.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown mission status %q", in.Status))
	}
	if in.Status == models.MissionBlocked && (in.BlockReason == nil || strings.TrimSpace(in.BlockReason.Reason) == "") {
		return nil, invalid("blockReason", "is required when blocking a mission")
	}
	if err := validateProofs(in.Proofs); err != nil {
		return nil, err
	}

	var from models.MissionStatus
	updated, err := s.write(ctx, id, func(m *models.Mission, now time.Time) error {
		if !canOperateMission(actor, m) {
			return ErrForbidden
		}
		if !CanTransition(m.Status, in.Status) {
			return &InvalidTransitionError{Entity: "mission", From: string(m.Status), To: string(in.Status)}
		}
		from = m.Status
		applyStatus(m, in, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("mission", string(from), string(updated.Status))
	zap.S().Infow("mission status changed",
		"missionId", updated.ID.Hex(),
		"from", from,
		"to", updated.Status,
		"actorId", actor.ID)
	s.notifier.Publish(missionNotification(models.EventMissionStatusChanged, *updated, updated.UpdatedAt, s.requesterMessages(ctx, *updated)...))
	return updated, nil
}

// Assign (re)assigns a planned or assigned mission to a collector of its organization and
// records exactly one reassignment history entry.
func (s *MissionService) Assign(ctx context.Context, actor models.Actor, id primitive.ObjectID, in Assignment) (*models.Mission, error) {
	if in.CollectorID.IsZero() {
		return nil, invalid("collectorId", "is required")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAdministerOrganization(current.OrganizationID.Hex()) {
		return nil, ErrForbidden
	}
	if _, err := s.collectorIn(ctx, in.CollectorID, current.OrganizationID); err != nil {
		return nil, err
	}
	if in.VehicleID != nil {
		if err := s.vehicleIn(ctx, *in.VehicleID, current.OrganizationID); err != nil {
			return nil, err
		}
	}

	var from models.MissionStatus
	updated, err := s.write(ctx, id, func(m *models.Mission, now time.Time) error {
		if m.Status != models.MissionPlanned && m.Status != models.MissionAssigned {
			return &InvalidTransitionError{Entity: "mission", From: string(m.Status), To: string(models.MissionAssigned)}
		}
		from = m.Status
		m.ReassignmentHistory = append(m.ReassignmentHistory, models.ReassignmentEntry{
			FromCollectorID: m.CollectorID,
			ToCollectorID:   in.CollectorID,
			Reason:          strings.TrimSpace(in.Reason),
			ActorID:         actor.ID,
			Time:            now,
		})
		collector := in.CollectorID
		m.CollectorID = &collector
		if in.VehicleID != nil {
			vehicle := *in.VehicleID
			m.VehicleID = &vehicle
		}
		m.Status = models.MissionAssigned
		m.AssignedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("mission", string(from), string(models.MissionAssigned))
	zap.S().Infow("mission assigned",
		"missionId", updated.ID.Hex(),
		"collectorId", in.CollectorID.Hex(),
		"actorId", actor.ID)

	req, err := s.requests.FindRequestByID(ctx, updated.CollectionID)
	if err != nil {
		zap.S().Warnw("mission assigned without a readable request", "missionId", updated.ID.Hex(), "error", err)
		req = nil
	}
	s.notifier.Publish(missionNotification(models.EventMissionAssigned, *updated, updated.UpdatedAt, s.assignmentMessages(*updated, req)...))
	return updated, nil
}

// Get returns a mission visible to the actor
func (s *MissionService) Get(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Mission, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canOperateMission(actor, m) {
		return nil, ErrForbidden
	}
	return m, nil
}

// ListByOrganization pages through an organization's missions, optionally by status
func (s *MissionService) ListByOrganization(ctx context.Context, actor models.Actor, orgID primitive.ObjectID, status models.MissionStatus, limit, page int) ([]models.Mission, error) {
	if !actor.CanAdministerOrganization(orgID.Hex()) {
		return nil, ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown mission status %q", status))
	}
	missions, err := s.missions.FindMissionsByOrganization(ctx, orgID, status, limit, page)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	if missions == nil {
		missions = []models.Mission{}
	}
	return missions, nil
}

// write re-reads the mission, applies mutate to a copy and stores it under an optimistic
// version check, retrying a bounded number of times when another writer wins.
func (s *MissionService) write(ctx context.Context, id primitive.ObjectID, mutate func(*models.Mission, time.Time) error) (*models.Mission, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		now := s.now()
		if err := mutate(&next, now); err != nil {
			return nil, err
		}
		next.UpdatedAt = now
		next.Version = current.Version + 1

		ok, err := s.missions.ReplaceMission(ctx, &next, current.Version)
		if err != nil {
			return nil, fmt.Errorf("replace mission %s: %w", id.Hex(), err)
		}
		if ok {
			return &next, nil
		}
		zap.S().Debugw("mission version moved, retrying", "missionId", id.Hex(), "attempt", attempt+1)
	}
	return nil, ErrConflict
}

func (s *MissionService) load(ctx context.Context, id primitive.ObjectID) (*models.Mission, error) {
	m, err := s.missions.FindMissionByID(ctx, id)
	if err != nil {
		return nil, lookupErr("mission", id, err)
	}
	return m, nil
}

func (s *MissionService) collectorIn(ctx context.Context, id, orgID primitive.ObjectID) (*models.User, error) {
	c, err := s.collectors.FindCollectorByID(ctx, id)
	if err != nil {
		return nil, lookupErr("collector", id, err)
	}
	if !c.IsCollector() || !c.InOrganization(orgID) {
		return nil, notFound("collector", id.Hex())
	}
	return c, nil
}

func (s *MissionService) vehicleIn(ctx context.Context, id, orgID primitive.ObjectID) error {
	v, err := s.vehicles.FindVehicleByID(ctx, id)
	if err != nil {
		return lookupErr("vehicle", id, err)
	}
	if v.Details.OrganizationID != orgID {
		return notFound("vehicle", id.Hex())
	}
	return nil
}

// assignmentMessages alerts the collector and, when the request is known, its requester
func (s *MissionService) assignmentMessages(m models.Mission, req *models.CollectionRequest) []models.DirectMessage {
	if m.CollectorID == nil {
		return nil
	}
	msgs := []models.DirectMessage{
		direct(m.CollectorID.Hex(), models.MessageNewRequest, map[string]interface{}{
			"mission": m,
			"request": req,
		}),
	}
	if req != nil {
		msgs = append(msgs, direct(req.RequesterID.Hex(), models.MessageCollectorAssigned, map[string]interface{}{
			"requestId":   req.ID.Hex(),
			"missionId":   m.ID.Hex(),
			"collectorId": m.CollectorID.Hex(),
		}))
	}
	return msgs
}

// requesterMessages tells the requester of the linked request when collection starts or ends
func (s *MissionService) requesterMessages(ctx context.Context, m models.Mission) []models.DirectMessage {
	var t models.MessageType
	switch m.Status {
	case models.MissionInProgress:
		t = models.MessageCollectionStarted
	case models.MissionCompleted:
		t = models.MessageCollectionCompleted
	default:
		return nil
	}
	req, err := s.requests.FindRequestByID(ctx, m.CollectionID)
	if err != nil {
		zap.S().Warnw("could not load request for requester notification", "missionId", m.ID.Hex(), "error", err)
		return nil
	}
	return []models.DirectMessage{direct(req.RequesterID.Hex(), t, map[string]interface{}{
		"requestId": req.ID.Hex(),
		"missionId": m.ID.Hex(),
		"status":    m.Status,
		"proofs":    m.Proofs,
	})}
}

func applyStatus(m *models.Mission, in StatusUpdate, now time.Time) {
	m.Status = in.Status
	switch in.Status {
	case models.MissionInProgress:
		if m.StartedAt == nil {
			m.StartedAt = &now
		}
	case models.MissionBlocked:
		m.BlockedAt = &now
		m.BlockReason = &models.BlockReason{
			Reason:      strings.TrimSpace(in.BlockReason.Reason),
			Description: in.BlockReason.Description,
			Time:        now,
		}
	case models.MissionCompleted:
		m.CompletedAt = &now
	case models.MissionCancelled:
		m.CancelledAt = &now
	}
	if in.Proofs == nil {
		return
	}
	if in.Proofs.Before != nil {
		m.Proofs.Before = stampedProof(*in.Proofs.Before, now)
	}
	if in.Proofs.After != nil {
		m.Proofs.After = stampedProof(*in.Proofs.After, now)
	}
}

func stampedProof(p models.ProofRecord, now time.Time) *models.ProofRecord {
	if p.Time.IsZero() {
		p.Time = now
	}
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	return &p
}

func validateProofs(p *models.MissionProofs) error {
	if p == nil {
		return nil
	}
	for name, rec := range map[string]*models.ProofRecord{"proofs.before": p.Before, "proofs.after": p.After} {
		if rec == nil {
			continue
		}
		if strings.TrimSpace(rec.Photo) == "" {
			return invalid(name, "photo is required")
		}
		if rec.Location != nil && !rec.Location.Valid() {
			return invalid(name, "location must be a [longitude, latitude] pair within range")
		}
	}
	return nil
}

// canOperateMission allows admins, admins of the mission's organization and the assigned collector
func canOperateMission(actor models.Actor, m *models.Mission) bool {
	if actor.CanAdministerOrganization(m.OrganizationID.Hex()) {
		return true
	}
	return actor.Role == models.RoleCollector && m.CollectorID != nil && m.CollectorID.Hex() == actor.ID
}

func lookupErr(entity string, id primitive.ObjectID, err error) error {
	if databases.IsNotFound(err) {
		return notFound(entity, id.Hex())
	}
	return fmt.Errorf("find %s %s: %w", entity, id.Hex(), err)
}
