package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/databases"
	"github.com/wastecollect/waste-dispatch-api/metrics"
	"github.com/wastecollect/waste-dispatch-api/models"
)

// Match triggers, used as metric labels
const (
	TriggerCreate   = "create"
	TriggerLocation = "location_update"
	TriggerManual   = "manual"
	TriggerSweep    = "sweep"
)

// RequestOptions tunes request creation and matching
type RequestOptions struct {
	// DefaultPoint is used for requests submitted without a location
	DefaultPoint models.Point
	// RadiusMeters bounds every match
	RadiusMeters float64
}

// NewRequest is the requester supplied part of a collection request
type NewRequest struct {
	WasteCategory   string              `json:"wasteCategory"`
	EstimatedWeight float64             `json:"estimatedWeight"`
	Address         string              `json:"address"`
	Location        *models.Point       `json:"location,omitempty"`
	Urgency         models.Urgency      `json:"urgency"`
	PreferredWindow *models.TimeWindow  `json:"preferredWindow,omitempty"`
	OrganizationID  *primitive.ObjectID `json:"organizationId,omitempty"`
}

// ProofInput is what the collector submits on completion
type ProofInput struct {
	ActualWeight float64  `json:"actualWeight"`
	Photos       []string `json:"photos"`
}

// RequestService runs the collection request lifecycle and dispatches requests to collectors
type RequestService struct {
	requests RequestStore
	matcher  *Matcher
	notifier Notifier
	metrics  *metrics.Recorder
	opts     RequestOptions
	now      func() time.Time
}

// NewRequestService wires a request service. notifier and rec may be nil.
func NewRequestService(stores Stores, matcher *Matcher, notifier Notifier, rec *metrics.Recorder, opts RequestOptions) *RequestService {
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = DefaultMatchRadiusMeters
	}
	return &RequestService{
		requests: stores.Requests,
		matcher:  matcher,
		notifier: notifierOrNoop(notifier),
		metrics:  rec,
		opts:     opts,
		now:      time.Now,
	}
}

// Create validates and stores a pending request for the actor, then tries to dispatch it
// right away. A request nobody can take yet is returned pending with no error.
func (s *RequestService) Create(ctx context.Context, actor models.Actor, in NewRequest) (*models.CollectionRequest, error) {
	requesterID, err := primitive.ObjectIDFromHex(actor.ID)
	if err != nil {
		return nil, invalid("requesterId", "must be a valid id")
	}
	if strings.TrimSpace(in.WasteCategory) == "" {
		return nil, invalid("wasteCategory", "is required")
	}
	if in.EstimatedWeight < 0 {
		return nil, invalid("estimatedWeight", "must not be negative")
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyMedium
	}
	if !in.Urgency.Valid() {
		return nil, invalid("urgency", "must be one of low, medium, high, urgent")
	}
	location := s.opts.DefaultPoint
	if in.Location != nil {
		if !in.Location.Valid() {
			return nil, invalid("location", "must be a [longitude, latitude] pair within range")
		}
		location = *in.Location
	}

	now := s.now()
	req := &models.CollectionRequest{
		ID:              primitive.NewObjectID(),
		RequesterID:     requesterID,
		OrganizationID:  in.OrganizationID,
		WasteCategory:   strings.TrimSpace(in.WasteCategory),
		EstimatedWeight: in.EstimatedWeight,
		Address:         in.Address,
		Location:        location,
		Urgency:         in.Urgency,
		PreferredWindow: in.PreferredWindow,
		Status:          models.RequestPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.requests.InsertRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}

	// the request exists from here on; a failed match leaves it pending
	if _, err := s.dispatch(ctx, req, TriggerCreate); err != nil && !errors.Is(err, ErrNoEligibleCollector) {
		zap.S().Errorw("failed to match new request", "requestId", req.ID.Hex(), "error", err)
	}
	return req, nil
}

// dispatch matches a pending request and assigns it. req is updated in place on success.
func (s *RequestService) dispatch(ctx context.Context, req *models.CollectionRequest, trigger string) (bool, error) {
	collector, err := s.matcher.FindNearestEligibleCollector(ctx, req.Location, s.opts.RadiusMeters)
	if err != nil {
		if errors.Is(err, ErrNoEligibleCollector) {
			s.metrics.RecordMatch(trigger, metrics.OutcomeNone)
		} else {
			s.metrics.RecordMatch(trigger, metrics.OutcomeError)
		}
		return false, err
	}
	return s.assign(ctx, req, *collector, trigger)
}

// assign moves req from pending to scheduled for collector, but only if it is still
// pending in the store. Losing that race is not an error.
func (s *RequestService) assign(ctx context.Context, req *models.CollectionRequest, collector models.User, trigger string) (bool, error) {
	change := models.RequestChange{
		From:              []models.RequestStatus{models.RequestPending},
		To:                models.RequestScheduled,
		AssignedCollector: &collector.ID,
		At:                s.now(),
	}
	ok, err := s.requests.TransitionRequest(ctx, req.ID, change)
	if err != nil {
		s.metrics.RecordMatch(trigger, metrics.OutcomeError)
		return false, fmt.Errorf("assign request %s: %w", req.ID.Hex(), err)
	}
	if !ok {
		s.metrics.RecordMatch(trigger, metrics.OutcomeLostRace)
		zap.S().Debugw("request no longer pending", "requestId", req.ID.Hex(), "trigger", trigger)
		return false, nil
	}
	change.Apply(req)
	s.metrics.RecordMatch(trigger, metrics.OutcomeMatched)
	s.metrics.RecordTransition("request", string(models.RequestPending), string(models.RequestScheduled))
	zap.S().Infow("request assigned",
		"requestId", req.ID.Hex(),
		"collectorId", collector.ID.Hex(),
		"trigger", trigger)
	s.notifier.Publish(requestAssigned(*req, collector, change.At))
	return true, nil
}

// Get returns a request the actor is involved in
func (s *RequestService) Get(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.CollectionRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeRequest(actor, req) {
		return nil, ErrForbidden
	}
	return req, nil
}

// Start moves a scheduled request to in_progress. Only the assigned collector may start it.
func (s *RequestService) Start(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.CollectionRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAssignedCollector(actor, req) {
		return nil, ErrForbidden
	}
	return s.transition(ctx, req, models.RequestChange{
		From: []models.RequestStatus{models.RequestScheduled},
		To:   models.RequestInProgress,
		At:   s.now(),
	})
}

// Complete moves an in_progress request to completed with the collector's proof
func (s *RequestService) Complete(ctx context.Context, actor models.Actor, id primitive.ObjectID, proof ProofInput) (*models.CollectionRequest, error) {
	if proof.ActualWeight < 0 {
		return nil, invalid("actualWeight", "must not be negative")
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAssignedCollector(actor, req) {
		return nil, ErrForbidden
	}
	at := s.now()
	return s.transition(ctx, req, models.RequestChange{
		From: []models.RequestStatus{models.RequestInProgress},
		To:   models.RequestCompleted,
		Proof: &models.CollectionProof{
			ActualWeight: proof.ActualWeight,
			Photos:       proof.Photos,
			CollectorID:  *req.AssignedCollector,
			CollectedAt:  at,
		},
		At: at,
	})
}

// Cancel soft-cancels any non-terminal request. The requester, an admin, or an admin of the
// request's organization may cancel. The assigned collector is released.
func (s *RequestService) Cancel(ctx context.Context, actor models.Actor, id primitive.ObjectID, reason string) (*models.CollectionRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != req.RequesterID.Hex() && !canAdministerRequest(actor, req) {
		return nil, ErrForbidden
	}
	return s.transition(ctx, req, models.RequestChange{
		From:               []models.RequestStatus{models.RequestPending, models.RequestScheduled, models.RequestInProgress},
		To:                 models.RequestCancelled,
		ClearCollector:     true,
		CancellationReason: strings.TrimSpace(reason),
		At:                 s.now(),
	})
}

// Rematch re-runs matching for one pending request on an operator's behalf.
// It reports whether a collector was assigned.
func (s *RequestService) Rematch(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.CollectionRequest, bool, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !canAdministerRequest(actor, req) {
		return nil, false, ErrForbidden
	}
	if req.Status != models.RequestPending {
		return nil, false, &InvalidTransitionError{Entity: "request", From: string(req.Status), To: string(models.RequestScheduled)}
	}
	ok, err := s.dispatch(ctx, req, TriggerManual)
	if errors.Is(err, ErrNoEligibleCollector) {
		return req, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// someone else assigned it in the meantime
		if req, err = s.load(ctx, id); err != nil {
			return nil, false, err
		}
	}
	return req, ok, nil
}

// SweepPending re-runs matching for the n most recent pending requests and returns how
// many were assigned. Per-request failures are logged and skipped.
func (s *RequestService) SweepPending(ctx context.Context, n int) (int, error) {
	pending, err := s.requests.FindRecentPending(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("find pending requests: %w", err)
	}
	assigned := 0
	for i := range pending {
		if ctx.Err() != nil {
			return assigned, ctx.Err()
		}
		ok, err := s.dispatch(ctx, &pending[i], TriggerSweep)
		if err != nil && !errors.Is(err, ErrNoEligibleCollector) {
			zap.S().Errorw("sweep failed for request", "requestId", pending[i].ID.Hex(), "error", err)
			continue
		}
		if ok {
			assigned++
		}
	}
	return assigned, nil
}

func (s *RequestService) transition(ctx context.Context, req *models.CollectionRequest, change models.RequestChange) (*models.CollectionRequest, error) {
	from := req.Status
	if !change.Allows(from) {
		return nil, &InvalidTransitionError{Entity: "request", From: string(from), To: string(change.To)}
	}
	ok, err := s.requests.TransitionRequest(ctx, req.ID, change)
	if err != nil {
		if databases.IsNotFound(err) {
			return nil, notFound("request", req.ID.Hex())
		}
		return nil, fmt.Errorf("transition request %s: %w", req.ID.Hex(), err)
	}
	if !ok {
		// status moved since we read it
		current, err := s.load(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return nil, &InvalidTransitionError{Entity: "request", From: string(current.Status), To: string(change.To)}
	}
	change.Apply(req)
	s.metrics.RecordTransition("request", string(from), string(change.To))
	s.notifier.Publish(requestStatusChanged(*req, change.At))
	return req, nil
}

func (s *RequestService) load(ctx context.Context, id primitive.ObjectID) (*models.CollectionRequest, error) {
	req, err := s.requests.FindRequestByID(ctx, id)
	if err != nil {
		if databases.IsNotFound(err) {
			return nil, notFound("request", id.Hex())
		}
		return nil, fmt.Errorf("find request %s: %w", id.Hex(), err)
	}
	return req, nil
}

func isAssignedCollector(actor models.Actor, req *models.CollectionRequest) bool {
	return actor.Role == models.RoleCollector && req.AssignedCollector != nil && req.AssignedCollector.Hex() == actor.ID
}

func canAdministerRequest(actor models.Actor, req *models.CollectionRequest) bool {
	if actor.IsAdmin() {
		return true
	}
	return req.OrganizationID != nil && actor.CanAdministerOrganization(req.OrganizationID.Hex())
}

func canSeeRequest(actor models.Actor, req *models.CollectionRequest) bool {
	return actor.ID == req.RequesterID.Hex() ||
		(req.AssignedCollector != nil && req.AssignedCollector.Hex() == actor.ID) ||
		canAdministerRequest(actor, req)
}
