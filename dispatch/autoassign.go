package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/databases"
	"github.com/wastecollect/waste-dispatch-api/models"
)

// DefaultAutoAssignPool is how many recent pending requests a location update re-evaluates
const DefaultAutoAssignPool = 10

// AutoAssigner re-runs matching whenever a collector reports a new position
type AutoAssigner struct {
	collectors CollectorStore
	requests   RequestStore
	service    *RequestService
	pool       int
	now        func() time.Time
}

// NewAutoAssigner returns a trigger that re-evaluates the pool most recent pending requests
func NewAutoAssigner(stores Stores, service *RequestService, pool int) *AutoAssigner {
	if pool <= 0 {
		pool = DefaultAutoAssignPool
	}
	return &AutoAssigner{
		collectors: stores.Collectors,
		requests:   stores.Requests,
		service:    service,
		pool:       pool,
		now:        time.Now,
	}
}

// OnCollectorLocationUpdate stores the collector's position, marks them on duty, and
// assigns to them every recent pending request for which they are now the nearest
// eligible collector. It returns the ids of the requests it assigned. A failure on one
// request is logged and does not stop the others.
func (a *AutoAssigner) OnCollectorLocationUpdate(ctx context.Context, collectorID primitive.ObjectID, point models.Point, accuracy float64) ([]primitive.ObjectID, error) {
	if !point.Valid() {
		return nil, invalid("location", "must be a [longitude, latitude] pair within range")
	}
	if accuracy < 0 {
		return nil, invalid("accuracy", "must not be negative")
	}

	if err := a.collectors.UpdateCollectorLocation(ctx, collectorID, point, accuracy, a.now()); err != nil {
		if databases.IsNotFound(err) {
			return nil, notFound("collector", collectorID.Hex())
		}
		return nil, fmt.Errorf("update collector location: %w", err)
	}

	pending, err := a.requests.FindRecentPending(ctx, a.pool)
	if err != nil {
		return nil, fmt.Errorf("find pending requests: %w", err)
	}

	assigned := []primitive.ObjectID{}
	for i := range pending {
		req := &pending[i]
		best, err := a.service.matcher.FindNearestEligibleCollector(ctx, req.Location, a.service.opts.RadiusMeters)
		if err != nil {
			if !errors.Is(err, ErrNoEligibleCollector) {
				zap.S().Errorw("auto-assign match failed",
					"requestId", req.ID.Hex(),
					"collectorId", collectorID.Hex(),
					"error", err)
			}
			continue
		}
		if best.ID != collectorID {
			continue
		}
		ok, err := a.service.assign(ctx, req, *best, TriggerLocation)
		if err != nil {
			zap.S().Errorw("auto-assign failed",
				"requestId", req.ID.Hex(),
				"collectorId", collectorID.Hex(),
				"error", err)
			continue
		}
		if ok {
			assigned = append(assigned, req.ID)
		}
	}
	return assigned, nil
}
