package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/wastecollect/waste-dispatch-api/models"
)

// DefaultMatchRadiusMeters applies when a caller passes no radius
const DefaultMatchRadiusMeters = 50000.0

// Matcher finds the nearest eligible collector for a point. It only reads the collector store.
type Matcher struct {
	collectors   CollectorStore
	recentWindow time.Duration
	now          func() time.Time
}

// NewMatcher returns a matcher whose fallback considers collectors seen within recentWindow
func NewMatcher(collectors CollectorStore, recentWindow time.Duration) *Matcher {
	return &Matcher{
		collectors:   collectors,
		recentWindow: recentWindow,
		now:          time.Now,
	}
}

// FindNearestEligibleCollector returns the on-duty collector closest to point within
// maxDistanceMeters. When no on-duty collector is in range it falls back to any collector
// whose position is more recent than the recency window. Exact distance ties go to the
// lower collector id. ErrNoEligibleCollector is returned when nobody qualifies.
func (m *Matcher) FindNearestEligibleCollector(ctx context.Context, point models.Point, maxDistanceMeters float64) (*models.User, error) {
	if !point.Valid() {
		return nil, invalid("location", "must be a [longitude, latitude] pair within range")
	}
	if maxDistanceMeters <= 0 {
		maxDistanceMeters = DefaultMatchRadiusMeters
	}

	onDuty, err := m.collectors.FindOnDutyCollectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("find on-duty collectors: %w", err)
	}
	if best := nearest(onDuty, point, maxDistanceMeters, time.Time{}); best != nil {
		return best, nil
	}

	since := m.now().Add(-m.recentWindow)
	recent, err := m.collectors.FindRecentCollectors(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("find recent collectors: %w", err)
	}
	if best := nearest(recent, point, maxDistanceMeters, since); best != nil {
		return best, nil
	}
	return nil, ErrNoEligibleCollector
}

// nearest picks the closest collector within max. A non-zero seenSince also drops
// collectors whose last position is older than it.
func nearest(candidates []models.User, point models.Point, max float64, seenSince time.Time) *models.User {
	var best *models.User
	bestDist := 0.0
	for i := range candidates {
		c := &candidates[i]
		if !c.IsCollector() || c.Details.Location == nil || !c.Details.Location.Valid() {
			continue
		}
		if !seenSince.IsZero() && (c.Details.LastLocationAt == nil || c.Details.LastLocationAt.Before(seenSince)) {
			continue
		}
		d := models.PlanarDistanceMeters(*c.Details.Location, point)
		if d > max {
			continue
		}
		if best == nil || d < bestDist || (d == bestDist && c.ID.Hex() < best.ID.Hex()) {
			best = c
			bestDist = d
		}
	}
	if best == nil {
		return nil
	}
	found := *best
	return &found
}
