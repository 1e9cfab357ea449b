package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/databases"
)

const (
	rematchLock    = "rematch_sweep"
	rematchLockTTL = 4 * time.Minute
	rematchTimeout = 3 * time.Minute
)

// Sweeper re-runs matching for the most recent pending requests
type Sweeper interface {
	SweepPending(ctx context.Context, n int) (int, error)
}

// Scheduler runs the periodic rematch sweep on one instance at a time
type Scheduler struct {
	cron       *cron.Cron
	Sweeper    Sweeper
	LockDB     databases.SchedulerLockDatabase
	spec       string
	pool       int
	instanceID string
}

// NewScheduler creates a scheduler that sweeps pool pending requests on the cron spec
func NewScheduler(sweeper Sweeper, lockDB databases.SchedulerLockDatabase, spec string, pool int) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		host, _ := os.Hostname()
		instanceID = fmt.Sprintf("%s-%d", host, time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Sweeper:    sweeper,
		LockDB:     lockDB,
		spec:       spec,
		pool:       pool,
		instanceID: instanceID,
	}
}

// Start registers the sweep and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunRematch); err != nil {
		return fmt.Errorf("register rematch job %q: %w", s.spec, err)
	}
	s.cron.Start()
	zap.S().Infow("rematch scheduler started", "schedule", s.spec, "instance", s.instanceID)
	return nil
}

// Stop waits for a running sweep to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("rematch scheduler stopped")
}

// RunRematch sweeps pending requests if no other instance holds the lock
func (s *Scheduler) RunRematch() {
	ctx, cancel := context.WithTimeout(context.Background(), rematchTimeout)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, rematchLock, s.instanceID, rematchLockTTL)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for rematch sweep", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("rematch sweep already running on another instance, skipping")
		return
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(context.Background(), rematchLock, s.instanceID); err != nil {
			zap.S().Warnw("failed to release rematch lock", "error", err)
		}
	}()

	start := time.Now()
	assigned, err := s.Sweeper.SweepPending(ctx, s.pool)
	if err != nil {
		zap.S().Errorw("rematch sweep failed", "assigned", assigned, "error", err)
		return
	}
	zap.S().Infow("rematch sweep complete",
		"assigned", assigned,
		"pool", s.pool,
		"duration", time.Since(start))
}
