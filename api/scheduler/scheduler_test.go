package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (f *fakeSweeper) SweepPending(_ context.Context, n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	return 2, f.err
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLock struct {
	mu       sync.Mutex
	holder   string
	err      error
	released int
}

func (l *fakeLock) TryAcquireLock(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.holder != "" && l.holder != owner {
		return false, nil
	}
	l.holder = owner
	return true, nil
}

func (l *fakeLock) ReleaseLock(_ context.Context, name, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == owner {
		l.holder = ""
		l.released++
	}
	return nil
}

func TestRunRematch_SweepsUnderLock(t *testing.T) {
	sweeper := &fakeSweeper{}
	lock := &fakeLock{}
	s := NewScheduler(sweeper, lock, "@every 1m", 10)

	s.RunRematch()

	assert.Equal(t, []int{10}, sweeper.calls)
	assert.Equal(t, 1, lock.released)
	assert.Empty(t, lock.holder)
}

func TestRunRematch_SkipsWhenAnotherInstanceHoldsLock(t *testing.T) {
	sweeper := &fakeSweeper{}
	lock := &fakeLock{holder: "web.2"}
	s := NewScheduler(sweeper, lock, "@every 1m", 10)

	s.RunRematch()

	assert.Zero(t, sweeper.count())
	assert.Equal(t, "web.2", lock.holder)
}

func TestRunRematch_LockError(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := NewScheduler(sweeper, &fakeLock{err: errors.New("mongo down")}, "@every 1m", 10)

	s.RunRematch()

	assert.Zero(t, sweeper.count())
}

func TestRunRematch_ReleasesLockOnSweepFailure(t *testing.T) {
	lock := &fakeLock{}
	s := NewScheduler(&fakeSweeper{err: errors.New("boom")}, lock, "@every 1m", 5)

	s.RunRematch()

	assert.Equal(t, 1, lock.released)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&fakeSweeper{}, &fakeLock{}, "every now and then", 10)

	assert.Error(t, s.Start())
}

func TestStart_RunsOnSchedule(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := NewScheduler(sweeper, &fakeLock{}, "@every 1s", 3)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return sweeper.count() > 0 }, 3*time.Second, 50*time.Millisecond)
}
