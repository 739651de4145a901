package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockExpirer struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (m *mockExpirer) ExpireOldApprovals(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.n, m.err
}

// memLocker is an in-process Locker with the same contract as RedisLocker
type memLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrLockHeld
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released++
		return nil
	}, nil
}

func TestExpiryWorker_RunOnce(t *testing.T) {
	expirer := &mockExpirer{n: 4}
	w := NewExpiryWorker(expirer, zap.NewNop())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, int32(1), expirer.calls.Load())
}

func TestExpiryWorker_RunOnceError(t *testing.T) {
	expirer := &mockExpirer{err: errors.New("database is locked")}
	w := NewExpiryWorker(expirer, zap.NewNop())

	_, err := w.RunOnce(context.Background())
	assert.EqualError(t, err, "database is locked")
}

func TestExpiryWorker_LockHeldSkipsSweep(t *testing.T) {
	expirer := &mockExpirer{n: 1}
	locker := newMemLocker()
	locker.held[sweepLockKey] = true

	w := NewExpiryWorker(expirer, zap.NewNop(), WithLocker(locker))
	_, err := w.RunOnce(context.Background())

	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Zero(t, expirer.calls.Load())
}

func TestExpiryWorker_ReleasesLock(t *testing.T) {
	expirer := &mockExpirer{n: 2}
	locker := newMemLocker()
	w := NewExpiryWorker(expirer, zap.NewNop(), WithLocker(locker))

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), expirer.calls.Load())
	assert.Equal(t, 2, locker.released)
	assert.Empty(t, locker.held)
}

func TestExpiryWorker_StartSweepsImmediatelyAndStops(t *testing.T) {
	expirer := &mockExpirer{}
	w := NewExpiryWorker(expirer, zap.NewNop(), WithInterval(time.Hour))

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return expirer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Equal(t, int32(1), expirer.calls.Load())
}

func TestExpiryWorker_TicksOnInterval(t *testing.T) {
	expirer := &mockExpirer{}
	w := NewExpiryWorker(expirer, zap.NewNop(), WithInterval(10*time.Millisecond))

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Eventually(t, func() bool { return expirer.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestExpiryWorker_LockTTL(t *testing.T) {
	assert.Equal(t, 10*time.Minute, NewExpiryWorker(nil, zap.NewNop()).lockTTL())
	assert.Equal(t, 30*time.Second, NewExpiryWorker(nil, zap.NewNop(), WithInterval(time.Minute)).lockTTL())
	assert.Equal(t, time.Second, NewExpiryWorker(nil, zap.NewNop(), WithInterval(time.Millisecond)).lockTTL())
}
