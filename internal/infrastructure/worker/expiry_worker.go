package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSweepInterval is how often pending approvals are checked for expiry
	DefaultSweepInterval = 3 * time.Hour

	sweepLockKey = "approval-expiry-sweep"
)

// Expirer moves overdue pending approvals to expired
type Expirer interface {
	ExpireOldApprovals(ctx context.Context) (int64, error)
}

// ExpiryWorker periodically expires stale approvals
type ExpiryWorker struct {
	expirer  Expirer
	locker   Locker
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// ExpiryOption configures an ExpiryWorker
type ExpiryOption func(*ExpiryWorker)

// WithInterval overrides DefaultSweepInterval
func WithInterval(d time.Duration) ExpiryOption {
	return func(w *ExpiryWorker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLocker makes the sweep take a lock so only one instance runs it per tick
func WithLocker(l Locker) ExpiryOption {
	return func(w *ExpiryWorker) {
		w.locker = l
	}
}

// NewExpiryWorker creates a new expiry sweeper
func NewExpiryWorker(expirer Expirer, logger *zap.Logger, opts ...ExpiryOption) *ExpiryWorker {
	w := &ExpiryWorker{
		expirer:  expirer,
		interval: DefaultSweepInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the worker name for identification
func (w *ExpiryWorker) Name() string {
	return "ExpiryWorker"
}

// Start runs one sweep immediately and then one per interval
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("expiry worker is already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("ExpiryWorker started", zap.Duration("interval", w.interval))
	go w.loop(ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep
func (w *ExpiryWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("ExpiryWorker stopped")
	return nil
}

func (w *ExpiryWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrLockHeld) && ctx.Err() == nil {
		w.logger.Error("Expiry sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep and returns the number of expired approvals.
// With a locker configured it returns ErrLockHeld when another instance is sweeping.
func (w *ExpiryWorker) RunOnce(ctx context.Context) (int64, error) {
	if w.locker != nil {
		release, err := w.locker.Acquire(ctx, sweepLockKey, w.lockTTL())
		if err != nil {
			if errors.Is(err, ErrLockHeld) {
				w.logger.Debug("Expiry sweep skipped, lock held elsewhere")
			}
			return 0, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	n, err := w.expirer.ExpireOldApprovals(ctx)
	if err != nil {
		return 0, err
	}

	w.logger.Info("Expiry sweep completed",
		zap.Int64("expired", n),
		zap.Duration("duration", time.Since(start)))
	return n, nil
}

// lockTTL bounds how long a crashed holder can block other instances
func (w *ExpiryWorker) lockTTL() time.Duration {
	ttl := w.interval / 2
	if ttl > 10*time.Minute {
		ttl = 10 * time.Minute
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
