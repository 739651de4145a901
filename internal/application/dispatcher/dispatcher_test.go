package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MiguelValor/shopify-automator/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func approved() *event.Event {
	return event.NewEvent(event.TypeApprovalApproved, "appr-1", "shop-1", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.SubscribeNamed(event.TypeApprovalApproved, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeApprovalApproved, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	if err := d.Dispatch(context.Background(), approved()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
}

func TestDispatch_OnlyMatchingType(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.Subscribe(event.TypeApprovalRejected, func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	if err := d.Dispatch(context.Background(), approved()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if called {
		t.Error("handler for a different event type was called")
	}
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")
	secondCalled := false

	d.SubscribeNamed(event.TypeApprovalApproved, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.SubscribeNamed(event.TypeApprovalApproved, "after", func(ctx context.Context, evt *event.Event) error {
		secondCalled = true
		return nil
	})

	err := d.Dispatch(context.Background(), approved())
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want wrapped boom", err)
	}
	if secondCalled {
		t.Error("handler after the failing one should not run")
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("logged errors = %d, want 1", logger.ErrorCount())
	}
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeApprovalApproved, func(ctx context.Context, evt *event.Event) error {
		panic("kaboom")
	})

	err := d.Dispatch(context.Background(), approved())
	if err == nil {
		t.Fatal("expected error from panicking handler")
	}
}

func TestDispatchAsync_CloseWaitsForHandlers(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32

	d.SubscribeAll("counter", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	}, event.TypeApprovalApproved, event.TypeApprovalRejected)

	for i := 0; i < 10; i++ {
		d.DispatchAsync(context.Background(), approved())
	}
	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeApprovalRejected, "appr-2", "shop-1", nil))

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := count.Load(); got != 11 {
		t.Errorf("handled = %d, want 11", got)
	}
}

func TestDispatchAsync_SurvivesCanceledContext(t *testing.T) {
	d := NewDispatcher()
	var sawCanceled atomic.Bool

	d.Subscribe(event.TypeApprovalApproved, func(ctx context.Context, evt *event.Event) error {
		if ctx.Err() != nil {
			sawCanceled.Store(true)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.DispatchAsync(ctx, approved())
	_ = d.Close()

	if sawCanceled.Load() {
		t.Error("async handler received a canceled context")
	}
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	if err := d.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second Close() should fail")
	}
	if err := d.Dispatch(context.Background(), approved()); err == nil {
		t.Error("Dispatch() after Close() should fail")
	}

	d.DispatchAsync(context.Background(), approved())
	if logger.ErrorCount() != 1 {
		t.Errorf("logged errors = %d, want 1 for dropped async event", logger.ErrorCount())
	}
}

func TestListHandlers(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeApprovalQueued, "lark", func(ctx context.Context, evt *event.Event) error { return nil })
	d.Subscribe(event.TypeApprovalQueued, func(ctx context.Context, evt *event.Event) error { return nil })

	infos := d.ListHandlers(event.TypeApprovalQueued)
	if len(infos) != 2 {
		t.Fatalf("len = %d, want 2", len(infos))
	}
	if infos[0].Name != "lark" || infos[1].Name != "handler-1" {
		t.Errorf("names = %q, %q", infos[0].Name, infos[1].Name)
	}
	if infos[0].Handler != nil {
		t.Error("ListHandlers should not expose handler funcs")
	}
	if len(d.ListHandlers(event.TypeApprovalExecuted)) != 0 {
		t.Error("expected no handlers for unsubscribed type")
	}
}
