package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

// ErrUnknownActionType is returned when no handler is registered for an
// approval's action type. It does not invalidate the approval.
var ErrUnknownActionType = errors.New("unknown action type")

// PayloadError reports proposed data that cannot be interpreted for its action type
type PayloadError struct {
	ApprovalID string
	ActionType string
	Err        error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid %s payload for approval %s: %v", e.ActionType, e.ApprovalID, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Handler applies one kind of approved change
type Handler interface {
	Execute(ctx context.Context, approval *entity.ApprovalRequest) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, approval *entity.ApprovalRequest) error

func (f HandlerFunc) Execute(ctx context.Context, approval *entity.ApprovalRequest) error {
	return f(ctx, approval)
}

// Registry dispatches approvals to handlers by action type
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a handler to an action type, replacing any previous one
func (r *Registry) Register(actionType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = h
}

// ActionTypes lists registered action types in sorted order
func (r *Registry) ActionTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Execute applies the approval's proposed data through the matching handler
func (r *Registry) Execute(ctx context.Context, approval *entity.ApprovalRequest) error {
	r.mu.RLock()
	h, ok := r.handlers[approval.ActionType]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("No handler for action type, nothing applied",
			"approval_id", approval.ID,
			"action_type", approval.ActionType,
		)
		return fmt.Errorf("%w: %s", ErrUnknownActionType, approval.ActionType)
	}

	if err := h.Execute(ctx, approval); err != nil {
		return err
	}

	r.logger.Info("Approval applied",
		"approval_id", approval.ID,
		"shop_id", approval.ShopID,
		"action_type", approval.ActionType,
		"entity_id", approval.EntityID,
	)
	return nil
}
