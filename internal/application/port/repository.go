package port

import (
	"context"
	"time"

	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

// ApprovalFilter selects approval requests. Empty fields do not constrain.
type ApprovalFilter struct {
	ShopID          string
	Status          string
	ExecutionStatus string
	IDs             []string
	ExpiresBefore   *time.Time
	Limit           int
}

// ApprovalRepository defines persistence operations for ApprovalRequest.
//
// Status transitions are conditional updates evaluated by the store so that
// concurrent writers (including other processes) cannot both win.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *entity.ApprovalRequest) error

	// GetByID returns nil, nil when no record exists
	GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error)

	// Transition applies change only if the record is currently in status from.
	// It reports whether a row was updated.
	Transition(ctx context.Context, id string, from string, change entity.StatusChange) (bool, error)

	// TransitionMany applies change to every record matching filter in one statement.
	// filter.Status is required and acts as the compare value.
	TransitionMany(ctx context.Context, filter ApprovalFilter, change entity.StatusChange) (int64, error)

	// List returns matching records ordered by priority DESC, created_at DESC
	List(ctx context.Context, filter ApprovalFilter) ([]*entity.ApprovalRequest, error)

	// RecordExecution stores the outcome of dispatching an approved request
	RecordExecution(ctx context.Context, id string, outcome entity.ExecutionOutcome) error
}
