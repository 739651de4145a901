package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MiguelValor/shopify-automator/internal/application/dispatcher"
	"github.com/MiguelValor/shopify-automator/internal/application/executor"
	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
	"github.com/MiguelValor/shopify-automator/internal/domain/event"
	"github.com/MiguelValor/shopify-automator/internal/domain/policy"
	"github.com/MiguelValor/shopify-automator/internal/domain/workflow"
)

const tracerName = "github.com/MiguelValor/shopify-automator/internal/application/service"

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ActionExecutor applies an approved request to the shop
type ActionExecutor interface {
	Execute(ctx context.Context, approval *entity.ApprovalRequest) error
}

// CreateApprovalParams is the input of CreateApproval
type CreateApprovalParams struct {
	ShopID       string          `json:"shopId"`
	ActionType   string          `json:"actionType"`
	EntityType   string          `json:"entityType"`
	EntityID     string          `json:"entityId"`
	CurrentData  json.RawMessage `json:"currentData"`
	ProposedData json.RawMessage `json:"proposedData"`
	Confidence   *float64        `json:"confidence"`
	Reasoning    string          `json:"reasoning"`
	Priority     *int            `json:"priority"`
}

// BulkItemError describes why one item of a bulk operation failed
type BulkItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkResult is the outcome of one id in BulkApprove
type BulkResult struct {
	ID      string                  `json:"id"`
	Success bool                    `json:"success"`
	Data    *entity.ApprovalRequest `json:"data,omitempty"`
	Error   *BulkItemError          `json:"error,omitempty"`
}

// ApprovalManager owns the approval lifecycle: creation, decisions, expiry
// and dispatch of approved changes.
type ApprovalManager interface {
	CreateApproval(ctx context.Context, params CreateApprovalParams) (*entity.ApprovalRequest, error)
	ApproveItem(ctx context.Context, id, reviewedBy string) (*entity.ApprovalRequest, error)
	RejectItem(ctx context.Context, id, reviewedBy, notes string) (*entity.ApprovalRequest, error)
	GetApproval(ctx context.Context, id string) (*entity.ApprovalRequest, error)
	GetPendingApprovals(ctx context.Context, shopID string) ([]*entity.ApprovalRequest, error)
	ListApprovals(ctx context.Context, filter port.ApprovalFilter) ([]*entity.ApprovalRequest, error)
	ListUnapplied(ctx context.Context, shopID string) ([]*entity.ApprovalRequest, error)
	BulkApprove(ctx context.Context, ids []string, reviewedBy string) ([]BulkResult, error)
	BulkReject(ctx context.Context, ids []string, reviewedBy, notes string) (int64, error)
	ExpireOldApprovals(ctx context.Context) (int64, error)
}

type approvalManagerImpl struct {
	repo       port.ApprovalRepository
	executor   ActionExecutor
	dispatcher dispatcher.Dispatcher
	lifecycle  *workflow.Lifecycle
	logger     Logger
	tracer     trace.Tracer
	ttl        time.Duration
	now        func() time.Time
}

// ManagerOption configures the approval manager
type ManagerOption func(*approvalManagerImpl)

// WithDispatcher publishes lifecycle events to d
func WithDispatcher(d dispatcher.Dispatcher) ManagerOption {
	return func(m *approvalManagerImpl) {
		m.dispatcher = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ManagerOption {
	return func(m *approvalManagerImpl) {
		m.now = now
	}
}

// WithTTL overrides how long a request stays pending before it may expire
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *approvalManagerImpl) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewApprovalManager creates a new ApprovalManager
func NewApprovalManager(
	repo port.ApprovalRepository,
	executor ActionExecutor,
	logger Logger,
	opts ...ManagerOption,
) ApprovalManager {
	m := &approvalManagerImpl{
		repo:      repo,
		executor:  executor,
		lifecycle: workflow.ApprovalLifecycle(),
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		ttl:       entity.ApprovalTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateApproval stores a new pending request and, when the confidence
// policy allows it, approves and applies it immediately.
func (m *approvalManagerImpl) CreateApproval(ctx context.Context, params CreateApprovalParams) (*entity.ApprovalRequest, error) {
	ctx, span := m.tracer.Start(ctx, "approval.create", trace.WithAttributes(
		attribute.String("shop.id", params.ShopID),
		attribute.String("approval.action_type", params.ActionType),
	))
	defer span.End()

	if err := validateCreate(params); err != nil {
		return nil, m.fail(span, err)
	}

	now := m.now().UTC()
	approval := &entity.ApprovalRequest{
		ID:              uuid.New().String(),
		ShopID:          params.ShopID,
		CreatedAt:       now,
		ActionType:      params.ActionType,
		EntityType:      params.EntityType,
		EntityID:        params.EntityID,
		CurrentData:     params.CurrentData,
		ProposedData:    params.ProposedData,
		Confidence:      params.Confidence,
		Reasoning:       params.Reasoning,
		Status:          entity.StatusPending,
		ExpiresAt:       now.Add(m.ttl),
		ExecutionStatus: entity.ExecutionNotExecuted,
	}
	if params.Priority != nil {
		approval.Priority = *params.Priority
	}

	if err := m.repo.Create(ctx, approval); err != nil {
		m.logger.Error("Failed to create approval", "error", err, "shop_id", params.ShopID)
		return nil, m.fail(span, fmt.Errorf("create approval: %w", err))
	}
	span.SetAttributes(attribute.String("approval.id", approval.ID))

	decision := policy.Decide(params.Confidence)
	if !decision.AutoApprove {
		m.logger.Info("Approval queued for review",
			"approval_id", approval.ID,
			"shop_id", approval.ShopID,
			"action_type", approval.ActionType,
		)
		m.publish(ctx, event.TypeApprovalQueued, approval, map[string]interface{}{
			"action_type": approval.ActionType,
			"priority":    approval.Priority,
		})
		return approval, nil
	}

	// The record is fresh so the pending guard only loses to a concurrent
	// decision made by someone who already knew the new id.
	if err := m.decide(ctx, approval, workflow.TriggerAutoApprove, entity.ReviewerSystemAutoApprove, ""); err != nil {
		return nil, m.fail(span, err)
	}
	m.logger.Info("Approval auto-approved",
		"approval_id", approval.ID,
		"confidence", *params.Confidence,
	)

	if err := m.execute(ctx, approval); err != nil {
		return approval, m.fail(span, err)
	}
	return approval, nil
}

// ApproveItem approves a pending request and applies it synchronously.
// If applying fails the approval stands and the returned error is a
// payload or execution error.
func (m *approvalManagerImpl) ApproveItem(ctx context.Context, id, reviewedBy string) (*entity.ApprovalRequest, error) {
	ctx, span := m.tracer.Start(ctx, "approval.approve", trace.WithAttributes(attribute.String("approval.id", id)))
	defer span.End()

	if strings.TrimSpace(reviewedBy) == "" {
		return nil, m.fail(span, NewValidationError("reviewedBy is required"))
	}

	approval, err := m.load(ctx, id)
	if err != nil {
		return nil, m.fail(span, err)
	}

	if err := m.decide(ctx, approval, workflow.TriggerApprove, reviewedBy, ""); err != nil {
		return nil, m.fail(span, err)
	}
	m.logger.Info("Approval approved", "approval_id", id, "reviewed_by", reviewedBy)

	if err := m.execute(ctx, approval); err != nil {
		return approval, m.fail(span, err)
	}
	return approval, nil
}

// RejectItem rejects a pending request. Nothing is applied.
func (m *approvalManagerImpl) RejectItem(ctx context.Context, id, reviewedBy, notes string) (*entity.ApprovalRequest, error) {
	ctx, span := m.tracer.Start(ctx, "approval.reject", trace.WithAttributes(attribute.String("approval.id", id)))
	defer span.End()

	if strings.TrimSpace(reviewedBy) == "" {
		return nil, m.fail(span, NewValidationError("reviewedBy is required"))
	}

	approval, err := m.load(ctx, id)
	if err != nil {
		return nil, m.fail(span, err)
	}

	if err := m.decide(ctx, approval, workflow.TriggerReject, reviewedBy, notes); err != nil {
		return nil, m.fail(span, err)
	}
	m.logger.Info("Approval rejected", "approval_id", id, "reviewed_by", reviewedBy)
	return approval, nil
}

// GetApproval returns one request by id
func (m *approvalManagerImpl) GetApproval(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	return m.load(ctx, id)
}

// GetPendingApprovals returns the shop's pending requests, most urgent and most recent first
func (m *approvalManagerImpl) GetPendingApprovals(ctx context.Context, shopID string) ([]*entity.ApprovalRequest, error) {
	if shopID == "" {
		return nil, NewValidationError("shopId is required")
	}
	return m.ListApprovals(ctx, port.ApprovalFilter{ShopID: shopID, Status: entity.StatusPending})
}

// ListApprovals returns requests matching filter in priority order
func (m *approvalManagerImpl) ListApprovals(ctx context.Context, filter port.ApprovalFilter) ([]*entity.ApprovalRequest, error) {
	approvals, err := m.repo.List(ctx, filter)
	if err != nil {
		m.logger.Error("Failed to list approvals", "error", err, "shop_id", filter.ShopID)
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}

// ListUnapplied returns approved requests whose execution failed
func (m *approvalManagerImpl) ListUnapplied(ctx context.Context, shopID string) ([]*entity.ApprovalRequest, error) {
	if shopID == "" {
		return nil, NewValidationError("shopId is required")
	}
	return m.ListApprovals(ctx, port.ApprovalFilter{
		ShopID:          shopID,
		Status:          entity.StatusApproved,
		ExecutionStatus: entity.ExecutionFailed,
	})
}

// BulkApprove approves each id in order. A failing id never stops the batch.
func (m *approvalManagerImpl) BulkApprove(ctx context.Context, ids []string, reviewedBy string) ([]BulkResult, error) {
	if strings.TrimSpace(reviewedBy) == "" {
		return nil, NewValidationError("reviewedBy is required")
	}

	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		approval, err := m.ApproveItem(ctx, id, reviewedBy)
		result := BulkResult{ID: id, Success: err == nil, Data: approval}
		if err != nil {
			result.Error = bulkItemError(err)
			m.logger.Warn("Bulk approve item failed", "approval_id", id, "error", err)
		}
		results = append(results, result)
	}
	return results, nil
}

// BulkReject rejects every listed id that is still pending in one statement
func (m *approvalManagerImpl) BulkReject(ctx context.Context, ids []string, reviewedBy, notes string) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "approval.bulk_reject", trace.WithAttributes(attribute.Int("approval.count", len(ids))))
	defer span.End()

	if strings.TrimSpace(reviewedBy) == "" {
		return 0, m.fail(span, NewValidationError("reviewedBy is required"))
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := m.now().UTC()
	n, err := m.repo.TransitionMany(ctx,
		port.ApprovalFilter{IDs: ids, Status: entity.StatusPending},
		entity.StatusChange{
			To:          m.target(workflow.TriggerReject),
			ReviewedAt:  &now,
			ReviewedBy:  reviewedBy,
			ReviewNotes: notes,
		},
	)
	if err != nil {
		m.logger.Error("Bulk reject failed", "error", err, "count", len(ids))
		return 0, m.fail(span, fmt.Errorf("bulk reject: %w", err))
	}

	m.logger.Info("Bulk reject completed", "requested", len(ids), "rejected", n, "reviewed_by", reviewedBy)
	if n > 0 {
		m.publish(ctx, event.TypeApprovalRejected, nil, map[string]interface{}{
			"count":       n,
			"reviewed_by": reviewedBy,
		})
	}
	return n, nil
}

// ExpireOldApprovals moves every overdue pending request to expired.
// Running it again immediately changes nothing.
func (m *approvalManagerImpl) ExpireOldApprovals(ctx context.Context) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "approval.expire")
	defer span.End()

	now := m.now().UTC()
	n, err := m.repo.TransitionMany(ctx,
		port.ApprovalFilter{Status: entity.StatusPending, ExpiresBefore: &now},
		entity.StatusChange{To: m.target(workflow.TriggerExpire)},
	)
	if err != nil {
		m.logger.Error("Failed to expire approvals", "error", err)
		return 0, m.fail(span, fmt.Errorf("expire approvals: %w", err))
	}

	span.SetAttributes(attribute.Int64("approval.expired", n))
	if n > 0 {
		m.logger.Info("Expired stale approvals", "count", n)
		m.publish(ctx, event.TypeApprovalsExpired, nil, map[string]interface{}{"count": n})
	}
	return n, nil
}

func (m *approvalManagerImpl) load(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("approval id is required")
	}
	approval, err := m.repo.GetByID(ctx, id)
	if err != nil {
		m.logger.Error("Failed to get approval", "error", err, "approval_id", id)
		return nil, fmt.Errorf("get approval: %w", err)
	}
	if approval == nil {
		return nil, newNotFoundError(id)
	}
	return approval, nil
}

// decide fires a decision trigger against approval with a conditional
// update and, on success, mirrors the written fields onto approval.
func (m *approvalManagerImpl) decide(ctx context.Context, approval *entity.ApprovalRequest, trigger workflow.Trigger, reviewedBy, notes string) error {
	from := workflow.State(approval.Status)
	to, err := m.lifecycle.Next(from, trigger)
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			return newInvalidStateError(approval.ID, approval.Status)
		}
		return fmt.Errorf("approval %s: %w", approval.ID, err)
	}

	now := m.now().UTC()
	change := entity.StatusChange{
		To:          to.String(),
		ReviewedAt:  &now,
		ReviewedBy:  reviewedBy,
		ReviewNotes: notes,
	}

	ok, err := m.repo.Transition(ctx, approval.ID, from.String(), change)
	if err != nil {
		m.logger.Error("Failed to transition approval", "error", err, "approval_id", approval.ID, "to", to)
		return fmt.Errorf("transition approval: %w", err)
	}
	if !ok {
		// Lost the race; report what the winner left behind.
		current, err := m.repo.GetByID(ctx, approval.ID)
		if err != nil {
			return fmt.Errorf("get approval: %w", err)
		}
		if current == nil {
			return newNotFoundError(approval.ID)
		}
		return newInvalidStateError(approval.ID, current.Status)
	}

	approval.Status = change.To
	approval.ReviewedAt = change.ReviewedAt
	approval.ReviewedBy = change.ReviewedBy
	if notes != "" {
		approval.ReviewNotes = notes
	}

	eventType := event.TypeApprovalApproved
	if to == workflow.StateRejected {
		eventType = event.TypeApprovalRejected
	}
	m.publish(ctx, eventType, approval, map[string]interface{}{
		"reviewed_by": reviewedBy,
		"trigger":     trigger.String(),
		"count":       int64(1),
	})
	return nil
}

// execute dispatches an approved request and records the outcome. Unknown
// action types are recorded as skipped and are not errors.
func (m *approvalManagerImpl) execute(ctx context.Context, approval *entity.ApprovalRequest) error {
	ctx, span := m.tracer.Start(ctx, "approval.execute", trace.WithAttributes(
		attribute.String("approval.id", approval.ID),
		attribute.String("approval.action_type", approval.ActionType),
	))
	defer span.End()

	execErr := m.executor.Execute(ctx, approval)

	outcome := entity.ExecutionOutcome{Status: entity.ExecutionSucceeded, ExecutedAt: m.now().UTC()}
	eventType := event.TypeApprovalExecuted
	var result error

	switch {
	case execErr == nil:
	case errors.Is(execErr, executor.ErrUnknownActionType):
		outcome.Status = entity.ExecutionSkipped
		outcome.Error = execErr.Error()
		eventType = event.TypeApprovalExecutionSkipped
		m.logger.Warn("Approval has no executor, left unapplied",
			"approval_id", approval.ID,
			"action_type", approval.ActionType,
		)
	default:
		outcome.Status = entity.ExecutionFailed
		outcome.Error = execErr.Error()
		eventType = event.TypeApprovalExecutionFailed

		var perr *executor.PayloadError
		if errors.As(execErr, &perr) {
			result = newPayloadError(approval.ID, execErr)
		} else {
			result = newExecutionError(approval.ID, execErr)
		}
		m.logger.Error("Approved change was not applied",
			"approval_id", approval.ID,
			"shop_id", approval.ShopID,
			"action_type", approval.ActionType,
			"error", execErr,
		)
	}

	if err := m.repo.RecordExecution(ctx, approval.ID, outcome); err != nil {
		m.logger.Error("Failed to record execution outcome", "error", err, "approval_id", approval.ID, "status", outcome.Status)
	}

	executedAt := outcome.ExecutedAt
	approval.ExecutionStatus = outcome.Status
	approval.ExecutedAt = &executedAt
	approval.ExecutionError = outcome.Error

	m.publish(ctx, eventType, approval, map[string]interface{}{
		"action_type": approval.ActionType,
		"error":       outcome.Error,
	})

	if result != nil {
		span.RecordError(result)
		span.SetStatus(codes.Error, "execution failed")
	}
	return result
}

// target returns the state a trigger leads to from pending
func (m *approvalManagerImpl) target(trigger workflow.Trigger) string {
	to, err := m.lifecycle.Next(workflow.StatePending, trigger)
	if err != nil {
		panic(fmt.Sprintf("approval lifecycle has no %s transition from pending", trigger))
	}
	return to.String()
}

func (m *approvalManagerImpl) publish(ctx context.Context, t event.Type, approval *entity.ApprovalRequest, payload map[string]interface{}) {
	if m.dispatcher == nil {
		return
	}
	var id, shop string
	if approval != nil {
		id, shop = approval.ID, approval.ShopID
	}
	m.dispatcher.DispatchAsync(ctx, event.NewEvent(t, id, shop, payload))
}

func (m *approvalManagerImpl) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func validateCreate(p CreateApprovalParams) error {
	var missing []string
	if strings.TrimSpace(p.ShopID) == "" {
		missing = append(missing, "shopId")
	}
	if strings.TrimSpace(p.ActionType) == "" {
		missing = append(missing, "actionType")
	}
	if strings.TrimSpace(p.EntityType) == "" {
		missing = append(missing, "entityType")
	}
	if strings.TrimSpace(p.EntityID) == "" {
		missing = append(missing, "entityId")
	}
	if isEmptyJSON(p.ProposedData) {
		missing = append(missing, "proposedData")
	}
	if len(missing) > 0 {
		return NewValidationError("missing required fields: %s", strings.Join(missing, ", "))
	}

	if !entity.IsValidEntityType(p.EntityType) {
		return NewValidationError("entityType must be %q or %q, got %q", entity.EntityProduct, entity.EntityVariant, p.EntityType)
	}
	if !json.Valid(p.ProposedData) {
		return NewValidationError("proposedData is not valid JSON")
	}
	if len(p.CurrentData) > 0 && !json.Valid(p.CurrentData) {
		return NewValidationError("currentData is not valid JSON")
	}
	if c := p.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		return NewValidationError("confidence must be between 0 and 1, got %v", *c)
	}
	return nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func bulkItemError(err error) *BulkItemError {
	var e *Error
	if errors.As(err, &e) {
		return &BulkItemError{Code: e.Code, Message: e.Error()}
	}
	return &BulkItemError{Code: "APPROVAL_FAILED", Message: err.Error()}
}
