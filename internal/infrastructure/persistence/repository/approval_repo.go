package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

const approvalColumns = `
	id, shop_id, created_at, action_type, entity_type, entity_id,
	current_data, proposed_data, confidence, reasoning, priority,
	status, reviewed_at, reviewed_by, review_notes, expires_at,
	execution_status, executed_at, execution_error`

// approvalRow mirrors the approval_queue table
type approvalRow struct {
	ID              string             `db:"id"`
	ShopID          string             `db:"shop_id"`
	CreatedAt       time.Time          `db:"created_at"`
	ActionType      string             `db:"action_type"`
	EntityType      string             `db:"entity_type"`
	EntityID        string             `db:"entity_id"`
	CurrentData     types.NullJSONText `db:"current_data"`
	ProposedData    types.JSONText     `db:"proposed_data"`
	Confidence      sql.NullFloat64    `db:"confidence"`
	Reasoning       sql.NullString     `db:"reasoning"`
	Priority        int                `db:"priority"`
	Status          string             `db:"status"`
	ReviewedAt      sql.NullTime       `db:"reviewed_at"`
	ReviewedBy      sql.NullString     `db:"reviewed_by"`
	ReviewNotes     sql.NullString     `db:"review_notes"`
	ExpiresAt       time.Time          `db:"expires_at"`
	ExecutionStatus string             `db:"execution_status"`
	ExecutedAt      sql.NullTime       `db:"executed_at"`
	ExecutionError  sql.NullString     `db:"execution_error"`
}

func (r approvalRow) toEntity() *entity.ApprovalRequest {
	a := &entity.ApprovalRequest{
		ID:              r.ID,
		ShopID:          r.ShopID,
		CreatedAt:       r.CreatedAt.UTC(),
		ActionType:      r.ActionType,
		EntityType:      r.EntityType,
		EntityID:        r.EntityID,
		ProposedData:    json.RawMessage(r.ProposedData),
		Reasoning:       r.Reasoning.String,
		Priority:        r.Priority,
		Status:          r.Status,
		ReviewedBy:      r.ReviewedBy.String,
		ReviewNotes:     r.ReviewNotes.String,
		ExpiresAt:       r.ExpiresAt.UTC(),
		ExecutionStatus: r.ExecutionStatus,
		ExecutionError:  r.ExecutionError.String,
	}
	if r.CurrentData.Valid {
		a.CurrentData = json.RawMessage(r.CurrentData.JSONText)
	}
	if r.Confidence.Valid {
		c := r.Confidence.Float64
		a.Confidence = &c
	}
	if r.ReviewedAt.Valid {
		t := r.ReviewedAt.Time.UTC()
		a.ReviewedAt = &t
	}
	if r.ExecutedAt.Valid {
		t := r.ExecutedAt.Time.UTC()
		a.ExecutedAt = &t
	}
	return a
}

// ApprovalRepository implements port.ApprovalRepository over SQLite or PostgreSQL
type ApprovalRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sqlx.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new approval request
func (r *ApprovalRepository) Create(ctx context.Context, a *entity.ApprovalRequest) error {
	query := r.db.Rebind(`
		INSERT INTO approval_queue (` + approvalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	currentData := types.NullJSONText{}
	if len(a.CurrentData) > 0 {
		currentData = types.NullJSONText{JSONText: types.JSONText(a.CurrentData), Valid: true}
	}

	executionStatus := a.ExecutionStatus
	if executionStatus == "" {
		executionStatus = entity.ExecutionNotExecuted
	}

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.ShopID,
		a.CreatedAt.UTC(),
		a.ActionType,
		a.EntityType,
		a.EntityID,
		currentData,
		types.JSONText(a.ProposedData),
		a.Confidence,
		nullString(a.Reasoning),
		a.Priority,
		a.Status,
		nullTime(a.ReviewedAt),
		nullString(a.ReviewedBy),
		nullString(a.ReviewNotes),
		a.ExpiresAt.UTC(),
		executionStatus,
		nullTime(a.ExecutedAt),
		nullString(a.ExecutionError),
	)
	if err != nil {
		r.logger.Error("Failed to create approval", zap.Error(err), zap.String("shop_id", a.ShopID))
		return fmt.Errorf("failed to create approval: %w", err)
	}
	return nil
}

// GetByID retrieves an approval by ID, or nil if it does not exist
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := r.db.Rebind(`SELECT ` + approvalColumns + ` FROM approval_queue WHERE id = ?`)

	var row approvalRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return row.toEntity(), nil
}

// Transition updates one record only while it is still in status from
func (r *ApprovalRepository) Transition(ctx context.Context, id, from string, change entity.StatusChange) (bool, error) {
	set, setArgs := changeClause(change)
	query := r.db.Rebind(`UPDATE approval_queue SET ` + set + ` WHERE id = ? AND status = ?`)

	args := append(setArgs, id, from)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to transition approval", zap.Error(err), zap.String("id", id), zap.String("to", change.To))
		return false, fmt.Errorf("failed to transition approval: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// TransitionMany updates every record matching filter in a single statement
func (r *ApprovalRepository) TransitionMany(ctx context.Context, filter port.ApprovalFilter, change entity.StatusChange) (int64, error) {
	if filter.Status == "" {
		return 0, errors.New("transition filter must constrain status")
	}

	where, whereArgs, err := whereClause(filter)
	if err != nil {
		return 0, err
	}
	set, setArgs := changeClause(change)

	query := r.db.Rebind(`UPDATE approval_queue SET ` + set + where)
	result, err := r.db.ExecContext(ctx, query, append(setArgs, whereArgs...)...)
	if err != nil {
		r.logger.Error("Failed to transition approvals", zap.Error(err), zap.String("to", change.To))
		return 0, fmt.Errorf("failed to transition approvals: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// List returns approvals matching filter, most urgent and most recent first
func (r *ApprovalRepository) List(ctx context.Context, filter port.ApprovalFilter) ([]*entity.ApprovalRequest, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + approvalColumns + ` FROM approval_queue` + where + ` ORDER BY priority DESC, created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []approvalRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}

	approvals := make([]*entity.ApprovalRequest, 0, len(rows))
	for _, row := range rows {
		approvals = append(approvals, row.toEntity())
	}
	return approvals, nil
}

// RecordExecution stores the outcome of applying an approved request
func (r *ApprovalRepository) RecordExecution(ctx context.Context, id string, outcome entity.ExecutionOutcome) error {
	query := r.db.Rebind(`
		UPDATE approval_queue
		SET execution_status = ?, executed_at = ?, execution_error = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		outcome.Status,
		outcome.ExecutedAt.UTC(),
		nullString(outcome.Error),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to record execution", zap.Error(err), zap.String("id", id))
		return fmt.Errorf("failed to record execution: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("approval %s not found", id)
	}
	return nil
}

// changeClause renders the SET list for a status change. Review fields are
// only written when present.
func changeClause(change entity.StatusChange) (string, []interface{}) {
	cols := []string{"status = ?"}
	args := []interface{}{change.To}

	if change.ReviewedAt != nil {
		cols = append(cols, "reviewed_at = ?")
		args = append(args, change.ReviewedAt.UTC())
	}
	if change.ReviewedBy != "" {
		cols = append(cols, "reviewed_by = ?")
		args = append(args, change.ReviewedBy)
	}
	if change.ReviewNotes != "" {
		cols = append(cols, "review_notes = ?")
		args = append(args, change.ReviewNotes)
	}
	return strings.Join(cols, ", "), args
}

func whereClause(filter port.ApprovalFilter) (string, []interface{}, error) {
	var conds []string
	var args []interface{}

	if filter.ShopID != "" {
		conds = append(conds, "shop_id = ?")
		args = append(args, filter.ShopID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ExecutionStatus != "" {
		conds = append(conds, "execution_status = ?")
		args = append(args, filter.ExecutionStatus)
	}
	if filter.ExpiresBefore != nil {
		conds = append(conds, "expires_at < ?")
		args = append(args, filter.ExpiresBefore.UTC())
	}
	if len(filter.IDs) > 0 {
		in, inArgs, err := sqlx.In("id IN (?)", filter.IDs)
		if err != nil {
			return "", nil, fmt.Errorf("failed to expand id list: %w", err)
		}
		conds = append(conds, in)
		args = append(args, inArgs...)
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
