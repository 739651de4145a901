package entity

import (
	"encoding/json"
	"time"
)

// ApprovalTTL is how long a request stays reviewable after creation
const ApprovalTTL = 7 * 24 * time.Hour

// ApprovalRequest is an AI-proposed change to store data awaiting (or past) a decision
type ApprovalRequest struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shopId"`
	CreatedAt time.Time `json:"createdAt"`

	ActionType string `json:"actionType"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`

	CurrentData  json.RawMessage `json:"currentData,omitempty"`
	ProposedData json.RawMessage `json:"proposedData"`

	Confidence *float64 `json:"confidence,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Priority   int      `json:"priority"`

	Status      string     `json:"status"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy  string     `json:"reviewedBy,omitempty"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`

	ExecutionStatus string     `json:"executionStatus"`
	ExecutedAt      *time.Time `json:"executedAt,omitempty"`
	ExecutionError  string     `json:"executionError,omitempty"`
}

// IsTerminal returns true once a decision (or expiry) has been recorded
func (a *ApprovalRequest) IsTerminal() bool {
	return IsTerminalStatus(a.Status)
}

// IsExpired reports whether the request is past its review deadline at now
func (a *ApprovalRequest) IsExpired(now time.Time) bool {
	return a.ExpiresAt.Before(now)
}

// StatusChange describes a transition written by the store in one conditional update.
// Zero-valued review fields are left untouched.
type StatusChange struct {
	To          string
	ReviewedAt  *time.Time
	ReviewedBy  string
	ReviewNotes string
}

// ExecutionOutcome is the result of dispatching an approved request
type ExecutionOutcome struct {
	Status     string
	ExecutedAt time.Time
	Error      string
}
