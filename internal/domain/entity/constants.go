package entity

// Status values for ApprovalRequest
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusExpired  = "expired"
)

// Action types understood by the built-in executor handlers.
// The set is open: unknown types are stored and skipped at execution.
const (
	ActionProductUpdate   = "product_update"
	ActionPriceChange     = "price_change"
	ActionInventoryAdjust = "inventory_adjust"
)

// Entity types an approval can target
const (
	EntityProduct = "product"
	EntityVariant = "variant"
)

// Execution status constants
const (
	ExecutionNotExecuted = "not_executed"
	ExecutionSucceeded   = "succeeded"
	ExecutionFailed      = "failed"
	ExecutionSkipped     = "skipped" // unknown action type, nothing applied
)

// ReviewerSystemAutoApprove is recorded as reviewedBy on auto-approved requests
const ReviewerSystemAutoApprove = "system_auto_approve"

// IsTerminalStatus reports whether no further transition is allowed from status
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusApproved, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// IsValidEntityType reports whether t is a supported entity type
func IsValidEntityType(t string) bool {
	return t == EntityProduct || t == EntityVariant
}
