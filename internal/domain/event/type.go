package event

// Type identifies the type of domain event
type Type string

const (
	TypeApprovalQueued           Type = "approval.queued"
	TypeApprovalApproved         Type = "approval.approved"
	TypeApprovalRejected         Type = "approval.rejected"
	TypeApprovalsExpired         Type = "approvals.expired"
	TypeApprovalExecuted         Type = "approval.executed"
	TypeApprovalExecutionFailed  Type = "approval.execution_failed"
	TypeApprovalExecutionSkipped Type = "approval.execution_skipped"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApprovalQueued,
		TypeApprovalApproved,
		TypeApprovalRejected,
		TypeApprovalsExpired,
		TypeApprovalExecuted,
		TypeApprovalExecutionFailed,
		TypeApprovalExecutionSkipped:
		return true
	default:
		return false
	}
}
