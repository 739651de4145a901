package workflow

// Trigger represents a decision or event that moves an approval between states
type Trigger string

const (
	TriggerAutoApprove Trigger = "AUTO_APPROVE"
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
	TriggerExpire      Trigger = "EXPIRE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
