// Package policy holds the confidence rules that route AI proposals.
package policy

const (
	// AutoApproveThreshold is the score an approval request must exceed to
	// be approved and executed without a human reviewer.
	AutoApproveThreshold = 0.85

	// DirectApplyThreshold is used by the optimizer before a proposal ever
	// reaches the approval queue: above it the change is applied straight
	// to the store. It is not consulted by the approval manager.
	DirectApplyThreshold = 0.8
)

// Decision is the outcome of evaluating a confidence score
type Decision struct {
	AutoApprove bool
}

// Decide returns whether a request with the given confidence is auto-approved.
// An absent score is treated as low confidence.
func Decide(confidence *float64) Decision {
	return Decision{AutoApprove: confidence != nil && *confidence > AutoApproveThreshold}
}

// ShouldApplyDirectly reports whether an optimizer proposal skips the approval queue
func ShouldApplyDirectly(confidence float64) bool {
	return confidence > DirectApplyThreshold
}
