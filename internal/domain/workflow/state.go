package workflow

import "github.com/MiguelValor/shopify-automator/internal/domain/entity"

// State represents a lifecycle state of an approval request
type State string

const (
	StatePending  State = entity.StatusPending
	StateApproved State = entity.StatusApproved
	StateRejected State = entity.StatusRejected
	StateExpired  State = entity.StatusExpired
)

var validStates = map[State]bool{
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
	StateExpired:  true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return entity.IsTerminalStatus(string(s))
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
