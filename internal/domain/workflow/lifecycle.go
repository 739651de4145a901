package workflow

import (
	"fmt"
	"sort"
)

// Lifecycle is an immutable transition table. It holds no current state:
// the state of a request lives in the store and is checked there with a
// conditional update, so a Lifecycle can be shared by any number of callers.
type Lifecycle struct {
	transitions map[State]map[Trigger]State
}

// LifecycleBuilder configures a Lifecycle
type LifecycleBuilder struct {
	transitions map[State]map[Trigger]State
}

// NewLifecycleBuilder creates an empty builder
func NewLifecycleBuilder() *LifecycleBuilder {
	return &LifecycleBuilder{transitions: make(map[State]map[Trigger]State)}
}

// Permit allows trigger to move a request from one state to another.
// It panics on unknown states or on a transition leaving a terminal state.
func (b *LifecycleBuilder) Permit(from State, trigger Trigger, to State) *LifecycleBuilder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid source state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if from.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have outgoing transitions", from))
	}

	if b.transitions[from] == nil {
		b.transitions[from] = make(map[Trigger]State)
	}
	b.transitions[from][trigger] = to
	return b
}

// Build returns a Lifecycle detached from the builder
func (b *LifecycleBuilder) Build() *Lifecycle {
	table := make(map[State]map[Trigger]State, len(b.transitions))
	for from, byTrigger := range b.transitions {
		copied := make(map[Trigger]State, len(byTrigger))
		for trigger, to := range byTrigger {
			copied[trigger] = to
		}
		table[from] = copied
	}
	return &Lifecycle{transitions: table}
}

// ApprovalLifecycle returns the approval request lifecycle:
// pending is the only non-terminal state.
func ApprovalLifecycle() *Lifecycle {
	return NewLifecycleBuilder().
		Permit(StatePending, TriggerAutoApprove, StateApproved).
		Permit(StatePending, TriggerApprove, StateApproved).
		Permit(StatePending, TriggerReject, StateRejected).
		Permit(StatePending, TriggerExpire, StateExpired).
		Build()
}

// Next returns the state reached by firing trigger from the given state
func (l *Lifecycle) Next(from State, trigger Trigger) (State, error) {
	if !from.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidState, from)
	}
	to, ok := l.transitions[from][trigger]
	if !ok {
		return "", fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

// CanFire returns true if the trigger is permitted from the given state
func (l *Lifecycle) CanFire(from State, trigger Trigger) bool {
	_, ok := l.transitions[from][trigger]
	return ok
}

// PermittedTriggers returns the triggers that can be fired from state, sorted by name
func (l *Lifecycle) PermittedTriggers(from State) []Trigger {
	triggers := make([]Trigger, 0, len(l.transitions[from]))
	for trigger := range l.transitions[from] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
