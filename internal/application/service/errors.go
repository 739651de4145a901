package service

import (
	"errors"
	"fmt"
)

// Kind classifies manager failures so callers can map them to responses
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindPayload      Kind = "payload"
	KindExecution    Kind = "execution"
)

// Sentinels for errors.Is
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("approval not found")
	ErrInvalidState = errors.New("approval is not pending")
	ErrPayload      = errors.New("proposed data cannot be applied")
	ErrExecution    = errors.New("execution failed")
)

// Error codes reported to API clients
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidState = "INVALID_STATE"
	CodePayload      = "INVALID_PAYLOAD"
	CodeExecution    = "EXECUTION_FAILED"
)

// Error is returned by the approval manager for every classified failure.
// Payload and execution errors are raised after the approval has been
// durably approved; the decision stands.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	ApprovalID string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.ApprovalID != "" {
		msg = fmt.Sprintf("%s (approval %s)", msg, e.ApprovalID)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause
func (e *Error) Unwrap() []error {
	errs := []error{sentinelFor(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sentinelFor(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindInvalidState:
		return ErrInvalidState
	case KindPayload:
		return ErrPayload
	default:
		return ErrExecution
	}
}

// NewValidationError reports bad caller input
func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func newNotFoundError(id string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "approval not found", ApprovalID: id}
}

func newInvalidStateError(id, status string) *Error {
	return &Error{
		Kind:       KindInvalidState,
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("approval is already %s", status),
		ApprovalID: id,
	}
}

func newPayloadError(id string, err error) *Error {
	return &Error{Kind: KindPayload, Code: CodePayload, Message: "proposed data is invalid for action", ApprovalID: id, Err: err}
}

func newExecutionError(id string, err error) *Error {
	return &Error{Kind: KindExecution, Code: CodeExecution, Message: "approved but not applied", ApprovalID: id, Err: err}
}

// KindOf returns the kind of a manager error, or "" for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
