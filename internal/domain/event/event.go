package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents something that happened to one approval request (or, for
// sweeps, to a batch of them; ApprovalID is then empty)
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	ApprovalID string                 `json:"approval_id,omitempty"`
	ShopID     string                 `json:"shop_id,omitempty"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, approvalID, shopID string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		ApprovalID: approvalID,
		ShopID:     shopID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	copied := *e
	copied.Payload = newPayload
	return &copied
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}
