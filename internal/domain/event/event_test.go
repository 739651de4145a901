package event

import (
	"testing"
	"time"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		eventType Type
		want      string
	}{
		{TypeApprovalQueued, "approval.queued"},
		{TypeApprovalApproved, "approval.approved"},
		{TypeApprovalRejected, "approval.rejected"},
		{TypeApprovalsExpired, "approvals.expired"},
		{TypeApprovalExecuted, "approval.executed"},
		{TypeApprovalExecutionFailed, "approval.execution_failed"},
		{TypeApprovalExecutionSkipped, "approval.execution_skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("Type.String() = %v, want %v", got, tt.want)
			}
			if !tt.eventType.IsValid() {
				t.Errorf("Type.IsValid() = false for %v", tt.eventType)
			}
		})
	}
}

func TestType_IsValidRejectsUnknown(t *testing.T) {
	if Type("approval.deleted").IsValid() {
		t.Error("unknown event type reported as valid")
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	evt := NewEvent(TypeApprovalApproved, "appr-1", "shop.myshopify.com", map[string]interface{}{
		"reviewed_by": "alice",
	})

	if evt.ID == "" {
		t.Error("expected generated ID")
	}
	if evt.ApprovalID != "appr-1" || evt.ShopID != "shop.myshopify.com" {
		t.Errorf("unexpected identity fields: %+v", evt)
	}
	if evt.Timestamp.Before(before) {
		t.Errorf("timestamp %v is before %v", evt.Timestamp, before)
	}
	if got := evt.GetPayloadString("reviewed_by"); got != "alice" {
		t.Errorf("GetPayloadString() = %q, want %q", got, "alice")
	}

	other := NewEvent(TypeApprovalApproved, "appr-1", "", nil)
	if other.ID == evt.ID {
		t.Error("event IDs must be unique")
	}
	if other.Payload == nil {
		t.Error("nil payload should be replaced by an empty map")
	}
}

func TestEvent_WithPayloadDoesNotMutateOriginal(t *testing.T) {
	evt := NewEvent(TypeApprovalsExpired, "", "", map[string]interface{}{"count": 2})
	updated := evt.WithPayload("count", int64(5))

	if got := evt.GetPayloadInt("count"); got != 2 {
		t.Errorf("original payload changed: count = %d", got)
	}
	if got := updated.GetPayloadInt("count"); got != 5 {
		t.Errorf("updated count = %d, want 5", got)
	}
	if updated.ID != evt.ID {
		t.Error("WithPayload should keep the event ID")
	}
}

func TestEvent_GetPayloadFloat(t *testing.T) {
	evt := NewEvent(TypeApprovalQueued, "a", "s", map[string]interface{}{
		"confidence": 0.42,
		"priority":   3,
	})

	if got := evt.GetPayloadFloat("confidence"); got != 0.42 {
		t.Errorf("GetPayloadFloat(confidence) = %v", got)
	}
	if got := evt.GetPayloadFloat("priority"); got != 3 {
		t.Errorf("GetPayloadFloat(priority) = %v", got)
	}
	if got := evt.GetPayloadFloat("missing"); got != 0 {
		t.Errorf("GetPayloadFloat(missing) = %v", got)
	}
}
