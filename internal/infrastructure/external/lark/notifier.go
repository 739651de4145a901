package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

// Notifier posts approval cards to the review chat
type Notifier struct {
	sender       MessageSender
	chatID       string
	dashboardURL string
	logger       *zap.Logger
}

// NewNotifier creates a review notifier posting to chatID
func NewNotifier(sender MessageSender, cfg Config, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:       sender,
		chatID:       cfg.ReviewChatID,
		dashboardURL: strings.TrimRight(cfg.DashboardURL, "/"),
		logger:       logger,
	}
}

// NotifyPending implements port.ReviewNotifier
func (n *Notifier) NotifyPending(ctx context.Context, a *entity.ApprovalRequest) error {
	confidence := "n/a"
	if a.Confidence != nil {
		confidence = fmt.Sprintf("%.0f%%", *a.Confidence*100)
	}

	lines := []string{
		fmt.Sprintf("**Shop:** %s", a.ShopID),
		fmt.Sprintf("**Action:** %s on %s `%s`", a.ActionType, a.EntityType, a.EntityID),
		fmt.Sprintf("**Confidence:** %s  **Priority:** %d", confidence, a.Priority),
		fmt.Sprintf("**Expires:** %s", a.ExpiresAt.Format("2006-01-02 15:04 MST")),
	}
	if a.Reasoning != "" {
		lines = append(lines, fmt.Sprintf("**Reasoning:** %s", a.Reasoning))
	}

	return n.send(ctx, a, "Approval needed", "orange", lines)
}

// NotifyExecutionFailed implements port.ReviewNotifier
func (n *Notifier) NotifyExecutionFailed(ctx context.Context, a *entity.ApprovalRequest, reason string) error {
	lines := []string{
		fmt.Sprintf("**Shop:** %s", a.ShopID),
		fmt.Sprintf("**Action:** %s on %s `%s`", a.ActionType, a.EntityType, a.EntityID),
		fmt.Sprintf("**Approved by:** %s", a.ReviewedBy),
		fmt.Sprintf("**Error:** %s", reason),
		"The change was approved but not applied to the store.",
	}
	return n.send(ctx, a, "Approved change failed to apply", "red", lines)
}

func (n *Notifier) send(ctx context.Context, a *entity.ApprovalRequest, title, color string, lines []string) error {
	content, err := json.Marshal(n.card(a, title, color, lines))
	if err != nil {
		return fmt.Errorf("failed to marshal card: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, ReceiveIDTypeChat, n.chatID, "interactive", string(content))
	if err != nil {
		return err
	}

	n.logger.Info("Review card sent",
		zap.String("approval_id", a.ID),
		zap.String("message_id", messageID),
		zap.String("title", title))
	return nil
}

func (n *Notifier) card(a *entity.ApprovalRequest, title, color string, lines []string) map[string]interface{} {
	elements := []interface{}{
		map[string]interface{}{
			"tag":  "div",
			"text": map[string]interface{}{"tag": "lark_md", "content": strings.Join(lines, "\n")},
		},
	}

	if n.dashboardURL != "" {
		elements = append(elements, map[string]interface{}{
			"tag": "action",
			"actions": []interface{}{
				map[string]interface{}{
					"tag":  "button",
					"type": "primary",
					"text": map[string]interface{}{"tag": "plain_text", "content": "Open in dashboard"},
					"url":  fmt.Sprintf("%s/approvals/%s", n.dashboardURL, a.ID),
				},
			},
		})
	}

	return map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": color,
			"title":    map[string]interface{}{"tag": "plain_text", "content": title},
		},
		"elements": elements,
	}
}

// NoopNotifier is used when no review chat is configured
type NoopNotifier struct{}

func (NoopNotifier) NotifyPending(context.Context, *entity.ApprovalRequest) error { return nil }

func (NoopNotifier) NotifyExecutionFailed(context.Context, *entity.ApprovalRequest, string) error {
	return nil
}

var (
	_ port.ReviewNotifier = (*Notifier)(nil)
	_ port.ReviewNotifier = NoopNotifier{}
)
