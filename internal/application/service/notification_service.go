package service

import (
	"context"
	"fmt"

	"github.com/MiguelValor/shopify-automator/internal/application/dispatcher"
	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/domain/event"
)

// NotificationService forwards lifecycle events that need a human to the review notifier
type NotificationService interface {
	// Register subscribes the service to the dispatcher
	Register(d dispatcher.Dispatcher)
	HandleQueued(ctx context.Context, evt *event.Event) error
	HandleExecutionFailed(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	repo     port.ApprovalRepository
	notifier port.ReviewNotifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo port.ApprovalRepository, notifier port.ReviewNotifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeApprovalQueued, "review-notifier", s.HandleQueued)
	d.SubscribeNamed(event.TypeApprovalExecutionFailed, "review-notifier", s.HandleExecutionFailed)
}

// HandleQueued tells reviewers that a request is waiting
func (s *notificationServiceImpl) HandleQueued(ctx context.Context, evt *event.Event) error {
	approval, err := s.repo.GetByID(ctx, evt.ApprovalID)
	if err != nil {
		return fmt.Errorf("get approval: %w", err)
	}
	if approval == nil {
		s.logger.Warn("Queued approval disappeared before notification", "approval_id", evt.ApprovalID)
		return nil
	}

	if err := s.notifier.NotifyPending(ctx, approval); err != nil {
		s.logger.Error("Failed to notify reviewers", "error", err, "approval_id", approval.ID)
		return err
	}
	s.logger.Info("Reviewers notified", "approval_id", approval.ID, "shop_id", approval.ShopID)
	return nil
}

// HandleExecutionFailed flags an approved change that was not applied
func (s *notificationServiceImpl) HandleExecutionFailed(ctx context.Context, evt *event.Event) error {
	approval, err := s.repo.GetByID(ctx, evt.ApprovalID)
	if err != nil {
		return fmt.Errorf("get approval: %w", err)
	}
	if approval == nil {
		return nil
	}

	reason := evt.GetPayloadString("error")
	if err := s.notifier.NotifyExecutionFailed(ctx, approval, reason); err != nil {
		s.logger.Error("Failed to send execution failure alert", "error", err, "approval_id", approval.ID)
		return err
	}
	return nil
}
