// Package optimizer turns AI-generated product improvements into either a
// direct store update or an approval request.
package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/application/service"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
	"github.com/MiguelValor/shopify-automator/internal/domain/policy"
)

// Errors from collaborators, for mapping to responses
var (
	ErrGenerationFailed = errors.New("SEO generation failed")
	ErrApplyFailed      = errors.New("failed to update product")
)

// Modes reported in Outcome
const (
	ModeApplied = "applied"
	ModeQueued  = "queued"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ApprovalCreator is the part of the approval manager the optimizer needs
type ApprovalCreator interface {
	CreateApproval(ctx context.Context, params service.CreateApprovalParams) (*entity.ApprovalRequest, error)
}

// SEORequest identifies the product to optimize and what it looks like now
type SEORequest struct {
	ShopID      string          `json:"shopId"`
	ProductID   string          `json:"productId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor"`
	Tags        []string        `json:"tags"`
	CurrentSEO  *port.SEOFields `json:"currentSeo"`
}

// Outcome reports what was done with a suggestion
type Outcome struct {
	Mode       string                  `json:"mode"`
	Message    string                  `json:"message"`
	Confidence float64                 `json:"confidence"`
	Suggestion *port.SEOSuggestion     `json:"suggestion"`
	Approval   *entity.ApprovalRequest `json:"approval,omitempty"`
}

// SEOOptimizer generates SEO metadata and routes it by confidence
type SEOOptimizer struct {
	generator port.SEOGenerator
	commerce  port.CommerceClient
	approvals ApprovalCreator
	logger    Logger
}

// NewSEOOptimizer creates a new SEO optimizer
func NewSEOOptimizer(generator port.SEOGenerator, commerce port.CommerceClient, approvals ApprovalCreator, logger Logger) *SEOOptimizer {
	return &SEOOptimizer{
		generator: generator,
		commerce:  commerce,
		approvals: approvals,
		logger:    logger,
	}
}

// OptimizeSEO generates a suggestion and either applies it to the product or
// queues it for review
func (o *SEOOptimizer) OptimizeSEO(ctx context.Context, req SEORequest) (*Outcome, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = req.Title
	}
	current := port.SEOFields{}
	if req.CurrentSEO != nil {
		current = *req.CurrentSEO
	}

	suggestion, err := o.generator.GenerateSEO(ctx, port.ProductSnapshot{
		ShopID:      req.ShopID,
		ProductID:   req.ProductID,
		Title:       req.Title,
		Description: description,
		Vendor:      req.Vendor,
		Tags:        req.Tags,
		CurrentSEO:  current,
	})
	if err != nil {
		o.logger.Error("SEO generation failed", "error", err, "product_id", req.ProductID)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	outcome := &Outcome{Confidence: suggestion.Confidence, Suggestion: suggestion}

	if policy.ShouldApplyDirectly(suggestion.Confidence) {
		err := o.commerce.UpdateProduct(ctx, req.ShopID, req.ProductID, port.ProductUpdate{
			SEO: &port.SEOFields{
				Title:       suggestion.MetaTitle,
				Description: suggestion.MetaDescription,
			},
		})
		if err != nil {
			o.logger.Error("Direct SEO update failed", "error", err, "product_id", req.ProductID)
			return nil, fmt.Errorf("%w: %v", ErrApplyFailed, err)
		}

		o.logger.Info("SEO applied directly",
			"shop_id", req.ShopID,
			"product_id", req.ProductID,
			"confidence", suggestion.Confidence,
		)
		outcome.Mode = ModeApplied
		outcome.Message = "Product optimized successfully"
		return outcome, nil
	}

	params, err := approvalParams(req, current, suggestion)
	if err != nil {
		return nil, err
	}
	approval, err := o.approvals.CreateApproval(ctx, params)
	if err != nil {
		return nil, err
	}

	o.logger.Info("SEO suggestion queued for review",
		"shop_id", req.ShopID,
		"product_id", req.ProductID,
		"approval_id", approval.ID,
		"confidence", suggestion.Confidence,
	)
	outcome.Mode = ModeQueued
	outcome.Message = "Approval request created for manual review"
	outcome.Approval = approval
	return outcome, nil
}

func validate(req SEORequest) error {
	var missing []string
	if strings.TrimSpace(req.ShopID) == "" {
		missing = append(missing, "shopId")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		missing = append(missing, "productId")
	}
	if strings.TrimSpace(req.Title) == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return service.NewValidationError("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func approvalParams(req SEORequest, current port.SEOFields, s *port.SEOSuggestion) (service.CreateApprovalParams, error) {
	currentData, err := json.Marshal(current)
	if err != nil {
		return service.CreateApprovalParams{}, fmt.Errorf("marshal current SEO: %w", err)
	}
	proposedData, err := json.Marshal(map[string]string{
		"metaTitle":       s.MetaTitle,
		"metaDescription": s.MetaDescription,
	})
	if err != nil {
		return service.CreateApprovalParams{}, fmt.Errorf("marshal proposed SEO: %w", err)
	}

	confidence := s.Confidence
	return service.CreateApprovalParams{
		ShopID:       req.ShopID,
		ActionType:   entity.ActionProductUpdate,
		EntityType:   entity.EntityProduct,
		EntityID:     req.ProductID,
		CurrentData:  currentData,
		ProposedData: proposedData,
		Confidence:   &confidence,
		Reasoning:    fmt.Sprintf("AI-generated SEO with %.0f%% confidence", confidence*100),
	}, nil
}
