package port

import (
	"context"
	"io"

	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

// SEOFields is a product's search engine listing
type SEOFields struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProductUpdate carries the product fields to change. Nil fields are left as is.
type ProductUpdate struct {
	Title           *string
	DescriptionHTML *string
	Tags            []string
	SEO             *SEOFields
}

// PriceUpdate is a new variant price, as a decimal string
type PriceUpdate struct {
	Price          string
	CompareAtPrice *string
}

// InventoryAdjustment is a relative stock change at one location
type InventoryAdjustment struct {
	VariantID       string
	InventoryItemID string
	LocationID      string
	Delta           int
	Reason          string
}

// CommerceClient applies changes to a shop's catalog
type CommerceClient interface {
	UpdateProduct(ctx context.Context, shopID, productID string, update ProductUpdate) error
	UpdateVariantPrice(ctx context.Context, shopID, variantID string, update PriceUpdate) error
	AdjustInventory(ctx context.Context, shopID string, adj InventoryAdjustment) error
}

// ReviewNotifier tells human reviewers about work waiting for them
type ReviewNotifier interface {
	NotifyPending(ctx context.Context, approval *entity.ApprovalRequest) error
	NotifyExecutionFailed(ctx context.Context, approval *entity.ApprovalRequest, reason string) error
}

// ProductSnapshot is what the SEO generator sees of a product
type ProductSnapshot struct {
	ShopID      string
	ProductID   string
	Title       string
	Description string
	Vendor      string
	Tags        []string
	CurrentSEO  SEOFields
}

// SEOSuggestion is a generated listing with the model's self-reported confidence
type SEOSuggestion struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
	OptimizedTags   []string `json:"optimizedTags"`
	Confidence      float64  `json:"confidence"`
}

// SEOGenerator proposes search metadata for a product
type SEOGenerator interface {
	GenerateSEO(ctx context.Context, product ProductSnapshot) (*SEOSuggestion, error)
}

// AuditExporter renders approval records for offline review
type AuditExporter interface {
	Export(ctx context.Context, w io.Writer, approvals []*entity.ApprovalRequest) error
}
