package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/application/service"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockGenerator struct {
	suggestion *port.SEOSuggestion
	err        error
	got        port.ProductSnapshot
}

func (m *mockGenerator) GenerateSEO(ctx context.Context, product port.ProductSnapshot) (*port.SEOSuggestion, error) {
	m.got = product
	return m.suggestion, m.err
}

type productCall struct {
	shopID, productID string
	update            port.ProductUpdate
}

type mockCommerce struct {
	products []productCall
	err      error
}

func (m *mockCommerce) UpdateProduct(ctx context.Context, shopID, productID string, update port.ProductUpdate) error {
	m.products = append(m.products, productCall{shopID, productID, update})
	return m.err
}

func (m *mockCommerce) UpdateVariantPrice(ctx context.Context, shopID, variantID string, update port.PriceUpdate) error {
	return errors.New("unexpected call")
}

func (m *mockCommerce) AdjustInventory(ctx context.Context, shopID string, adj port.InventoryAdjustment) error {
	return errors.New("unexpected call")
}

type mockCreator struct {
	params []service.CreateApprovalParams
	err    error
}

func (m *mockCreator) CreateApproval(ctx context.Context, params service.CreateApprovalParams) (*entity.ApprovalRequest, error) {
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return &entity.ApprovalRequest{ID: "appr-1", ShopID: params.ShopID, Status: entity.StatusPending}, nil
}

func request() SEORequest {
	return SEORequest{
		ShopID:     "demo.myshopify.com",
		ProductID:  "gid://shopify/Product/42",
		Title:      "Linen Shirt",
		Vendor:     "Acme",
		Tags:       []string{"summer"},
		CurrentSEO: &port.SEOFields{Title: "Shirt"},
	}
}

func suggestion(confidence float64) *port.SEOSuggestion {
	return &port.SEOSuggestion{
		MetaTitle:       "Breathable Linen Shirt | Acme",
		MetaDescription: "A light linen shirt for hot days.",
		Keywords:        []string{"linen shirt"},
		Confidence:      confidence,
	}
}

func TestOptimizeSEO_HighConfidenceAppliesDirectly(t *testing.T) {
	gen := &mockGenerator{suggestion: suggestion(0.81)}
	commerce := &mockCommerce{}
	creator := &mockCreator{}
	o := NewSEOOptimizer(gen, commerce, creator, &mockLogger{})

	out, err := o.OptimizeSEO(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, ModeApplied, out.Mode)
	assert.Nil(t, out.Approval)
	assert.Empty(t, creator.params)

	require.Len(t, commerce.products, 1)
	call := commerce.products[0]
	assert.Equal(t, "gid://shopify/Product/42", call.productID)
	require.NotNil(t, call.update.SEO)
	assert.Equal(t, "Breathable Linen Shirt | Acme", call.update.SEO.Title)
	assert.Nil(t, call.update.Title)

	// Description falls back to the title
	assert.Equal(t, "Linen Shirt", gen.got.Description)
}

func TestOptimizeSEO_ThresholdIsExclusive(t *testing.T) {
	creator := &mockCreator{}
	commerce := &mockCommerce{}
	o := NewSEOOptimizer(&mockGenerator{suggestion: suggestion(0.8)}, commerce, creator, &mockLogger{})

	out, err := o.OptimizeSEO(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, ModeQueued, out.Mode)
	assert.Empty(t, commerce.products)
}

func TestOptimizeSEO_LowConfidenceQueuesApproval(t *testing.T) {
	creator := &mockCreator{}
	commerce := &mockCommerce{}
	o := NewSEOOptimizer(&mockGenerator{suggestion: suggestion(0.62)}, commerce, creator, &mockLogger{})

	out, err := o.OptimizeSEO(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, ModeQueued, out.Mode)
	require.NotNil(t, out.Approval)
	assert.Equal(t, "appr-1", out.Approval.ID)
	assert.Empty(t, commerce.products)

	require.Len(t, creator.params, 1)
	p := creator.params[0]
	assert.Equal(t, entity.ActionProductUpdate, p.ActionType)
	assert.Equal(t, entity.EntityProduct, p.EntityType)
	assert.Equal(t, "gid://shopify/Product/42", p.EntityID)
	assert.Equal(t, "AI-generated SEO with 62% confidence", p.Reasoning)
	require.NotNil(t, p.Confidence)
	assert.Equal(t, 0.62, *p.Confidence)
	assert.JSONEq(t, `{"title":"Shirt"}`, string(p.CurrentData))

	var proposed map[string]string
	require.NoError(t, json.Unmarshal(p.ProposedData, &proposed))
	assert.Equal(t, "Breathable Linen Shirt | Acme", proposed["metaTitle"])
	assert.Equal(t, "A light linen shirt for hot days.", proposed["metaDescription"])
}

func TestOptimizeSEO_Validation(t *testing.T) {
	gen := &mockGenerator{suggestion: suggestion(0.9)}
	o := NewSEOOptimizer(gen, &mockCommerce{}, &mockCreator{}, &mockLogger{})

	_, err := o.OptimizeSEO(context.Background(), SEORequest{ShopID: "s"})
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Contains(t, err.Error(), "productId, title")
}

func TestOptimizeSEO_GenerationError(t *testing.T) {
	o := NewSEOOptimizer(&mockGenerator{err: errors.New("rate limited")}, &mockCommerce{}, &mockCreator{}, &mockLogger{})

	_, err := o.OptimizeSEO(context.Background(), request())
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestOptimizeSEO_ApplyError(t *testing.T) {
	commerce := &mockCommerce{err: errors.New("userErrors: seo.title too long")}
	o := NewSEOOptimizer(&mockGenerator{suggestion: suggestion(0.95)}, commerce, &mockCreator{}, &mockLogger{})

	_, err := o.OptimizeSEO(context.Background(), request())
	assert.ErrorIs(t, err, ErrApplyFailed)
}

func TestOptimizeSEO_CreateApprovalError(t *testing.T) {
	creator := &mockCreator{err: service.NewValidationError("bad")}
	o := NewSEOOptimizer(&mockGenerator{suggestion: suggestion(0.5)}, &mockCommerce{}, creator, &mockLogger{})

	_, err := o.OptimizeSEO(context.Background(), request())
	assert.ErrorIs(t, err, service.ErrValidation)
}
