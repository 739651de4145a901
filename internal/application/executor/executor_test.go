package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

type mockCommerce struct {
	products  []port.ProductUpdate
	prices    []port.PriceUpdate
	inventory []port.InventoryAdjustment
	shops     []string
	entityIDs []string
	err       error
}

func (m *mockCommerce) UpdateProduct(ctx context.Context, shopID, productID string, u port.ProductUpdate) error {
	m.shops = append(m.shops, shopID)
	m.entityIDs = append(m.entityIDs, productID)
	m.products = append(m.products, u)
	return m.err
}

func (m *mockCommerce) UpdateVariantPrice(ctx context.Context, shopID, variantID string, u port.PriceUpdate) error {
	m.shops = append(m.shops, shopID)
	m.entityIDs = append(m.entityIDs, variantID)
	m.prices = append(m.prices, u)
	return m.err
}

func (m *mockCommerce) AdjustInventory(ctx context.Context, shopID string, adj port.InventoryAdjustment) error {
	m.shops = append(m.shops, shopID)
	m.inventory = append(m.inventory, adj)
	return m.err
}

func approval(actionType, entityType, proposed string) *entity.ApprovalRequest {
	return &entity.ApprovalRequest{
		ID:           "appr-1",
		ShopID:       "demo.myshopify.com",
		ActionType:   actionType,
		EntityType:   entityType,
		EntityID:     "gid://shopify/Thing/1",
		ProposedData: json.RawMessage(proposed),
		Status:       entity.StatusApproved,
	}
}

func TestRegistry_UnknownActionType(t *testing.T) {
	logger := &mockLogger{}
	r := NewRegistry(logger)

	err := r.Execute(context.Background(), approval("collection_merge", entity.EntityProduct, `{}`))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownActionType)
	assert.Len(t, logger.warns, 1)
}

func TestRegistry_RegisterCustomHandler(t *testing.T) {
	r := NewRegistry(&mockLogger{})
	var got *entity.ApprovalRequest
	r.Register("tag_cleanup", HandlerFunc(func(ctx context.Context, a *entity.ApprovalRequest) error {
		got = a
		return nil
	}))

	a := approval("tag_cleanup", entity.EntityProduct, `{"tags":[]}`)
	require.NoError(t, r.Execute(context.Background(), a))
	assert.Same(t, a, got)
	assert.Equal(t, []string{"tag_cleanup"}, r.ActionTypes())
}

func TestCommerceRegistry_ActionTypes(t *testing.T) {
	r := NewCommerceRegistry(&mockCommerce{}, &mockLogger{})
	assert.Equal(t, []string{
		entity.ActionInventoryAdjust,
		entity.ActionPriceChange,
		entity.ActionProductUpdate,
	}, r.ActionTypes())
}

func TestProductUpdate(t *testing.T) {
	t.Run("applies seo metadata", func(t *testing.T) {
		client := &mockCommerce{}
		r := NewCommerceRegistry(client, &mockLogger{})

		a := approval(entity.ActionProductUpdate, entity.EntityProduct,
			`{"metaTitle":"Blue Mug | Acme","metaDescription":"A sturdy blue mug."}`)
		require.NoError(t, r.Execute(context.Background(), a))

		require.Len(t, client.products, 1)
		u := client.products[0]
		require.NotNil(t, u.SEO)
		assert.Equal(t, "Blue Mug | Acme", u.SEO.Title)
		assert.Equal(t, "A sturdy blue mug.", u.SEO.Description)
		assert.Nil(t, u.Title)
		assert.Equal(t, "demo.myshopify.com", client.shops[0])
		assert.Equal(t, "gid://shopify/Thing/1", client.entityIDs[0])
	})

	t.Run("description alias", func(t *testing.T) {
		client := &mockCommerce{}
		r := NewCommerceRegistry(client, &mockLogger{})

		require.NoError(t, r.Execute(context.Background(),
			approval(entity.ActionProductUpdate, entity.EntityProduct, `{"title":"Mug","description":"<p>Hi</p>"}`)))

		u := client.products[0]
		require.NotNil(t, u.DescriptionHTML)
		assert.Equal(t, "<p>Hi</p>", *u.DescriptionHTML)
		assert.Equal(t, "Mug", *u.Title)
		assert.Nil(t, u.SEO)
	})

	t.Run("payload errors", func(t *testing.T) {
		cases := map[string]*entity.ApprovalRequest{
			"empty object":   approval(entity.ActionProductUpdate, entity.EntityProduct, `{}`),
			"not an object":  approval(entity.ActionProductUpdate, entity.EntityProduct, `["title"]`),
			"wrong types":    approval(entity.ActionProductUpdate, entity.EntityProduct, `{"title":42}`),
			"null":           approval(entity.ActionProductUpdate, entity.EntityProduct, `null`),
			"variant target": approval(entity.ActionProductUpdate, entity.EntityVariant, `{"title":"x"}`),
		}
		for name, a := range cases {
			t.Run(name, func(t *testing.T) {
				client := &mockCommerce{}
				err := NewCommerceRegistry(client, &mockLogger{}).Execute(context.Background(), a)

				var perr *PayloadError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, "appr-1", perr.ApprovalID)
				assert.Equal(t, entity.ActionProductUpdate, perr.ActionType)
				assert.Empty(t, client.products)
			})
		}
	})
}

func TestPriceChange(t *testing.T) {
	t.Run("numeric and string prices", func(t *testing.T) {
		client := &mockCommerce{}
		r := NewCommerceRegistry(client, &mockLogger{})

		require.NoError(t, r.Execute(context.Background(),
			approval(entity.ActionPriceChange, entity.EntityVariant, `{"price":24.99,"compareAtPrice":"29.99"}`)))
		require.NoError(t, r.Execute(context.Background(),
			approval(entity.ActionPriceChange, entity.EntityVariant, `{"suggestedPrice":"18.50"}`)))

		require.Len(t, client.prices, 2)
		assert.Equal(t, "24.99", client.prices[0].Price)
		require.NotNil(t, client.prices[0].CompareAtPrice)
		assert.Equal(t, "29.99", *client.prices[0].CompareAtPrice)
		assert.Equal(t, "18.50", client.prices[1].Price)
		assert.Nil(t, client.prices[1].CompareAtPrice)
	})

	t.Run("rejects bad prices", func(t *testing.T) {
		for _, body := range []string{`{}`, `{"price":0}`, `{"price":-3}`, `{"price":"abc"}`, `{"price":10,"compareAtPrice":0}`} {
			client := &mockCommerce{}
			err := NewCommerceRegistry(client, &mockLogger{}).Execute(context.Background(),
				approval(entity.ActionPriceChange, entity.EntityVariant, body))

			var perr *PayloadError
			assert.ErrorAs(t, err, &perr, body)
			assert.Empty(t, client.prices, body)
		}
	})

	t.Run("requires variant", func(t *testing.T) {
		err := NewCommerceRegistry(&mockCommerce{}, &mockLogger{}).Execute(context.Background(),
			approval(entity.ActionPriceChange, entity.EntityProduct, `{"price":10}`))
		var perr *PayloadError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestInventoryAdjust(t *testing.T) {
	t.Run("variant target", func(t *testing.T) {
		client := &mockCommerce{}
		r := NewCommerceRegistry(client, &mockLogger{})

		require.NoError(t, r.Execute(context.Background(), approval(entity.ActionInventoryAdjust, entity.EntityVariant,
			`{"locationId":"gid://shopify/Location/9","delta":-4,"reason":"correction"}`)))

		require.Len(t, client.inventory, 1)
		adj := client.inventory[0]
		assert.Equal(t, "gid://shopify/Thing/1", adj.VariantID)
		assert.Equal(t, "gid://shopify/Location/9", adj.LocationID)
		assert.Equal(t, -4, adj.Delta)
		assert.Equal(t, "correction", adj.Reason)
	})

	t.Run("payload errors", func(t *testing.T) {
		bodies := []string{
			`{"delta":3}`,
			`{"locationId":"l1"}`,
			`{"locationId":"l1","delta":0}`,
			`{"locationId":"l1","delta":1.5}`,
		}
		for _, body := range bodies {
			err := NewCommerceRegistry(&mockCommerce{}, &mockLogger{}).Execute(context.Background(),
				approval(entity.ActionInventoryAdjust, entity.EntityVariant, body))
			var perr *PayloadError
			assert.ErrorAs(t, err, &perr, body)
		}

		err := NewCommerceRegistry(&mockCommerce{}, &mockLogger{}).Execute(context.Background(),
			approval(entity.ActionInventoryAdjust, entity.EntityProduct, `{"locationId":"l1","delta":2}`))
		var perr *PayloadError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestCommerceErrorsPassThrough(t *testing.T) {
	boom := errors.New("shopify: 502 bad gateway")
	client := &mockCommerce{err: boom}

	err := NewCommerceRegistry(client, &mockLogger{}).Execute(context.Background(),
		approval(entity.ActionPriceChange, entity.EntityVariant, `{"price":"12.00"}`))

	assert.ErrorIs(t, err, boom)
	var perr *PayloadError
	assert.False(t, errors.As(err, &perr))
}
