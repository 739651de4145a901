package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
)

type recorded struct {
	Path      string
	Token     string
	Query     string
	Variables map[string]interface{}
}

// fakeAdmin answers each request with the next canned body
func fakeAdmin(t *testing.T, responses ...string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body graphQLRequest
		_ = json.NewDecoder(r.Body).Decode(&body)

		mu.Lock()
		i := len(calls)
		calls = append(calls, recorded{
			Path:      r.URL.Path,
			Token:     r.Header.Get("X-Shopify-Access-Token"),
			Query:     body.Query,
			Variables: body.Variables,
		})
		mu.Unlock()

		if i >= len(responses) {
			http.Error(w, "unexpected call", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responses[i]))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:            url,
		DefaultAccessToken: "shpat_default",
		ShopTokens:         map[string]string{"vip.myshopify.com": "shpat_vip"},
	}, zap.NewNop())
}

func strPtr(s string) *string { return &s }

func TestUpdateProduct(t *testing.T) {
	srv, calls := fakeAdmin(t, `{"data":{"productUpdate":{"product":{"id":"gid://shopify/Product/1"},"userErrors":[]}}}`)
	c := newTestClient(srv.URL)

	err := c.UpdateProduct(context.Background(), "demo.myshopify.com", "1", port.ProductUpdate{
		Title: strPtr("Blue Mug"),
		SEO:   &port.SEOFields{Title: "Blue Mug | Acme", Description: "Sturdy."},
	})
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "/admin/api/2024-01/graphql.json", call.Path)
	assert.Equal(t, "shpat_default", call.Token)
	assert.Contains(t, call.Query, "productUpdate")

	input := call.Variables["input"].(map[string]interface{})
	assert.Equal(t, "gid://shopify/Product/1", input["id"])
	assert.Equal(t, "Blue Mug", input["title"])
	assert.NotContains(t, input, "descriptionHtml")
	seo := input["seo"].(map[string]interface{})
	assert.Equal(t, "Blue Mug | Acme", seo["title"])
}

func TestUpdateVariantPrice_UserErrors(t *testing.T) {
	srv, calls := fakeAdmin(t, `{"data":{"productVariantUpdate":{"productVariant":null,"userErrors":[{"field":["price"],"message":"must be greater than 0"}]}}}`)
	c := newTestClient(srv.URL)

	err := c.UpdateVariantPrice(context.Background(), "vip.myshopify.com", "gid://shopify/ProductVariant/9", port.PriceUpdate{
		Price:          "10.00",
		CompareAtPrice: strPtr("12.00"),
	})

	var ue *UserErrors
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "productVariantUpdate", ue.Mutation)
	assert.Contains(t, err.Error(), "price: must be greater than 0")

	call := (*calls)[0]
	assert.Equal(t, "shpat_vip", call.Token)
	input := call.Variables["input"].(map[string]interface{})
	assert.Equal(t, "gid://shopify/ProductVariant/9", input["id"])
	assert.Equal(t, "12.00", input["compareAtPrice"])
}

func TestAdjustInventory_ResolvesInventoryItem(t *testing.T) {
	srv, calls := fakeAdmin(t,
		`{"data":{"productVariant":{"inventoryItem":{"id":"gid://shopify/InventoryItem/55"}}}}`,
		`{"data":{"inventoryAdjustQuantities":{"inventoryAdjustmentGroup":{"reason":"correction"},"userErrors":[]}}}`,
	)
	c := newTestClient(srv.URL)

	err := c.AdjustInventory(context.Background(), "demo.myshopify.com", port.InventoryAdjustment{
		VariantID:  "42",
		LocationID: "7",
		Delta:      -3,
	})
	require.NoError(t, err)
	require.Len(t, *calls, 2)

	assert.Contains(t, (*calls)[0].Query, "productVariant(id: $id)")
	assert.Equal(t, "gid://shopify/ProductVariant/42", (*calls)[0].Variables["id"])

	input := (*calls)[1].Variables["input"].(map[string]interface{})
	assert.Equal(t, "correction", input["reason"])
	change := input["changes"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(-3), change["delta"])
	assert.Equal(t, "gid://shopify/InventoryItem/55", change["inventoryItemId"])
	assert.Equal(t, "gid://shopify/Location/7", change["locationId"])
}

func TestAdjustInventory_UnknownVariant(t *testing.T) {
	srv, calls := fakeAdmin(t, `{"data":{"productVariant":null}}`)
	c := newTestClient(srv.URL)

	err := c.AdjustInventory(context.Background(), "demo.myshopify.com", port.InventoryAdjustment{VariantID: "404", LocationID: "1", Delta: 1})
	assert.ErrorContains(t, err, "not found")
	assert.Len(t, *calls, 1)
}

func TestDo_Errors(t *testing.T) {
	t.Run("graphql errors", func(t *testing.T) {
		srv, _ := fakeAdmin(t, `{"errors":[{"message":"Throttled"}]}`)
		err := newTestClient(srv.URL).Do(context.Background(), "demo.myshopify.com", "{ shop { id } }", nil, nil)
		assert.ErrorContains(t, err, "Throttled")
	})

	t.Run("http status", func(t *testing.T) {
		srv, _ := fakeAdmin(t)
		err := newTestClient(srv.URL).Do(context.Background(), "demo.myshopify.com", "{ shop { id } }", nil, nil)
		assert.ErrorContains(t, err, "500")
	})

	t.Run("missing token", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://unused"}, zap.NewNop())
		err := c.Do(context.Background(), "demo.myshopify.com", "{ shop { id } }", nil, nil)
		assert.True(t, errors.Is(err, ErrNoAccessToken))
	})
}

func TestEndpoint(t *testing.T) {
	c := NewClient(Config{APIVersion: "2024-04"}, zap.NewNop())
	assert.Equal(t, "https://demo.myshopify.com/admin/api/2024-04/graphql.json", c.endpoint("demo.myshopify.com"))
	assert.Equal(t, "https://demo.myshopify.com/admin/api/2024-04/graphql.json", c.endpoint("demo"))
}

func TestGID(t *testing.T) {
	assert.Equal(t, "gid://shopify/Product/1", GID("Product", "1"))
	assert.Equal(t, "gid://shopify/Product/1", GID("Product", "gid://shopify/Product/1"))
	assert.True(t, strings.HasPrefix(GID("Location", "9"), "gid://shopify/Location/"))
}
