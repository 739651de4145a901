package shopify

import (
	"context"
	"fmt"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
)

const productUpdateMutation = `
mutation productUpdate($input: ProductInput!) {
  productUpdate(input: $input) {
    product { id }
    userErrors { field message }
  }
}`

const variantUpdateMutation = `
mutation productVariantUpdate($input: ProductVariantInput!) {
  productVariantUpdate(input: $input) {
    productVariant { id price }
    userErrors { field message }
  }
}`

const inventoryAdjustMutation = `
mutation inventoryAdjustQuantities($input: InventoryAdjustQuantitiesInput!) {
  inventoryAdjustQuantities(input: $input) {
    inventoryAdjustmentGroup { reason }
    userErrors { field message }
  }
}`

const variantInventoryItemQuery = `
query variantInventoryItem($id: ID!) {
  productVariant(id: $id) {
    inventoryItem { id }
  }
}`

// defaultAdjustReason is one of the reasons the Admin API accepts
const defaultAdjustReason = "correction"

type mutationPayload struct {
	UserErrors []UserError `json:"userErrors"`
}

func checkUserErrors(mutation string, p mutationPayload) error {
	if len(p.UserErrors) > 0 {
		return &UserErrors{Mutation: mutation, Errors: p.UserErrors}
	}
	return nil
}

// UpdateProduct implements port.CommerceClient
func (c *Client) UpdateProduct(ctx context.Context, shopID, productID string, u port.ProductUpdate) error {
	input := map[string]interface{}{"id": GID("Product", productID)}
	if u.Title != nil {
		input["title"] = *u.Title
	}
	if u.DescriptionHTML != nil {
		input["descriptionHtml"] = *u.DescriptionHTML
	}
	if u.Tags != nil {
		input["tags"] = u.Tags
	}
	if u.SEO != nil {
		input["seo"] = u.SEO
	}

	var out struct {
		ProductUpdate mutationPayload `json:"productUpdate"`
	}
	if err := c.Do(ctx, shopID, productUpdateMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return fmt.Errorf("productUpdate: %w", err)
	}
	return checkUserErrors("productUpdate", out.ProductUpdate)
}

// UpdateVariantPrice implements port.CommerceClient
func (c *Client) UpdateVariantPrice(ctx context.Context, shopID, variantID string, u port.PriceUpdate) error {
	input := map[string]interface{}{
		"id":    GID("ProductVariant", variantID),
		"price": u.Price,
	}
	if u.CompareAtPrice != nil {
		input["compareAtPrice"] = *u.CompareAtPrice
	}

	var out struct {
		ProductVariantUpdate mutationPayload `json:"productVariantUpdate"`
	}
	if err := c.Do(ctx, shopID, variantUpdateMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return fmt.Errorf("productVariantUpdate: %w", err)
	}
	return checkUserErrors("productVariantUpdate", out.ProductVariantUpdate)
}

// AdjustInventory implements port.CommerceClient. When the adjustment names a
// variant but no inventory item, the variant's item is looked up first.
func (c *Client) AdjustInventory(ctx context.Context, shopID string, adj port.InventoryAdjustment) error {
	itemID := adj.InventoryItemID
	if itemID == "" {
		if adj.VariantID == "" {
			return fmt.Errorf("inventory adjustment needs a variant or inventory item")
		}
		resolved, err := c.inventoryItemForVariant(ctx, shopID, adj.VariantID)
		if err != nil {
			return err
		}
		itemID = resolved
	}

	reason := adj.Reason
	if reason == "" {
		reason = defaultAdjustReason
	}

	input := map[string]interface{}{
		"reason": reason,
		"name":   "available",
		"changes": []map[string]interface{}{{
			"delta":           adj.Delta,
			"inventoryItemId": GID("InventoryItem", itemID),
			"locationId":      GID("Location", adj.LocationID),
		}},
	}

	var out struct {
		InventoryAdjustQuantities mutationPayload `json:"inventoryAdjustQuantities"`
	}
	if err := c.Do(ctx, shopID, inventoryAdjustMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return fmt.Errorf("inventoryAdjustQuantities: %w", err)
	}
	return checkUserErrors("inventoryAdjustQuantities", out.InventoryAdjustQuantities)
}

func (c *Client) inventoryItemForVariant(ctx context.Context, shopID, variantID string) (string, error) {
	var out struct {
		ProductVariant *struct {
			InventoryItem struct {
				ID string `json:"id"`
			} `json:"inventoryItem"`
		} `json:"productVariant"`
	}
	vars := map[string]interface{}{"id": GID("ProductVariant", variantID)}
	if err := c.Do(ctx, shopID, variantInventoryItemQuery, vars, &out); err != nil {
		return "", fmt.Errorf("lookup inventory item: %w", err)
	}
	if out.ProductVariant == nil || out.ProductVariant.InventoryItem.ID == "" {
		return "", fmt.Errorf("variant %s not found", variantID)
	}
	return out.ProductVariant.InventoryItem.ID, nil
}

var _ port.CommerceClient = (*Client)(nil)
