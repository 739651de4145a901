package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

// NewCommerceRegistry returns a registry with the built-in catalog handlers
func NewCommerceRegistry(client port.CommerceClient, logger Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(entity.ActionProductUpdate, &productUpdateHandler{client: client})
	r.Register(entity.ActionPriceChange, &priceChangeHandler{client: client})
	r.Register(entity.ActionInventoryAdjust, &inventoryAdjustHandler{client: client})
	return r
}

// decodePayload unmarshals proposedData into dst, requiring a JSON object
func decodePayload(a *entity.ApprovalRequest, dst interface{}) error {
	data := bytes.TrimSpace(a.ProposedData)
	if len(data) == 0 || data[0] != '{' {
		return payloadErr(a, errors.New("proposed data must be a JSON object"))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return payloadErr(a, err)
	}
	return nil
}

func payloadErr(a *entity.ApprovalRequest, err error) error {
	return &PayloadError{ApprovalID: a.ID, ActionType: a.ActionType, Err: err}
}

type productUpdatePayload struct {
	Title           *string  `json:"title"`
	DescriptionHTML *string  `json:"descriptionHtml"`
	Description     *string  `json:"description"`
	Tags            []string `json:"tags"`
	MetaTitle       *string  `json:"metaTitle"`
	MetaDescription *string  `json:"metaDescription"`
}

type productUpdateHandler struct {
	client port.CommerceClient
}

func (h *productUpdateHandler) Execute(ctx context.Context, a *entity.ApprovalRequest) error {
	if a.EntityType != entity.EntityProduct {
		return payloadErr(a, fmt.Errorf("product_update cannot target a %s", a.EntityType))
	}

	var p productUpdatePayload
	if err := decodePayload(a, &p); err != nil {
		return err
	}

	update := port.ProductUpdate{
		Title:           p.Title,
		DescriptionHTML: p.DescriptionHTML,
		Tags:            p.Tags,
	}
	if update.DescriptionHTML == nil {
		update.DescriptionHTML = p.Description
	}
	if p.MetaTitle != nil || p.MetaDescription != nil {
		update.SEO = &port.SEOFields{}
		if p.MetaTitle != nil {
			update.SEO.Title = *p.MetaTitle
		}
		if p.MetaDescription != nil {
			update.SEO.Description = *p.MetaDescription
		}
	}

	if update.Title == nil && update.DescriptionHTML == nil && update.Tags == nil && update.SEO == nil {
		return payloadErr(a, errors.New("no product fields to update"))
	}

	return h.client.UpdateProduct(ctx, a.ShopID, a.EntityID, update)
}

type priceChangePayload struct {
	Price          json.Number  `json:"price"`
	SuggestedPrice json.Number  `json:"suggestedPrice"`
	CompareAtPrice *json.Number `json:"compareAtPrice"`
}

type priceChangeHandler struct {
	client port.CommerceClient
}

func (h *priceChangeHandler) Execute(ctx context.Context, a *entity.ApprovalRequest) error {
	if a.EntityType != entity.EntityVariant {
		return payloadErr(a, fmt.Errorf("price_change cannot target a %s", a.EntityType))
	}

	var p priceChangePayload
	if err := decodePayload(a, &p); err != nil {
		return err
	}

	price := p.Price
	if price == "" {
		price = p.SuggestedPrice
	}
	if err := checkPositive(price); err != nil {
		return payloadErr(a, fmt.Errorf("price: %w", err))
	}

	update := port.PriceUpdate{Price: price.String()}
	if p.CompareAtPrice != nil {
		if err := checkPositive(*p.CompareAtPrice); err != nil {
			return payloadErr(a, fmt.Errorf("compareAtPrice: %w", err))
		}
		s := p.CompareAtPrice.String()
		update.CompareAtPrice = &s
	}

	return h.client.UpdateVariantPrice(ctx, a.ShopID, a.EntityID, update)
}

func checkPositive(n json.Number) error {
	if n == "" {
		return errors.New("missing")
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return err
	}
	if f <= 0 {
		return fmt.Errorf("must be positive, got %s", n)
	}
	return nil
}

type inventoryAdjustPayload struct {
	LocationID      string `json:"locationId"`
	InventoryItemID string `json:"inventoryItemId"`
	Delta           *int   `json:"delta"`
	Reason          string `json:"reason"`
}

type inventoryAdjustHandler struct {
	client port.CommerceClient
}

func (h *inventoryAdjustHandler) Execute(ctx context.Context, a *entity.ApprovalRequest) error {
	var p inventoryAdjustPayload
	if err := decodePayload(a, &p); err != nil {
		return err
	}

	switch {
	case p.LocationID == "":
		return payloadErr(a, errors.New("locationId is required"))
	case p.Delta == nil || *p.Delta == 0:
		return payloadErr(a, errors.New("delta must be a non-zero integer"))
	case a.EntityType != entity.EntityVariant && p.InventoryItemID == "":
		return payloadErr(a, errors.New("inventoryItemId is required when the target is not a variant"))
	}

	adj := port.InventoryAdjustment{
		InventoryItemID: p.InventoryItemID,
		LocationID:      p.LocationID,
		Delta:           *p.Delta,
		Reason:          p.Reason,
	}
	if a.EntityType == entity.EntityVariant {
		adj.VariantID = a.EntityID
	}

	return h.client.AdjustInventory(ctx, a.ShopID, adj)
}
