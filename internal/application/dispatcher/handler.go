package dispatcher

import (
	"context"

	"github.com/MiguelValor/shopify-automator/internal/domain/event"
)

// Handler reacts to an approval lifecycle event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a subscription
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
