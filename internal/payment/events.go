package payment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/noah-isme/service-checkout/internal/events"
)

// EventType is a provider webhook event tag.
type EventType string

// Recognised webhook events. Anything else is acknowledged and ignored.
const (
	EventOrderCompleted  EventType = "order.completed"
	EventOrderFailed     EventType = "order.failed"
	EventOrderCancelled  EventType = "order.cancelled"
	EventRefundCompleted EventType = "order.refund.completed"
)

// Known reports whether t has a dedicated handler.
func (t EventType) Known() bool {
	switch t {
	case EventOrderCompleted, EventOrderFailed, EventOrderCancelled, EventRefundCompleted:
		return true
	}
	return false
}

// WebhookEvent is a decoded provider notification.
type WebhookEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CreatedAt string    `json:"created_at"`
	Data      OrderData `json:"data"`
}

// OrderData is the order snapshot carried by a webhook. Amount is in minor
// units and kept as the provider sent it.
type OrderData struct {
	ID                     string         `json:"id"`
	Type                   string         `json:"type"`
	State                  string         `json:"state"`
	Currency               string         `json:"currency"`
	Amount                 json.Number    `json:"amount"`
	MerchantOrderReference string         `json:"merchant_order_reference,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty"`
}

// EventHandlers reacts to recognised webhook events. A returned error makes
// the webhook answer 500 so the provider redelivers.
type EventHandlers interface {
	OrderCompleted(ctx context.Context, ev WebhookEvent) error
	OrderFailed(ctx context.Context, ev WebhookEvent) error
	OrderCancelled(ctx context.Context, ev WebhookEvent) error
	RefundCompleted(ctx context.Context, ev WebhookEvent) error
}

// NopEventHandlers accepts every event.
type NopEventHandlers struct{}

func (NopEventHandlers) OrderCompleted(context.Context, WebhookEvent) error  { return nil }
func (NopEventHandlers) OrderFailed(context.Context, WebhookEvent) error     { return nil }
func (NopEventHandlers) OrderCancelled(context.Context, WebhookEvent) error  { return nil }
func (NopEventHandlers) RefundCompleted(context.Context, WebhookEvent) error { return nil }

// BusHandlers republishes webhook events on the event bus.
type BusHandlers struct {
	Bus *events.Bus
}

func (h BusHandlers) OrderCompleted(ctx context.Context, ev WebhookEvent) error {
	return h.emit(ctx, events.TopicPaymentCompleted, ev)
}

func (h BusHandlers) OrderFailed(ctx context.Context, ev WebhookEvent) error {
	return h.emit(ctx, events.TopicPaymentFailed, ev)
}

func (h BusHandlers) OrderCancelled(ctx context.Context, ev WebhookEvent) error {
	return h.emit(ctx, events.TopicPaymentCancelled, ev)
}

func (h BusHandlers) RefundCompleted(ctx context.Context, ev WebhookEvent) error {
	return h.emit(ctx, events.TopicPaymentRefunded, ev)
}

func (h BusHandlers) emit(ctx context.Context, topic string, ev WebhookEvent) error {
	if h.Bus == nil {
		return errors.New("payment: event bus not configured")
	}
	aggregate := ev.Data.ID
	if aggregate == "" {
		aggregate = ev.ID
	}
	payload := map[string]any{
		"eventId":   ev.ID,
		"eventType": string(ev.Type),
		"createdAt": ev.CreatedAt,
		"orderId":   ev.Data.ID,
		"state":     ev.Data.State,
		"amount":    ev.Data.Amount,
		"currency":  ev.Data.Currency,
	}
	if ev.Data.MerchantOrderReference != "" {
		payload["merchantOrderReference"] = ev.Data.MerchantOrderReference
	}
	if len(ev.Data.Metadata) > 0 {
		payload["metadata"] = ev.Data.Metadata
	}
	_, err := h.Bus.Emit(ctx, topic, aggregate, payload)
	return err
}
