package payment

import (
	"context"
	"net/http"
)

// OrderRequest is what the provider needs to open a hosted checkout.
// Amount is in minor currency units.
type OrderRequest struct {
	Amount            int64
	Currency          string
	MerchantReference string
	CustomerEmail     string
	CustomerName      string
	Description       string
}

// OrderResponse is the normalised provider order. CheckoutURL is always set
// on success.
type OrderResponse struct {
	ID          string
	Status      string
	CheckoutURL string
	CreatedAt   string
}

// OrderCreator abstracts order creation at an upstream payment provider.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error)
}

// WebhookVerifier authenticates inbound provider callbacks.
type WebhookVerifier interface {
	VerifyWebhookSignature(payload, signature, timestamp string) bool
	// SignatureBypassed reports whether verification is a no-op because no
	// secret is configured.
	SignatureBypassed() bool
}

// Doer executes outbound HTTP requests.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}
