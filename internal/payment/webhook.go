package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/service-checkout/internal/common"
	"github.com/noah-isme/service-checkout/internal/obs"
)

// DefaultMaxWebhookBytes caps inbound webhook bodies.
const DefaultMaxWebhookBytes int64 = 1 << 20

var (
	// ErrInvalidSignature is returned when a webhook fails authentication.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	// ErrWebhookNotConfigured is returned when the webhook cannot authenticate deliveries.
	ErrWebhookNotConfigured = errors.New("payment: webhook not configured")
	// ErrMissingEventType is returned for deliveries without a type.
	ErrMissingEventType = errors.New("payment: webhook event has no type")
	// ErrMissingOrderID is returned for order events that do not name an order.
	ErrMissingOrderID = errors.New("payment: webhook event has no order id")
)

// Webhook authenticates provider callbacks and dispatches them to Handlers.
//
// When the verifier has no secret, deliveries are refused unless
// AllowUnsigned is set, in which case each one is accepted with a warning.
type Webhook struct {
	Verifier      WebhookVerifier
	Handlers      EventHandlers
	AllowUnsigned bool
	Logger        zerolog.Logger
	MaxBodyBytes  int64
}

// Process verifies and dispatches a single delivery. Returned errors are
// *common.AppError values ready to render.
func (h Webhook) Process(ctx context.Context, body []byte, signature, timestamp string) (ev WebhookEvent, err error) {
	result := "ok"
	eventLabel := "unknown"
	defer func() { countWebhook(eventLabel, result) }()
	log := h.log(ctx)

	if err := h.ready(); err != nil {
		result = "not_configured"
		return WebhookEvent{}, h.configError(ctx, err)
	}
	if h.Verifier.SignatureBypassed() {
		log.Warn().Msg("webhook_signature_verification_skipped")
	}
	if !h.Verifier.VerifyWebhookSignature(string(body), signature, timestamp) {
		result = "invalid_signature"
		log.Warn().Bool("signature_present", signature != "").Bool("timestamp_present", timestamp != "").Msg("webhook_invalid_signature")
		return WebhookEvent{}, common.NewAppError(common.CodeUnauthorized, "Invalid signature", http.StatusUnauthorized, ErrInvalidSignature)
	}

	if err := decodeEvent(body, &ev); err != nil {
		result = "malformed"
		log.Warn().Err(err).Msg("webhook_malformed_payload")
		return WebhookEvent{}, common.BadRequest(common.CodeMalformedPayload, "Invalid payload format", err)
	}
	if ev.Type.Known() {
		eventLabel = string(ev.Type)
	} else {
		eventLabel = "other"
	}
	log = log.With().Str("event_id", ev.ID).Str("event_type", string(ev.Type)).Str("order_id", ev.Data.ID).Logger()
	log.Info().Msg("webhook_event_received")

	var handle func(context.Context, WebhookEvent) error
	switch ev.Type {
	case EventOrderCompleted:
		handle = h.Handlers.OrderCompleted
	case EventOrderFailed:
		handle = h.Handlers.OrderFailed
	case EventOrderCancelled:
		handle = h.Handlers.OrderCancelled
	case EventRefundCompleted:
		handle = h.Handlers.RefundCompleted
	default:
		result = "ignored"
		log.Info().Msg("webhook_event_unhandled")
		return ev, nil
	}
	if err := handle(ctx, ev); err != nil {
		result = "failed"
		log.Error().Err(err).Msg("webhook_event_failed")
		return ev, common.Internal(common.CodeWebhookProcessing, "Failed to process webhook", "event handler failed", fmt.Errorf("%s: %w", ev.Type, err))
	}
	log.Info().Msg("webhook_event_processed")
	return ev, nil
}

// decodeEvent parses a delivery. A body that can never be dispatched is an
// error here so the provider is not asked to redeliver it.
func decodeEvent(body []byte, ev *WebhookEvent) error {
	if err := json.Unmarshal(body, ev); err != nil {
		return err
	}
	if strings.TrimSpace(string(ev.Type)) == "" {
		return ErrMissingEventType
	}
	if ev.Type.Known() && strings.TrimSpace(ev.Data.ID) == "" {
		return fmt.Errorf("%w: %s", ErrMissingOrderID, ev.Type)
	}
	return nil
}

// Handle serves POST /api/webhook.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if err := h.ready(); err != nil {
		countWebhook("unknown", "not_configured")
		common.WriteError(w, h.configError(r.Context(), err))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteError(w, common.NewAppError(common.CodeBadRequest, "Payload too large", http.StatusRequestEntityTooLarge, err))
			return
		}
		common.WriteError(w, common.BadRequest(common.CodeBadRequest, "Unable to read payload", err))
		return
	}
	signature, timestamp := SignatureHeaders(r.Header)
	ev, err := h.Process(r.Context(), body, signature, timestamp)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"received": true, "eventId": ev.ID})
}

// Status serves GET /api/webhook.
func (h Webhook) Status(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"message": "Webhook endpoint is active"})
}

// SignatureHeaders reads the signature and timestamp, preferring X-Signature
// and X-Timestamp over their X-Revolut- prefixed forms.
func SignatureHeaders(header http.Header) (signature, timestamp string) {
	signature = firstHeader(header, "X-Signature", "X-Revolut-Signature")
	timestamp = firstHeader(header, "X-Timestamp", "X-Revolut-Timestamp")
	return signature, timestamp
}

func firstHeader(header http.Header, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(header.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

func (h Webhook) ready() error {
	if h.Verifier == nil || h.Handlers == nil {
		return ErrWebhookNotConfigured
	}
	if h.Verifier.SignatureBypassed() && !h.AllowUnsigned {
		return fmt.Errorf("%w: webhook secret missing", ErrWebhookNotConfigured)
	}
	return nil
}

func (h Webhook) configError(ctx context.Context, err error) *common.AppError {
	log := h.log(ctx)
	log.Error().Err(err).Msg("webhook_not_configured")
	return common.Internal(common.CodeWebhookConfig, "Webhook not configured", "webhook signature verification is not configured", err)
}

func countWebhook(event, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(ProviderRevolut, event, result).Inc()
	}
}

func (h Webhook) maxBody() int64 {
	if h.MaxBodyBytes <= 0 {
		return DefaultMaxWebhookBytes
	}
	return h.MaxBodyBytes
}

func (h Webhook) log(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l.With().Str("provider", ProviderRevolut).Logger()
	}
	return h.Logger
}
