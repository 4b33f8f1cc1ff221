package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/service-checkout/internal/obs"
	"github.com/noah-isme/service-checkout/internal/resilience"
)

// ProviderRevolut labels Revolut in metrics and logs.
const ProviderRevolut = "revolut"

const maxResponseBytes = 1 << 20

// RevolutConfig holds everything the Revolut client needs. It is built once
// at start-up from config.Config.
type RevolutConfig struct {
	BaseURL         string
	SecretKey       string
	WebhookSecret   string
	DefaultCurrency string
	LogRawResponses bool

	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Breaker       *resilience.Breaker
	// Client overrides the outbound HTTP stack, mostly for tests.
	Client Doer

	Logger zerolog.Logger
}

// Revolut talks to the Revolut Merchant API.
type Revolut struct {
	baseURL         string
	secretKey       string
	webhookSecret   string
	defaultCurrency string
	logRaw          bool
	client          Doer
	logger          zerolog.Logger
}

// NewRevolut validates cfg and builds a client.
func NewRevolut(cfg RevolutConfig) (*Revolut, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("payment: revolut base url is required")
	}
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errors.New("payment: revolut secret key is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	client := cfg.Client
	if client == nil {
		client = resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     cfg.Breaker,
			Target:      ProviderRevolut,
			BaseBackoff: cfg.RetryDelay,
			MaxAttempts: cfg.RetryAttempts,
			Jitter:      0.2,
			Timeout:     cfg.Timeout,
		}
	}
	return &Revolut{
		baseURL:         baseURL,
		secretKey:       secret,
		webhookSecret:   strings.TrimSpace(cfg.WebhookSecret),
		defaultCurrency: currency,
		logRaw:          cfg.LogRawResponses,
		client:          client,
		logger:          cfg.Logger.With().Str("provider", ProviderRevolut).Logger(),
	}, nil
}

type revolutCustomer struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type revolutOrderBody struct {
	Amount              int64           `json:"amount"`
	Currency            string          `json:"currency"`
	MerchantOrderExtRef string          `json:"merchant_order_ext_ref"`
	Description         string          `json:"description,omitempty"`
	Customer            revolutCustomer `json:"customer"`
}

type revolutOrder struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	CheckoutURL string `json:"checkout_url"`
	CreatedAt   string `json:"created_at"`
}

// CreateOrder opens a hosted checkout order.
func (r *Revolut) CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	start := time.Now()
	result := "ok"
	defer func() {
		if obs.PaymentOrderTotal != nil {
			obs.PaymentOrderTotal.WithLabelValues(ProviderRevolut, result).Inc()
		}
		if obs.PaymentOrderLatency != nil {
			obs.PaymentOrderLatency.WithLabelValues(ProviderRevolut, result).Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = r.defaultCurrency
	}
	payload, err := json.Marshal(revolutOrderBody{
		Amount:              req.Amount,
		Currency:            currency,
		MerchantOrderExtRef: req.MerchantReference,
		Description:         req.Description,
		Customer:            revolutCustomer{Email: req.CustomerEmail, FullName: req.CustomerName},
	})
	if err != nil {
		result = "encode_error"
		return OrderResponse{}, fmt.Errorf("payment: encode order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		result = "encode_error"
		return OrderResponse{}, fmt.Errorf("payment: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.secretKey)

	log := r.log(ctx).With().Str("merchant_ref", req.MerchantReference).Logger()

	httpResp, err := r.client.Do(ctx, httpReq)
	if err != nil {
		result = "transport_error"
		log.Warn().Err(err).Msg("revolut_order_request_failed")
		return OrderResponse{}, &GatewayRequestFailedError{Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		result = "transport_error"
		return OrderResponse{}, &GatewayRequestFailedError{StatusCode: httpResp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if r.logRaw {
		log.Debug().Int("status", httpResp.StatusCode).RawJSON("raw_response", rawOrString(raw)).Msg("revolut_raw_response")
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		result = "http_error"
		log.Warn().Int("status", httpResp.StatusCode).Str("body", string(raw)).Msg("revolut_order_rejected")
		return OrderResponse{}, &GatewayRequestFailedError{StatusCode: httpResp.StatusCode, Body: string(raw)}
	}

	var order revolutOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		result = "invariant"
		log.Error().Err(err).Int("status", httpResp.StatusCode).Msg("revolut_order_malformed")
		return OrderResponse{}, &GatewayInvariantError{Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if strings.TrimSpace(order.CheckoutURL) == "" {
		result = "invariant"
		log.Error().Str("order_id", order.ID).Str("state", order.State).Msg("revolut_order_missing_checkout_url")
		return OrderResponse{}, &GatewayInvariantError{OrderID: order.ID, Err: ErrMissingCheckoutURL}
	}

	log.Info().Str("order_id", order.ID).Str("state", order.State).Msg("revolut_order_created")
	return OrderResponse{
		ID:          order.ID,
		Status:      order.State,
		CheckoutURL: order.CheckoutURL,
		CreatedAt:   order.CreatedAt,
	}, nil
}

// VerifyWebhookSignature checks an X-Signature header against the webhook
// secret. Without a secret every payload passes; see SignatureBypassed.
func (r *Revolut) VerifyWebhookSignature(payload, signature, timestamp string) bool {
	if r.webhookSecret == "" {
		return true
	}
	return VerifySignature(r.webhookSecret, payload, signature, timestamp)
}

// SignatureBypassed reports whether no webhook secret is configured.
func (r *Revolut) SignatureBypassed() bool { return r.webhookSecret == "" }

func (r *Revolut) log(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l.With().Str("provider", ProviderRevolut).Logger()
	}
	return r.logger
}

func rawOrString(raw []byte) []byte {
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
