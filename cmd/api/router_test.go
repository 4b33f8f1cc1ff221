package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/service-checkout/internal/catalog"
	"github.com/noah-isme/service-checkout/internal/checkout"
	"github.com/noah-isme/service-checkout/internal/config"
	"github.com/noah-isme/service-checkout/internal/obs"
	"github.com/noah-isme/service-checkout/internal/payment"
	"github.com/noah-isme/service-checkout/internal/ratelimit"
)

func testServer(t *testing.T, provider http.HandlerFunc, opts ...func(*config.Config)) (*httptest.Server, *payment.Revolut) {
	t.Helper()
	upstream := httptest.NewServer(provider)
	t.Cleanup(upstream.Close)

	gateway, err := payment.NewRevolut(payment.RevolutConfig{
		BaseURL:       upstream.URL,
		SecretKey:     "sk_test",
		WebhookSecret: "whsec",
		Timeout:       time.Second,
		RetryAttempts: 1,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)

	cfg := &config.Config{
		MetricsEnabled:   true,
		MetricsNamespace: "checkout_test",
		RateLimitMax:     2,
		RateLimitWindow:  time.Minute,
		SecurityHeaders:  true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cat := catalog.Default()
	handler := newRouter(routerDeps{
		cfg:      cfg,
		logger:   zerolog.Nop(),
		catalog:  cat,
		checkout: checkout.NewService(cat, gateway, "USD", zerolog.Nop()),
		webhook:  payment.Webhook{Verifier: gateway, Handlers: payment.NopEventHandlers{}, Logger: zerolog.Nop()},
		limiter:  ratelimit.NewMemory("test"),
		metrics:  obs.NewHTTPMetrics("checkout_test", nil, prometheus.NewRegistry()),
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, gateway
}

func TestRouterCheckoutFlow(t *testing.T) {
	srv, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"ord_1","state":"PENDING","checkout_url":"https://pay/ord_1"}`))
	})

	body := `{"customerName":"Jane Doe","customerEmail":"jane@x.com","serviceCategory":"graphic-design","serviceSubOption":"branding"}`
	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/api/create-order", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "https://pay/ord_1", out["checkoutUrl"])
		require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	}

	resp, err := http.Post(srv.URL+"/api/create-order", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRouterWebhookAndStatus(t *testing.T) {
	srv, _ := testServer(t, func(http.ResponseWriter, *http.Request) {})

	resp, err := http.Get(srv.URL + "/api/webhook")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := `{"id":"evt_9","type":"order.completed","data":{"id":"ord_9"}}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/webhook", strings.NewReader(payload))
	req.Header.Set("X-Timestamp", "1")
	req.Header.Set("X-Signature", payment.SignPayload("whsec", payload, "1"))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "evt_9", out["eventId"])
}

func TestRouterServicesHealthAndMetrics(t *testing.T) {
	srv, _ := testServer(t, func(http.ResponseWriter, *http.Request) {})

	for _, path := range []string{"/api/services", "/health/live", "/health/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

const orderBody = `{"customerName":"Jane Doe","customerEmail":"jane@x.com","serviceCategory":"graphic-design","serviceSubOption":"branding"}`

func orderProvider(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"id":"ord_1","state":"PENDING","checkout_url":"https://pay/ord_1"}`))
}

func postOrder(t *testing.T, url, forwardedFor string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/create-order", strings.NewReader(orderBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.Header.Set("X-Real-IP", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestRouterIgnoresForwardedHeadersByDefault(t *testing.T) {
	srv, _ := testServer(t, orderProvider)

	codes := []int{}
	for i := 0; i < 4; i++ {
		codes = append(codes, postOrder(t, srv.URL, "198.51.100."+strconv.Itoa(i+1)))
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRouterTrustsForwardedHeadersWhenEnabled(t *testing.T) {
	srv, _ := testServer(t, orderProvider, func(cfg *config.Config) { cfg.TrustProxyHeaders = true })

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, postOrder(t, srv.URL, "198.51.100."+strconv.Itoa(i+1)))
	}
	require.Equal(t, http.StatusOK, postOrder(t, srv.URL, "203.0.113.9"))
	require.Equal(t, http.StatusOK, postOrder(t, srv.URL, "203.0.113.9"))
	require.Equal(t, http.StatusTooManyRequests, postOrder(t, srv.URL, "203.0.113.9"))
}
