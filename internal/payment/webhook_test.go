package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/service-checkout/internal/events"
	"github.com/noah-isme/service-checkout/internal/payment"
)

const testWebhookSecret = "whsec_test"

type recordingHandlers struct {
	calls map[payment.EventType]int
	err   error
}

func newRecording() *recordingHandlers {
	return &recordingHandlers{calls: map[payment.EventType]int{}}
}

func (r *recordingHandlers) record(ev payment.WebhookEvent) error {
	r.calls[ev.Type]++
	return r.err
}

func (r *recordingHandlers) OrderCompleted(_ context.Context, ev payment.WebhookEvent) error {
	return r.record(ev)
}

func (r *recordingHandlers) OrderFailed(_ context.Context, ev payment.WebhookEvent) error {
	return r.record(ev)
}

func (r *recordingHandlers) OrderCancelled(_ context.Context, ev payment.WebhookEvent) error {
	return r.record(ev)
}

func (r *recordingHandlers) RefundCompleted(_ context.Context, ev payment.WebhookEvent) error {
	return r.record(ev)
}

func (r *recordingHandlers) total() int {
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func eventBody(eventType string) string {
	return `{"id":"evt_1","type":"` + eventType + `","created_at":"2024-01-01T00:00:00Z",` +
		`"data":{"id":"ord_1","type":"payment","state":"COMPLETED","currency":"USD","amount":100,"merchant_order_reference":"order_abc"}}`
}

func signedRequest(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	req.Header.Set("X-Timestamp", "1700000000")
	req.Header.Set("X-Signature", payment.SignPayload(secret, body, "1700000000"))
	return req
}

func newWebhook(t *testing.T, secret string, handlers payment.EventHandlers) payment.Webhook {
	return payment.Webhook{
		Verifier: newRevolut(t, secret, nil),
		Handlers: handlers,
		Logger:   zerolog.Nop(),
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWebhookRejectsWrongSignature(t *testing.T) {
	handlers := newRecording()
	hook := newWebhook(t, testWebhookSecret, handlers)

	body := eventBody("order.completed")
	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(body, "wrong-secret"))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decode(t, rec)
	require.Equal(t, "Invalid signature", resp["error"])
	require.NotContains(t, rec.Body.String(), "evt_1", "payload is never echoed")
	require.Zero(t, handlers.total())
}

func TestWebhookDispatchesCompletedOnce(t *testing.T) {
	handlers := newRecording()
	hook := newWebhook(t, testWebhookSecret, handlers)

	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(eventBody("order.completed"), testWebhookSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"received": true, "eventId": "evt_1"}, decode(t, rec))
	require.Equal(t, 1, handlers.calls[payment.EventOrderCompleted])
	require.Equal(t, 1, handlers.total())
}

func TestWebhookDispatchTable(t *testing.T) {
	for _, typ := range []payment.EventType{
		payment.EventOrderCompleted,
		payment.EventOrderFailed,
		payment.EventOrderCancelled,
		payment.EventRefundCompleted,
	} {
		handlers := newRecording()
		hook := newWebhook(t, testWebhookSecret, handlers)
		rec := httptest.NewRecorder()
		hook.Handle(rec, signedRequest(eventBody(string(typ)), testWebhookSecret))
		require.Equal(t, http.StatusOK, rec.Code, typ)
		require.Equal(t, map[payment.EventType]int{typ: 1}, handlers.calls)
	}
}

func TestWebhookAcknowledgesUnknownEvent(t *testing.T) {
	handlers := newRecording()
	hook := newWebhook(t, testWebhookSecret, handlers)

	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(eventBody("some.unknown.event"), testWebhookSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"received": true, "eventId": "evt_1"}, decode(t, rec))
	require.Zero(t, handlers.total())
}

func TestWebhookMalformedPayload(t *testing.T) {
	handlers := newRecording()
	hook := newWebhook(t, testWebhookSecret, handlers)

	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(`{"id": nope`, testWebhookSecret))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MALFORMED_PAYLOAD", decode(t, rec)["code"])
	require.Zero(t, handlers.total())
}

func TestWebhookHandlerFailureAsksForRedelivery(t *testing.T) {
	handlers := newRecording()
	handlers.err = errors.New("db unavailable")
	hook := newWebhook(t, testWebhookSecret, handlers)

	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(eventBody("order.failed"), testWebhookSecret))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	require.Equal(t, "WEBHOOK_PROCESSING_FAILED", resp["code"])
	require.Equal(t, "Failed to process webhook", resp["error"])
	require.NotContains(t, rec.Body.String(), "db unavailable")
}

func TestWebhookFailsClosedWithoutSecret(t *testing.T) {
	handlers := newRecording()
	hook := newWebhook(t, "", handlers)
	var logs bytes.Buffer
	hook.Logger = zerolog.New(&logs)

	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(eventBody("order.completed"), "anything"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "WEBHOOK_NOT_CONFIGURED", decode(t, rec)["code"])
	require.Zero(t, handlers.total())
	require.Contains(t, logs.String(), "webhook_not_configured")

	_, err := hook.Process(context.Background(), []byte(eventBody("order.completed")), "", "")
	require.ErrorIs(t, err, payment.ErrWebhookNotConfigured)
}

func TestWebhookInsecureModeAcceptsUnsigned(t *testing.T) {
	handlers := newRecording()
	hook := newWebhook(t, "", handlers)
	hook.AllowUnsigned = true
	var logs bytes.Buffer
	hook.Logger = zerolog.New(&logs)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(eventBody("order.completed")))
	rec := httptest.NewRecorder()
	hook.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, handlers.total())
	require.Contains(t, logs.String(), "webhook_signature_verification_skipped")
}

func TestWebhookNotConfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	payment.Webhook{}.Handle(rec, signedRequest(eventBody("order.completed"), testWebhookSecret))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookLegacyHeaders(t *testing.T) {
	handlers := newRecording()
	hook := newWebhook(t, testWebhookSecret, handlers)

	body := eventBody("order.cancelled")
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	req.Header.Set("X-Revolut-Timestamp", "99")
	req.Header.Set("X-Revolut-Signature", payment.SignPayload(testWebhookSecret, body, "99"))
	rec := httptest.NewRecorder()
	hook.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, handlers.calls[payment.EventOrderCancelled])
}

func TestSignatureHeadersPreferUnprefixed(t *testing.T) {
	h := http.Header{}
	h.Set("X-Signature", "new")
	h.Set("X-Revolut-Signature", "old")
	h.Set("X-Revolut-Timestamp", "7")
	sig, ts := payment.SignatureHeaders(h)
	require.Equal(t, "new", sig)
	require.Equal(t, "7", ts)
}

func TestWebhookBodyLimit(t *testing.T) {
	handlers := newRecording()
	hook := newWebhook(t, testWebhookSecret, handlers)
	hook.MaxBodyBytes = 16

	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(eventBody("order.completed"), testWebhookSecret))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Zero(t, handlers.total())
}

func TestWebhookStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	payment.Webhook{}.Status(rec, httptest.NewRequest(http.MethodGet, "/api/webhook", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"message": "Webhook endpoint is active"}, decode(t, rec))
}

type captureNotifier struct{ events []events.Event }

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestBusHandlersPublishTopics(t *testing.T) {
	notifier := &captureNotifier{}
	hook := newWebhook(t, testWebhookSecret, payment.BusHandlers{Bus: &events.Bus{Notifiers: []events.Notifier{notifier}}})

	for _, typ := range []string{"order.completed", "order.failed", "order.cancelled", "order.refund.completed", "some.unknown.event"} {
		rec := httptest.NewRecorder()
		hook.Handle(rec, signedRequest(eventBody(typ), testWebhookSecret))
		require.Equal(t, http.StatusOK, rec.Code, typ)
	}

	require.Len(t, notifier.events, 4)
	topics := []string{}
	for _, ev := range notifier.events {
		topics = append(topics, ev.Topic)
		require.Equal(t, "ord_1", ev.AggregateID)
	}
	require.Equal(t, events.DefaultTopics(), topics)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(notifier.events[0].Payload, &payload))
	require.Equal(t, "evt_1", payload["eventId"])
	require.Equal(t, "order_abc", payload["merchantOrderReference"])
	require.EqualValues(t, 100, payload["amount"])
}

func TestBusHandlersWithoutBus(t *testing.T) {
	require.Error(t, payment.BusHandlers{}.OrderCompleted(context.Background(), payment.WebhookEvent{ID: "e"}))
}

func TestWebhookRejectsUndispatchableEvents(t *testing.T) {
	for name, body := range map[string]string{
		"null body":           `null`,
		"empty object":        `{}`,
		"missing type":        `{"id":"evt_2","data":{"id":"ord_2"}}`,
		"order without id":    `{"type":"order.completed","data":{"state":"COMPLETED"}}`,
		"refund without data": `{"id":"evt_3","type":"order.refund.completed"}`,
	} {
		t.Run(name, func(t *testing.T) {
			handlers := newRecording()
			hook := newWebhook(t, testWebhookSecret, handlers)

			rec := httptest.NewRecorder()
			hook.Handle(rec, signedRequest(body, testWebhookSecret))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "MALFORMED_PAYLOAD", decode(t, rec)["code"])
			require.Zero(t, handlers.total())
		})
	}
}

func TestWebhookUnknownEventWithoutOrderIsAcknowledged(t *testing.T) {
	hook := newWebhook(t, testWebhookSecret, newRecording())

	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(`{"id":"evt_4","type":"merchant.updated"}`, testWebhookSecret))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookAcceptsLooseNumericAndMetadata(t *testing.T) {
	notifier := &captureNotifier{}
	hook := newWebhook(t, testWebhookSecret, payment.BusHandlers{Bus: &events.Bus{Notifiers: []events.Notifier{notifier}}})

	body := `{"id":"evt_5","type":"order.completed","data":{"id":"ord_5","amount":100.0,` +
		`"currency":"USD","metadata":{"attempt":2,"tags":["a","b"],"source":"form"}}}`
	rec := httptest.NewRecorder()
	hook.Handle(rec, signedRequest(body, testWebhookSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifier.events, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(notifier.events[0].Payload, &payload))
	require.EqualValues(t, 100, payload["amount"])
	require.Equal(t, map[string]any{"attempt": float64(2), "tags": []any{"a", "b"}, "source": "form"}, payload["metadata"])
}
