package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"chanpay-bot/internal/infra/yookassa"
	"chanpay-bot/internal/stories/settlement"
	"chanpay-bot/internal/stories/tariffs"
)

const testSecret = "s3cret"

type mockSettler struct {
	events []settlement.Event
	err    error
}

func (m *mockSettler) Settle(_ context.Context, ev settlement.Event) (*settlement.Result, error) {
	m.events = append(m.events, ev)
	if m.err != nil {
		return nil, m.err
	}
	return &settlement.Result{Status: settlement.StatusApplied}, nil
}

type mockVerifier struct {
	payment *yookassa.Payment
	err     error
	calls   int
}

func (m *mockVerifier) GetPayment(_ context.Context, id string) (*yookassa.Payment, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.payment, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const succeededBody = `{
	"type": "notification",
	"event": "payment.succeeded",
	"object": {
		"id": "pay-1",
		"status": "succeeded",
		"paid": true,
		"amount": {"value": "199.00", "currency": "RUB"},
		"created_at": "2024-05-01T10:00:00.000Z",
		"captured_at": "2024-05-01T10:00:05.000Z",
		"metadata": {"user_id": "42", "product": "subscription_channel_2"}
	}
}`

func newRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookSucceededSettles(t *testing.T) {
	settler := &mockSettler{}
	h := NewHandler(testSecret, settler, nil, testLogger())

	rec := serve(h, newRequest(succeededBody, Sign(testSecret, EventPaymentSucceeded, "pay-1")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s", got)
	}
	if len(settler.events) != 1 {
		t.Fatalf("settle calls = %d, want 1", len(settler.events))
	}
	ev := settler.events[0]
	want := settlement.Event{
		SubscriberID: 42,
		Product:      tariffs.ProductTier2,
		AmountMinor:  19900,
		Currency:     "RUB",
		OccurredAt:   time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC),
		ChargeID:     "pay-1",
		Source:       settlement.SourceWebhook,
	}
	if ev.SubscriberID != want.SubscriberID || ev.Product != want.Product ||
		ev.AmountMinor != want.AmountMinor || ev.Currency != want.Currency ||
		ev.ChargeID != want.ChargeID || ev.Source != want.Source {
		t.Errorf("event = %+v, want %+v", ev, want)
	}
	if !ev.OccurredAt.Equal(want.OccurredAt) {
		t.Errorf("occurred_at = %v, want captured_at %v", ev.OccurredAt, want.OccurredAt)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		signature string
	}{
		{name: "missing header", secret: testSecret},
		{name: "wrong secret", secret: testSecret, signature: Sign("other", EventPaymentSucceeded, "pay-1")},
		{name: "wrong event", secret: testSecret, signature: Sign(testSecret, EventPaymentCanceled, "pay-1")},
		{name: "not hex", secret: testSecret, signature: "zz"},
		{name: "empty secret", secret: "", signature: Sign("", EventPaymentSucceeded, "pay-1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settler := &mockSettler{}
			h := NewHandler(tt.secret, settler, nil, testLogger())

			rec := serve(h, newRequest(succeededBody, tt.signature))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Invalid signature"}` {
				t.Errorf("body = %s", got)
			}
			if len(settler.events) != 0 {
				t.Error("settled despite bad signature")
			}
		})
	}
}

func TestWebhookOtherEvents(t *testing.T) {
	for _, event := range []string{EventPaymentCanceled, "refund.succeeded"} {
		t.Run(event, func(t *testing.T) {
			body := strings.Replace(succeededBody, EventPaymentSucceeded, event, 1)
			settler := &mockSettler{}
			h := NewHandler(testSecret, settler, nil, testLogger())

			rec := serve(h, newRequest(body, Sign(testSecret, event, "pay-1")))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if len(settler.events) != 0 {
				t.Errorf("settle called for %s", event)
			}
		})
	}
}

func TestWebhookBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not json", body: `{`, want: http.StatusBadRequest},
		{name: "missing object id", body: `{"event":"payment.succeeded","object":{}}`, want: http.StatusBadRequest},
		{
			name: "missing user id",
			body: `{"event":"payment.succeeded","object":{"id":"pay-1","amount":{"value":"10.00","currency":"RUB"},"created_at":"2024-05-01T10:00:00Z","metadata":{"product":"donation"}}}`,
			want: http.StatusBadRequest,
		},
		{
			name: "unknown product",
			body: `{"event":"payment.succeeded","object":{"id":"pay-1","amount":{"value":"10.00","currency":"RUB"},"created_at":"2024-05-01T10:00:00Z","metadata":{"user_id":1,"product":"vpn"}}}`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settler := &mockSettler{}
			h := NewHandler(testSecret, settler, nil, testLogger())

			rec := serve(h, newRequest(tt.body, Sign(testSecret, EventPaymentSucceeded, "pay-1")))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if len(settler.events) != 0 {
				t.Error("settle must not be called")
			}
		})
	}
}

func TestWebhookFallsBackToCreatedAt(t *testing.T) {
	body := `{"event":"payment.succeeded","object":{"id":"pay-2","amount":{"value":"60","currency":"RUB"},"created_at":"2024-05-01T10:00:00Z","captured_at":null,"metadata":{"user_id":7,"product":"donation"}}}`
	settler := &mockSettler{}
	h := NewHandler(testSecret, settler, nil, testLogger())

	rec := serve(h, newRequest(body, Sign(testSecret, EventPaymentSucceeded, "pay-2")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	ev := settler.events[0]
	if !ev.OccurredAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("occurred_at = %v", ev.OccurredAt)
	}
	if ev.SubscriberID != 7 || ev.AmountMinor != 6000 || ev.Product != tariffs.ProductDonation {
		t.Errorf("event = %+v", ev)
	}
}

func TestWebhookSettlementFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "store down", err: errors.New("disk full"), want: http.StatusInternalServerError},
		{name: "invalid event", err: settlement.ErrInvalidEvent, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testSecret, &mockSettler{err: tt.err}, nil, testLogger())

			rec := serve(h, newRequest(succeededBody, Sign(testSecret, EventPaymentSucceeded, "pay-1")))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestWebhookVerifier(t *testing.T) {
	tests := []struct {
		name       string
		verifier   *mockVerifier
		wantCode   int
		wantSettle int
	}{
		{
			name:       "confirmed",
			verifier:   &mockVerifier{payment: &yookassa.Payment{ID: "pay-1", Status: "succeeded", Succeeded: true}},
			wantCode:   http.StatusOK,
			wantSettle: 1,
		},
		{
			name:       "not succeeded at provider",
			verifier:   &mockVerifier{payment: &yookassa.Payment{ID: "pay-1", Status: "pending"}},
			wantCode:   http.StatusOK,
			wantSettle: 0,
		},
		{
			name:       "provider unreachable",
			verifier:   &mockVerifier{err: errors.New("timeout")},
			wantCode:   http.StatusBadGateway,
			wantSettle: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settler := &mockSettler{}
			h := NewHandler(testSecret, settler, tt.verifier, testLogger())

			rec := serve(h, newRequest(succeededBody, Sign(testSecret, EventPaymentSucceeded, "pay-1")))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if len(settler.events) != tt.wantSettle {
				t.Errorf("settle calls = %d, want %d", len(settler.events), tt.wantSettle)
			}
			if tt.verifier.calls != 1 {
				t.Errorf("verifier calls = %d, want 1", tt.verifier.calls)
			}
		})
	}
}

func TestParseMinor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "199.00", want: 19900},
		{in: "60", want: 6000},
		{in: "0.1", want: 10},
		{in: "abc", wantErr: true},
		{in: "-1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseMinor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMinor(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMinor(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
