package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"chanpay-bot/internal/stories/settlement"
	"chanpay-bot/internal/stories/tariffs"
)

const (
	SignatureHeader = "Yookassa-Signature"
	maxBodyBytes    = 1 << 20
)

type Handler struct {
	secret    string
	settler   settler
	verifier  paymentVerifier
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandler builds the payment webhook. verifier may be nil; then the
// payment status is taken from the notification itself.
func NewHandler(secret string, settler settler, verifier paymentVerifier, logger *slog.Logger) *Handler {
	return &Handler{
		secret:    secret,
		settler:   settler,
		verifier:  verifier,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.Webhook)
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	n, err := decodeNotification(body)
	if err != nil {
		h.logger.Warn("Failed to decode webhook", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err := h.validator.Struct(n); err != nil {
		h.logger.Warn("Webhook payload rejected", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	if !VerifySignature(h.secret, n.Event, n.Object.ID, r.Header.Get(SignatureHeader)) {
		h.logger.Error("Invalid webhook signature", "event", n.Event, "payment_id", n.Object.ID)
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	switch n.Event {
	case EventPaymentSucceeded:
		status, msg := h.handleSucceeded(r.Context(), n.Object)
		if status != http.StatusOK {
			writeError(w, status, msg)
			return
		}
	case EventPaymentCanceled:
		h.logger.Info("Payment canceled",
			"payment_id", n.Object.ID,
			"user_id", n.Object.Metadata.UserID,
			"product", n.Object.Metadata.Product,
		)
	default:
		h.logger.Debug("Webhook event ignored", "event", n.Event, "payment_id", n.Object.ID)
	}

	writeOK(w)
}

func (h *Handler) handleSucceeded(ctx context.Context, p Payment) (int, string) {
	ev, err := toEvent(p)
	if err != nil {
		h.logger.Warn("Webhook payment is not settleable", "error", err, "payment_id", p.ID)
		return http.StatusBadRequest, "Invalid metadata"
	}

	if h.verifier != nil {
		remote, err := h.verifier.GetPayment(ctx, p.ID)
		if err != nil {
			h.logger.Error("Failed to verify payment", "error", err, "payment_id", p.ID)
			return http.StatusBadGateway, "Verification failed"
		}
		if !remote.Succeeded {
			h.logger.Warn("Payment is not succeeded at provider, skipping",
				"payment_id", p.ID, "status", remote.Status)
			return http.StatusOK, ""
		}
	}

	res, err := h.settler.Settle(ctx, ev)
	if err != nil {
		if errors.Is(err, settlement.ErrInvalidEvent) {
			h.logger.Warn("Webhook settlement rejected", "error", err, "payment_id", p.ID)
			return http.StatusBadRequest, "Invalid metadata"
		}
		h.logger.Error("Webhook settlement failed", "error", err, "payment_id", p.ID)
		return http.StatusInternalServerError, "Settlement failed"
	}

	h.logger.Info("Webhook payment settled",
		"payment_id", p.ID,
		"user_id", ev.SubscriberID,
		"product", ev.Product,
		"status", res.Status,
	)
	return http.StatusOK, ""
}

func toEvent(p Payment) (settlement.Event, error) {
	if p.Metadata.UserID <= 0 {
		return settlement.Event{}, errors.New("metadata.user_id is missing")
	}
	product, ok := tariffs.ParseProduct(p.Metadata.Product)
	if !ok {
		return settlement.Event{}, errors.Errorf("unknown product %q", p.Metadata.Product)
	}
	amount, err := parseMinor(p.Amount.Value)
	if err != nil {
		return settlement.Event{}, err
	}
	occurredAt := p.OccurredAt()
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return settlement.Event{
		SubscriberID: p.Metadata.UserID,
		Product:      product,
		AmountMinor:  amount,
		Currency:     p.Amount.Currency,
		OccurredAt:   occurredAt,
		ChargeID:     p.ID,
		Source:       settlement.SourceWebhook,
	}, nil
}

func writeOK(w http.ResponseWriter) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("ok")
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
