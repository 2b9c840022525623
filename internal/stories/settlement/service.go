package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chanpay-bot/internal/stories/notify"
	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

var settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chanpay",
	Name:      "settlements_total",
	Help:      "Settlement events by product and outcome.",
}, []string{"product", "outcome"})

var tracer = otel.Tracer("chanpay-bot/settlement")

// Service turns completed payments into subscription windows.
type Service struct {
	storage  Storage
	notifier Notifier
	catalog  Catalog
	logger   *slog.Logger
}

func NewService(storage Storage, notifier Notifier, catalog Catalog, logger *slog.Logger) *Service {
	return &Service{
		storage:  storage,
		notifier: notifier,
		catalog:  catalog,
		logger:   logger,
	}
}

// Settle applies ev once. Replays of the same charge are reported as duplicates
// and change nothing.
func (s *Service) Settle(ctx context.Context, ev Event) (*Result, error) {
	ctx, span := tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.Int64("subscriber_id", ev.SubscriberID),
		attribute.String("product", string(ev.Product)),
		attribute.String("source", string(ev.Source)),
	))
	defer span.End()

	if err := ev.Validate(); err != nil {
		settlementsTotal.WithLabelValues(string(ev.Product), "invalid").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if ev.Currency == "" {
		ev.Currency = s.catalog.Currency()
	}

	if ev.Product == tariffs.ProductDonation {
		return s.settleDonation(ctx, ev)
	}

	tier, _ := ev.Product.Tier()
	entry := Entry{
		Key:          ev.IdempotencyKey(),
		SubscriberID: ev.SubscriberID,
		Tier:         tier,
		Product:      ev.Product,
		AmountMinor:  ev.AmountMinor,
		OccurredAt:   ev.OccurredAt.UTC(),
	}

	period := s.catalog.Period()
	outcome, err := s.storage.ApplySettlement(ctx, entry, func(current *time.Time) time.Time {
		return NextExpiry(current, entry.OccurredAt, period)
	})
	if err != nil {
		settlementsTotal.WithLabelValues(string(ev.Product), "failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply settlement")
		s.logger.Error("Settlement not persisted, manual reconciliation required",
			"error", err,
			"user_id", ev.SubscriberID,
			"tier", tier.String(),
			"amount_minor", ev.AmountMinor,
			"charge_id", entry.Key,
			"source", ev.Source)
		return nil, errors.Wrapf(err, "apply settlement for subscriber %d", ev.SubscriberID)
	}

	if outcome.Duplicate {
		settlementsTotal.WithLabelValues(string(ev.Product), "duplicate").Inc()
		s.logger.Warn("Duplicate settlement ignored",
			"user_id", ev.SubscriberID,
			"tier", tier.String(),
			"charge_id", entry.Key,
			"source", ev.Source)
		return &Result{Status: StatusDuplicate, Tier: tier}, nil
	}

	settlementsTotal.WithLabelValues(string(ev.Product), "applied").Inc()
	expiresAt := outcome.ExpiresAt
	span.SetAttributes(attribute.String("expires_at", expiresAt.Format(time.RFC3339)))

	s.logger.Info("Subscription settled",
		"user_id", ev.SubscriberID,
		"tier", tier.String(),
		"expires_at", expiresAt,
		"renewal", outcome.PreviousExpiry != nil && outcome.PreviousExpiry.After(entry.OccurredAt))

	confirmation := notify.ToUser(ev.SubscriberID, notify.KindPaymentConfirmed)
	confirmation.Tier = tier
	confirmation.Product = ev.Product
	confirmation.ExpiresAt = &expiresAt
	s.notify(ctx, confirmation)

	summary := notify.ToAdmins(notify.KindAdminPayment)
	summary.Tier = tier
	summary.Product = ev.Product
	summary.Subscriber = outcome.Subscriber
	summary.AmountMinor = ev.AmountMinor
	summary.Currency = ev.Currency
	summary.OccurredAt = entry.OccurredAt
	summary.ExpiresAt = &expiresAt
	s.notify(ctx, summary)

	return &Result{Status: StatusApplied, Tier: tier, ExpiresAt: &expiresAt}, nil
}

func (s *Service) settleDonation(ctx context.Context, ev Event) (*Result, error) {
	settlementsTotal.WithLabelValues(string(ev.Product), "donation").Inc()

	s.logger.Info("Donation received",
		"user_id", ev.SubscriberID,
		"amount_minor", ev.AmountMinor,
		"charge_id", ev.IdempotencyKey())

	// snapshot for the admin summary only; a failed read still notifies
	subscriber, err := s.storage.GetSubscriber(ctx, ev.SubscriberID)
	if err != nil {
		s.logger.Warn("Failed to load subscriber for donation summary", "error", err, "user_id", ev.SubscriberID)
	}
	if subscriber == nil {
		subscriber = &subscribers.Subscriber{ID: ev.SubscriberID}
	}

	thanks := notify.ToUser(ev.SubscriberID, notify.KindDonationThanks)
	thanks.Product = ev.Product
	thanks.AmountMinor = ev.AmountMinor
	thanks.Currency = ev.Currency
	s.notify(ctx, thanks)

	summary := notify.ToAdmins(notify.KindAdminPayment)
	summary.Product = ev.Product
	summary.Subscriber = subscriber
	summary.AmountMinor = ev.AmountMinor
	summary.Currency = ev.Currency
	summary.OccurredAt = ev.OccurredAt.UTC()
	s.notify(ctx, summary)

	return &Result{Status: StatusDonation}, nil
}

func (s *Service) notify(ctx context.Context, intent notify.Intent) {
	if err := s.notifier.Notify(ctx, intent); err != nil {
		s.logger.Error("Failed to deliver notification",
			"error", err,
			"kind", intent.Kind,
			"user_id", intent.RecipientID)
	}
}
