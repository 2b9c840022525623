package expiration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chanpay-bot/internal/stories/notify"
	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chanpay",
		Name:      "sweep_classifications_total",
		Help:      "Active subscriptions seen by the expiration sweep, by tier and band.",
	}, []string{"tier", "band"})

	lastSweepTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chanpay",
		Name:      "sweep_last_run_timestamp_seconds",
		Help:      "Unix time of the last finished expiration sweep.",
	})
)

var tracer = otel.Tracer("chanpay-bot/expiration")

type Config struct {
	Schedule   string
	Location   *time.Location
	RunOnStart bool
}

// Worker runs the daily expiration sweep
type Worker struct {
	storage  Storage
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	cron     *cron.Cron
	now      func() time.Time

	// one sweep at a time
	sweepMu sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWorker creates a new expiration worker
func NewWorker(storage Storage, notifier Notifier, cfg Config, logger *slog.Logger) *Worker {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 0 * * *"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		storage:  storage,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		cron:     cron.New(cron.WithLocation(cfg.Location)),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return "expiration"
}

// Start schedules the sweep; the next run is recomputed from the wall clock after every run.
func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.cfg.Schedule, func() {
		w.wg.Add(1)
		defer w.wg.Done()
		w.RunNow(w.ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule expiration worker: %w", err)
	}

	w.cron.Start()
	w.logger.Info("Expiration worker scheduled",
		"schedule", w.cfg.Schedule,
		"timezone", w.cfg.Location.String())

	if w.cfg.RunOnStart {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("Panic in expiration sweep", "panic", r)
				}
			}()
			w.RunNow(w.ctx)
		}()
	}

	return nil
}

// Stop cancels a running sweep and waits for it to return
func (w *Worker) Stop() {
	w.logger.Info("Stopping expiration worker")
	w.cancel()
	<-w.cron.Stop().Done()
	w.wg.Wait()
}

// RunNow executes one sweep over both tiers.
func (w *Worker) RunNow(ctx context.Context) *Report {
	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()

	now := w.now()
	report := newReport(uuid.NewString(), now)
	logger := w.logger.With("run_id", report.RunID)

	ctx, span := tracer.Start(ctx, "expiration.Sweep", trace.WithAttributes(
		attribute.String("run_id", report.RunID),
	))
	defer span.End()

	logger.Info("Starting expiration sweep")

	for _, tier := range tariffs.Tiers {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}
		w.sweepTier(ctx, logger, tier, now, report)
	}

	span.SetAttributes(
		attribute.Int("deactivated", report.Deactivated),
		attribute.Int("failures", report.Failures),
		attribute.Bool("canceled", report.Canceled),
	)
	lastSweepTimestamp.SetToCurrentTime()

	logger.Info("Expiration sweep completed",
		"deactivated", report.Deactivated,
		"failures", report.Failures,
		"canceled", report.Canceled)

	return report
}

func (w *Worker) sweepTier(ctx context.Context, logger *slog.Logger, tier tariffs.Tier, now time.Time, report *Report) {
	subs, err := w.storage.ListActive(ctx, tier)
	if err != nil {
		report.Failures++
		logger.Error("Failed to list active subscribers", "tier", tier.String(), "error", err)
		return
	}

	logger.Info("Sweeping tier", "tier", tier.String(), "active", len(subs))

	for _, sub := range subs {
		if ctx.Err() != nil {
			report.Canceled = true
			return
		}

		band := Classify(sub.Tier(tier).ExpiresAt, now)
		report.Counts[tier][band]++
		classificationsTotal.WithLabelValues(tier.String(), string(band)).Inc()

		if !w.apply(ctx, logger, tier, sub, band, report) {
			report.Failures++
		}
	}
}

func (w *Worker) apply(ctx context.Context, logger *slog.Logger, tier tariffs.Tier, sub *subscribers.Subscriber, band Band, report *Report) bool {
	switch band {
	case BandExpired:
		if err := w.storage.Deactivate(ctx, sub.ID, tier); err != nil {
			// подписчик останется активным и попадет в следующий прогон
			logger.Error("Failed to deactivate subscription",
				"user_id", sub.ID,
				"tier", tier.String(),
				"error", err)
			return false
		}
		report.Deactivated++
		logger.Info("Subscription deactivated", "user_id", sub.ID, "tier", tier.String())

		userIntent := notify.ToUser(sub.ID, notify.KindExpired)
		userIntent.Tier = tier
		ok := w.notify(ctx, logger, userIntent)

		adminIntent := notify.ToAdmins(notify.KindAdminExpired)
		adminIntent.Tier = tier
		adminIntent.Subscriber = sub
		return w.notify(ctx, logger, adminIntent) && ok

	case BandExpiringTomorrow, BandExpiringSoon:
		kind := notify.KindExpiringSoon
		if band == BandExpiringTomorrow {
			kind = notify.KindExpiringTomorrow
		}
		intent := notify.ToUser(sub.ID, kind)
		intent.Tier = tier
		intent.ExpiresAt = sub.Tier(tier).ExpiresAt
		return w.notify(ctx, logger, intent)

	default:
		return true
	}
}

func (w *Worker) notify(ctx context.Context, logger *slog.Logger, intent notify.Intent) bool {
	if err := w.notifier.Notify(ctx, intent); err != nil {
		logger.Warn("Failed to deliver expiration notification",
			"kind", intent.Kind,
			"user_id", intent.RecipientID,
			"error", err)
		return false
	}
	return true
}
