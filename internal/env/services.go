package environment

import (
	"context"
	"log/slog"
	"time"

	"chanpay-bot/internal/config"
	"chanpay-bot/internal/localization"
	"chanpay-bot/internal/storage"
	"chanpay-bot/internal/stories/settlement"
	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
	"chanpay-bot/internal/telegram"
	"chanpay-bot/internal/telegram/cmds"
	"chanpay-bot/internal/telegram/flows/onboarding"
	"chanpay-bot/internal/telegram/messages"
	"chanpay-bot/internal/telegram/notifier"
	"chanpay-bot/internal/telegram/states"
	"chanpay-bot/internal/webhook"
	"chanpay-bot/internal/workers"
	"chanpay-bot/internal/workers/expiration"
	"chanpay-bot/internal/workers/sessions"

	"github.com/pkg/errors"
)

type Services struct {
	TelegramRouter *telegram.Router
	BotCommands    func() error
	Settlement     *settlement.Service
	Webhook        *webhook.Handler
	Expiration     *expiration.Worker
	WorkerManager  *workers.Manager
}

func newServices(_ context.Context, clients *Clients, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	var s Services

	loc, err := time.LoadLocation(cfg.Sweep.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", cfg.Sweep.Timezone)
	}

	l10n, err := localization.NewService()
	if err != nil {
		return nil, errors.Wrap(err, "localization")
	}

	storageImpl := storage.New(clients.SQLiteDB.DB)

	catalog := tariffs.NewCatalog(
		cfg.Billing.Currency,
		cfg.Billing.Period,
		cfg.Billing.DonationMinAmount,
		tariffFrom(cfg.Billing.Tier1),
		tariffFrom(cfg.Billing.Tier2),
	)
	texts := messages.NewFormatter(l10n, catalog, loc)

	stateManager := states.NewManager(cfg.Telegram.SessionTTL)
	adminChecker := telegram.NewAdminChecker(&cfg.Telegram)
	if len(adminChecker.AdminIDs()) == 0 {
		logger.Warn("TELEGRAM_ADMIN_IDS is empty: admin notifications and /get_users_db are disabled")
	}

	subscriberService := subscribers.NewService(storageImpl)
	dispatcher := notifier.New(clients.TelegramBot, texts, adminChecker.AdminIDs(), logger.With("component", "notifier"))
	s.Settlement = settlement.NewService(storageImpl, dispatcher, catalog, logger.With("component", "settlement"))

	onboardingHandler := onboarding.NewHandler(
		clients.TelegramBot,
		stateManager,
		subscriberService,
		catalog,
		texts,
		cfg.Telegram.ProviderToken,
		logger.With("component", "onboarding"),
	)

	exportUsers := cmds.NewExportUsersCommand(clients.TelegramBot, subscriberService, adminChecker, texts)
	help := cmds.NewHelpCommand(clients.TelegramBot, texts)

	s.TelegramRouter = telegram.NewRouter(
		clients.TelegramBot,
		stateManager,
		onboardingHandler,
		s.Settlement,
		exportUsers,
		help,
		texts,
		logger.With("component", "router"),
	)
	s.BotCommands = func() error {
		return s.TelegramRouter.SetupBotCommands(cmds.BotCommands(texts))
	}

	if cfg.Webhook.Enabled {
		if cfg.Webhook.SecretKey == "" {
			logger.Warn("WEBHOOK_SECRET_KEY is empty: every webhook request will be rejected")
		}
		s.Webhook = newWebhookHandler(cfg, clients, s.Settlement, logger.With("component", "webhook"))
	}

	s.Expiration = expiration.NewWorker(storageImpl, dispatcher, expiration.Config{
		Schedule:   cfg.Sweep.Schedule,
		Location:   loc,
		RunOnStart: cfg.Sweep.RunOnStart,
	}, logger.With("worker", "expiration"))

	s.WorkerManager = workers.NewManager(
		logger,
		s.Expiration,
		sessions.NewWorker(stateManager, 0, logger.With("worker", "sessions")),
	)

	return &s, nil
}

func tariffFrom(c config.TierConfig) tariffs.Tariff {
	return tariffs.Tariff{
		Name:        c.Name,
		Title:       c.Title,
		Label:       c.Label,
		Description: c.Description,
		PriceMinor:  c.PriceMinor,
		InviteURL:   c.InviteURL,
	}
}
