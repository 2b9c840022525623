package environment

import (
	"context"
	"log/slog"
	"time"

	"chanpay-bot/internal/config"
	"chanpay-bot/internal/infra/sqlite3"
	"chanpay-bot/internal/infra/telegram"
	"chanpay-bot/internal/infra/yookassa"

	"github.com/pkg/errors"
)

type Clients struct {
	SQLiteDB    *sqlite3.DB
	TelegramBot *telegram.Client
	// YooKassa is nil unless webhook payments are cross-checked with the API.
	YooKassa *yookassa.Client
}

func newClients(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, error) {
	sqliteDB, err := provideSQLiteDB(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite")
	}

	telegramBot, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.SendRPS, logger)
	if err != nil {
		_ = sqliteDB.Close()
		return nil, errors.Wrap(err, "telegram")
	}

	clients := &Clients{
		SQLiteDB:    sqliteDB,
		TelegramBot: telegramBot,
	}

	if cfg.Webhook.VerifyWithAPI {
		if cfg.YooKassa.ShopID == "" || cfg.YooKassa.SecretKey == "" {
			_ = sqliteDB.Close()
			return nil, errors.New("YOOKASSA_SHOP_ID and YOOKASSA_SECRET_KEY are required to verify webhooks")
		}
		clients.YooKassa = yookassa.NewClient(cfg.YooKassa.ShopID, cfg.YooKassa.SecretKey, logger)
	}

	return clients, nil
}

func provideSQLiteDB(ctx context.Context, cfg config.Config) (*sqlite3.DB, error) {
	maxLifetimeStr := cfg.DB.MaxLifetime
	if maxLifetimeStr == "" {
		maxLifetimeStr = "0s"
	}
	maxLifetime, err := time.ParseDuration(maxLifetimeStr)
	if err != nil {
		return nil, err
	}

	opts := []sqlite3.Option{
		sqlite3.WithDSN(cfg.DB.DSN()),
		sqlite3.WithMaxOpenConns(cfg.DB.MaxOpenConns),
		sqlite3.WithMaxIdleConns(cfg.DB.MaxIdleConns),
		sqlite3.WithConnMaxLifetime(maxLifetime),
	}

	return sqlite3.New(ctx, opts...)
}
