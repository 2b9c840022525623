package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env              string                  `env:"ENV,default=local"`
	Logger           LoggerConfig            `env:",prefix=LOGGER_"`
	Observability    ObservabilityHTTPConfig `env:",prefix=OBSERVABILITY_"`
	ShutdownDuration time.Duration           `env:"SHUTDOWN_DURATION,default=30s"`
	DB               SQLiteConfig            `env:",prefix=DB_"`
	Telegram         TelegramConfig          `env:",prefix=TELEGRAM_"`
	Billing          BillingConfig           `env:",prefix=BILLING_"`
	Sweep            SweepConfig             `env:",prefix=SWEEP_"`
	Webhook          WebhookConfig           `env:",prefix=WEBHOOK_"`
	YooKassa         YooKassaConfig          `env:",prefix=YOOKASSA_"`
}

type TelegramConfig struct {
	BotToken      string        `env:"BOT_TOKEN,required"`
	ProviderToken string        `env:"PROVIDER_TOKEN,required"`
	Timeout       time.Duration `env:"TIMEOUT,default=30s"`
	AdminIDs      []int64       `env:"ADMIN_IDS"`
	SessionTTL    time.Duration `env:"SESSION_TTL,default=24h"`
	SendRPS       float64       `env:"SEND_RPS,default=30"`
}

// BillingConfig describes the two fixed tiers and the donation flow.
type BillingConfig struct {
	Currency          string        `env:"CURRENCY,default=RUB"`
	Period            time.Duration `env:"PERIOD,default=720h"`
	DonationMinAmount float64       `env:"DONATION_MIN_AMOUNT,default=60"`
	Tier1             TierConfig    `env:",prefix=TIER1_"`
	Tier2             TierConfig    `env:",prefix=TIER2_"`
}

type TierConfig struct {
	Name        string `env:"NAME"`
	Title       string `env:"TITLE"`
	Label       string `env:"LABEL"`
	Description string `env:"DESCRIPTION,default=Оплата доступа к закрытому каналу"`
	PriceMinor  int64  `env:"PRICE_MINOR"`
	InviteURL   string `env:"INVITE_URL"`
}

type SweepConfig struct {
	Schedule   string `env:"SCHEDULE,default=0 0 * * *"`
	Timezone   string `env:"TIMEZONE,default=Local"`
	RunOnStart bool   `env:"RUN_ON_START,default=true"`
}

type WebhookConfig struct {
	Enabled       bool          `env:"ENABLED,default=true"`
	Host          string        `env:"HOST,default=0.0.0.0"`
	Port          uint16        `env:"PORT,default=5000"`
	SecretKey     string        `env:"SECRET_KEY"`
	VerifyWithAPI bool          `env:"VERIFY_WITH_API,default=false"`
	ReadTimeout   time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout  time.Duration `env:"WRITE_TIMEOUT,default=15s"`
}

func (w WebhookConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

type YooKassaConfig struct {
	ShopID    string `env:"SHOP_ID"`
	SecretKey string `env:"SECRET_KEY"`
}

type LoggerConfig struct {
	Level string `env:"LEVEL,default=debug"`
}

type ObservabilityHTTPConfig struct {
	Host         string        `env:"HOST,default=127.0.0.1"`
	Port         uint16        `env:"PORT,default=8383"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=1m"`
}

func (a ObservabilityHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// SQLiteConfig: one open connection keeps writes single-writer.
type SQLiteConfig struct {
	Path         string `env:"PATH,default=./data/users.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS,default=1"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS,default=1"`
	MaxLifetime  string `env:"MAX_LIFETIME,default=0s"`
	BusyTimeout  int    `env:"BUSY_TIMEOUT_MS,default=5000"`
}

// DSN builds the go-sqlite3 connection string for Path.
func (c SQLiteConfig) DSN() string {
	if c.Path == ":memory:" {
		return c.Path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", c.Path, c.BusyTimeout)
}
