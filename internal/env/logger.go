package environment

import (
	"log/slog"
	"os"
	"strings"

	"chanpay-bot/internal/config"
)

const serviceName = "chanpay-bot"

func initLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := parseLogLevel(cfg.Logger.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// локально читаем глазами, в проде собираем JSON
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		slog.String("service", serviceName),
		slog.String("env", cfg.Env),
	), nil
}

// parseLogLevel accepts debug, info, warn(ing) and error in any case.
func parseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if strings.EqualFold(level, "warning") {
		level = "warn"
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, err
	}
	return l, nil
}
