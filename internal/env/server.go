package environment

import (
	"context"
	"log/slog"
	"net/http"

	"chanpay-bot/internal/config"
	"chanpay-bot/internal/stories/settlement"
	"chanpay-bot/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Servers struct {
	HTTP struct {
		Observability *http.Server
		// Webhook is nil when WEBHOOK_ENABLED=false.
		Webhook *http.Server
	}
}

func newServers(ctx context.Context, cfg config.Config, logger *slog.Logger, clients *Clients, services *Services) *Servers {
	var servers Servers

	if services.Webhook != nil {
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		services.Webhook.RegisterRoutes(r)

		servers.HTTP.Webhook = &http.Server{
			Addr:              cfg.Webhook.ADDR(),
			Handler:           r,
			ReadTimeout:       cfg.Webhook.ReadTimeout,
			WriteTimeout:      cfg.Webhook.WriteTimeout,
			ReadHeaderTimeout: cfg.Webhook.ReadTimeout,
		}
	}

	servers.HTTP.Observability = initObservability(ctx, logger.WithGroup("http"), clients, cfg)

	return &servers
}

func newWebhookHandler(cfg *config.Config, clients *Clients, settler *settlement.Service, logger *slog.Logger) *webhook.Handler {
	// nil *yookassa.Client не должен попасть в интерфейс
	if clients.YooKassa == nil {
		return webhook.NewHandler(cfg.Webhook.SecretKey, settler, nil, logger)
	}
	return webhook.NewHandler(cfg.Webhook.SecretKey, settler, clients.YooKassa, logger)
}
