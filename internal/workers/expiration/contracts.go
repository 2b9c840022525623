package expiration

import (
	"context"

	"chanpay-bot/internal/stories/notify"
	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

type (
	// Storage provides database operations
	Storage interface {
		ListActive(ctx context.Context, tier tariffs.Tier) ([]*subscribers.Subscriber, error)
		Deactivate(ctx context.Context, id int64, tier tariffs.Tier) error
	}

	Notifier interface {
		Notify(ctx context.Context, intent notify.Intent) error
	}
)
