package settlement

import (
	"context"
	"time"

	"chanpay-bot/internal/stories/notify"
	"chanpay-bot/internal/stories/subscribers"
)

type (
	Storage interface {
		ApplySettlement(ctx context.Context, entry Entry, next ExpiryFunc) (*Outcome, error)
		GetSubscriber(ctx context.Context, id int64) (*subscribers.Subscriber, error)
	}

	Notifier interface {
		Notify(ctx context.Context, intent notify.Intent) error
	}

	Catalog interface {
		Currency() string
		Period() time.Duration
	}
)
