package legacyimport

import (
	"context"

	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

type (
	Storage interface {
		UpsertIdentity(ctx context.Context, identity subscribers.Identity) error
		// FillPhone keeps a phone that is already stored.
		FillPhone(ctx context.Context, id int64, phone string) error
		// ImportTier never moves a stored expiry back; false means the store was newer.
		ImportTier(ctx context.Context, id int64, tier tariffs.Tier, state subscribers.TierState) (bool, error)
	}
)
