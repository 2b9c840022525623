package legacyimport

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

const legacyUsersTable = "users"

var legacyColumns = []string{
	"id", "username", "full_name", "phone",
	"is_paid_channel_1", "is_paid_channel_2",
	"payment_date_channel_1", "payment_date_channel_2",
	"subscription_end_date_channel_1", "subscription_end_date_channel_2",
}

// Load reads every user of the old database.
func Load(ctx context.Context, db *sqlx.DB) ([]LegacyUser, error) {
	q, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Question).
		Select(legacyColumns...).
		From(legacyUsersTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql query")
	}

	var users []LegacyUser
	if err := db.SelectContext(ctx, &users, q, args...); err != nil {
		return nil, errors.Wrap(err, "select legacy users")
	}
	return users, nil
}

type Service struct {
	storage Storage
	loc     *time.Location
	period  time.Duration
	dryRun  bool
	logger  *slog.Logger
}

// NewService: loc is the zone the old timestamps were written in; period fills
// a missing end date from the payment date.
func NewService(storage Storage, loc *time.Location, period time.Duration, dryRun bool, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		storage: storage,
		loc:     loc,
		period:  period,
		dryRun:  dryRun,
		logger:  logger,
	}
}

// Import writes users into the store. Rows are independent: one bad row is
// counted and skipped, the rest go on.
func (s *Service) Import(ctx context.Context, users []LegacyUser) (Stats, error) {
	var stats Stats

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if u.ID <= 0 {
			stats.Skipped++
			continue
		}

		if err := s.importUser(ctx, u, &stats); err != nil {
			s.logger.Error("Failed to import user", "user_id", u.ID, "error", err)
			stats.Errors++
			continue
		}

		stats.Imported++
	}

	return stats, nil
}

func (s *Service) importUser(ctx context.Context, u LegacyUser, stats *Stats) error {
	identity := subscribers.Identity{
		ID:          u.ID,
		Handle:      nonEmpty(u.Username),
		DisplayName: nonEmpty(u.FullName),
	}

	states := make(map[tariffs.Tier]subscribers.TierState, len(tariffs.Tiers))
	for _, tier := range tariffs.Tiers {
		state, ok, err := s.tierState(u.ID, tier, u.tier(tier))
		if err != nil {
			return errors.Wrapf(err, "%s", tier)
		}
		if ok {
			states[tier] = state
		}
	}

	if s.dryRun {
		stats.Tiers += len(states)
		return nil
	}

	if err := s.storage.UpsertIdentity(ctx, identity); err != nil {
		return errors.Wrap(err, "upsert identity")
	}
	if phone := nonEmpty(u.Phone); phone != nil {
		if err := s.storage.FillPhone(ctx, u.ID, *phone); err != nil {
			return errors.Wrap(err, "fill phone")
		}
	}

	for _, tier := range tariffs.Tiers {
		state, ok := states[tier]
		if !ok {
			continue
		}
		written, err := s.storage.ImportTier(ctx, u.ID, tier, state)
		if err != nil {
			return errors.Wrapf(err, "import %s", tier)
		}
		if !written {
			s.logger.Info("Stored tier is newer, kept", "user_id", u.ID, "tier", tier)
			stats.Kept++
			continue
		}
		stats.Tiers++
	}

	return nil
}

// tierState converts the old columns; false when the row has nothing for this tier.
func (s *Service) tierState(id int64, tier tariffs.Tier, lt legacyTier) (subscribers.TierState, bool, error) {
	if lt.paidAt == "" && lt.expiresAt == "" {
		if lt.active {
			s.logger.Warn("Active tier without dates, skipped", "user_id", id, "tier", tier)
		}
		return subscribers.TierState{}, false, nil
	}

	var paidAt, expiresAt time.Time
	var err error

	if lt.paidAt != "" {
		if paidAt, err = parseDate(lt.paidAt, s.loc); err != nil {
			return subscribers.TierState{}, false, errors.Wrap(err, "payment date")
		}
	}
	if lt.expiresAt != "" {
		if expiresAt, err = parseDate(lt.expiresAt, s.loc); err != nil {
			return subscribers.TierState{}, false, errors.Wrap(err, "end date")
		}
	} else {
		expiresAt = paidAt.Add(s.period)
	}
	if paidAt.IsZero() {
		paidAt = expiresAt.Add(-s.period)
	}

	s.logger.Debug("Importing tier",
		"user_id", id,
		"tier", tier,
		"active", lt.active,
		"expires_at", expiresAt,
		"dry_run", s.dryRun,
	)

	return subscribers.TierState{
		Active:        lt.active,
		LastPaymentAt: &paidAt,
		ExpiresAt:     &expiresAt,
	}, true, nil
}
