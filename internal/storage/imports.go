package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"chanpay-bot/internal/infra/sqlite3"
	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

// FillPhone stores phone only when the subscriber has none yet.
func (s *storageImpl) FillPhone(ctx context.Context, id int64, phone string) error {
	q, args, err := s.stmpBuilder().
		Update(usersTable).
		Set("phone", phone).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id}).
		Where(sq.Or{sq.Eq{"phone": nil}, sq.Eq{"phone": ""}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}
	return nil
}

// ImportTier writes a tier state taken from outside the payment flow. The
// stored expiry never moves back: when it is the same or later than
// state.ExpiresAt nothing is written and false is returned.
func (s *storageImpl) ImportTier(ctx context.Context, id int64, tier tariffs.Tier, state subscribers.TierState) (bool, error) {
	cols, err := columnsFor(tier)
	if err != nil {
		return false, err
	}
	if state.ExpiresAt == nil {
		return false, fmt.Errorf("import %s for %d: expiry is required", tier, id)
	}

	var written bool
	err = sqlite3.WithTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		current, err := s.getSubscriber(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %d", ErrSubscriberNotFound, id)
		}

		if stored := current.Tier(tier).ExpiresAt; stored != nil && !stored.Before(*state.ExpiresAt) {
			return nil
		}

		q, args, err := s.stmpBuilder().
			Update(usersTable).
			Set(cols.active, state.Active).
			Set(cols.lastPaymentAt, utcPtr(state.LastPaymentAt)).
			Set(cols.expiresAt, state.ExpiresAt.UTC()).
			Set("updated_at", s.now()).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build sql query: %w", err)
		}

		if err := s.execOne(ctx, tx, id, q, args...); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return written, nil
}
