package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"chanpay-bot/internal/infra/sqlite3"
	"chanpay-bot/internal/stories/settlement"
)

const settlementsTable = "settlements"

// ApplySettlement claims entry.Key in the ledger and extends the tier in the
// same transaction. A key claimed earlier yields Outcome.Duplicate and no writes.
func (s *storageImpl) ApplySettlement(ctx context.Context, entry settlement.Entry, next settlement.ExpiryFunc) (*settlement.Outcome, error) {
	if _, err := columnsFor(entry.Tier); err != nil {
		return nil, err
	}

	var outcome settlement.Outcome
	err := sqlite3.WithTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		if err := s.ensureSubscriber(ctx, tx, entry.SubscriberID); err != nil {
			return err
		}

		claimed, err := s.claimSettlement(ctx, tx, entry)
		if err != nil {
			return err
		}

		current, err := s.getSubscriber(ctx, tx, entry.SubscriberID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %d", ErrSubscriberNotFound, entry.SubscriberID)
		}

		if !claimed {
			outcome.Duplicate = true
			outcome.Subscriber = current
			return nil
		}

		previous := current.Tier(entry.Tier).ExpiresAt
		expiresAt := next(previous).UTC()

		if err := s.recordSettlement(ctx, tx, entry.SubscriberID, entry.Tier, entry.OccurredAt, expiresAt); err != nil {
			return err
		}

		q, args, err := s.stmpBuilder().
			Update(settlementsTable).
			Set("expires_at", expiresAt).
			Where(sq.Eq{"charge_id": entry.Key}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build sql query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		updated, err := s.getSubscriber(ctx, tx, entry.SubscriberID)
		if err != nil {
			return err
		}

		outcome.PreviousExpiry = previous
		outcome.ExpiresAt = expiresAt
		outcome.Subscriber = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}

// ensureSubscriber creates a bare record for a payer we have never seen.
func (s *storageImpl) ensureSubscriber(ctx context.Context, tx *sqlx.Tx, id int64) error {
	now := s.now()
	q, args, err := s.stmpBuilder().
		Insert(usersTable).
		Columns("id", "created_at", "updated_at").
		Values(id, now, now).
		Suffix("ON CONFLICT(id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}
	return nil
}

func (s *storageImpl) claimSettlement(ctx context.Context, tx *sqlx.Tx, entry settlement.Entry) (bool, error) {
	q, args, err := s.stmpBuilder().
		Insert(settlementsTable).
		Columns("charge_id", "user_id", "product", "amount", "occurred_at", "created_at").
		Values(entry.Key, entry.SubscriberID, string(entry.Product), entry.AmountMinor, entry.OccurredAt.UTC(), s.now()).
		Suffix("ON CONFLICT(charge_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build sql query: %w", err)
	}

	result, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("tx.ExecContext: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("result.RowsAffected: %w", err)
	}

	return affected == 1, nil
}
