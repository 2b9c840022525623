package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

const usersTable = "users"

var ErrSubscriberNotFound = errors.New("subscriber not found")

var subscriberRowFields = fields(subscriberRow{})

type subscriberRow struct {
	ID                 int64      `db:"id"`
	Handle             *string    `db:"handle"`
	DisplayName        *string    `db:"display_name"`
	Phone              *string    `db:"phone"`
	Tier1Active        bool       `db:"tier1_active"`
	Tier1LastPaymentAt *time.Time `db:"tier1_last_payment_at"`
	Tier1ExpiresAt     *time.Time `db:"tier1_expires_at"`
	Tier2Active        bool       `db:"tier2_active"`
	Tier2LastPaymentAt *time.Time `db:"tier2_last_payment_at"`
	Tier2ExpiresAt     *time.Time `db:"tier2_expires_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (r subscriberRow) ToModel() *subscribers.Subscriber {
	return &subscribers.Subscriber{
		ID:          r.ID,
		Handle:      r.Handle,
		DisplayName: r.DisplayName,
		Phone:       r.Phone,
		Tier1: subscribers.TierState{
			Active:        r.Tier1Active,
			LastPaymentAt: utcPtr(r.Tier1LastPaymentAt),
			ExpiresAt:     utcPtr(r.Tier1ExpiresAt),
		},
		Tier2: subscribers.TierState{
			Active:        r.Tier2Active,
			LastPaymentAt: utcPtr(r.Tier2LastPaymentAt),
			ExpiresAt:     utcPtr(r.Tier2ExpiresAt),
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// UpsertIdentity creates the record if absent. On conflict only empty
// identity fields are filled in; present values are never overwritten.
func (s *storageImpl) UpsertIdentity(ctx context.Context, identity subscribers.Identity) error {
	now := s.now()
	params := map[string]interface{}{
		"id":           identity.ID,
		"handle":       identity.Handle,
		"display_name": identity.DisplayName,
		"created_at":   now,
		"updated_at":   now,
	}

	q, args, err := s.stmpBuilder().
		Insert(usersTable).
		SetMap(params).
		Suffix("ON CONFLICT(id) DO UPDATE SET " +
			"handle = COALESCE(users.handle, excluded.handle), " +
			"display_name = COALESCE(users.display_name, excluded.display_name), " +
			"updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

func (s *storageImpl) SetPhone(ctx context.Context, id int64, phone string) error {
	q, args, err := s.stmpBuilder().
		Update(usersTable).
		Set("phone", phone).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	return s.execOne(ctx, s.db, id, q, args...)
}

func (s *storageImpl) GetSubscriber(ctx context.Context, id int64) (*subscribers.Subscriber, error) {
	return s.getSubscriber(ctx, s.db, id)
}

func (s *storageImpl) getSubscriber(ctx context.Context, db sqlx.QueryerContext, id int64) (*subscribers.Subscriber, error) {
	q, args, err := s.stmpBuilder().
		Select(subscriberRowFields).
		From(usersTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row subscriberRow
	if err := sqlx.GetContext(ctx, db, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}

func (s *storageImpl) ListSubscribers(ctx context.Context, criteria subscribers.ListCriteria) ([]*subscribers.Subscriber, error) {
	query := s.stmpBuilder().
		Select(subscriberRowFields).
		From(usersTable)

	if criteria.ActiveTier != nil {
		cols, err := columnsFor(*criteria.ActiveTier)
		if err != nil {
			return nil, err
		}
		query = query.Where(sq.Eq{cols.active: true})
	}

	if criteria.Limit > 0 {
		query = query.Limit(uint64(criteria.Limit))
	}
	if criteria.Offset > 0 {
		query = query.Offset(uint64(criteria.Offset))
	}

	query = query.OrderBy("created_at ASC", "id ASC")

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []subscriberRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*subscribers.Subscriber, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.ToModel())
	}

	return result, nil
}

// ListActive returns subscribers whose tier is flagged active.
func (s *storageImpl) ListActive(ctx context.Context, tier tariffs.Tier) ([]*subscribers.Subscriber, error) {
	return s.ListSubscribers(ctx, subscribers.ListCriteria{ActiveTier: &tier})
}

// Deactivate clears the active flag; the expiry stays as history.
func (s *storageImpl) Deactivate(ctx context.Context, id int64, tier tariffs.Tier) error {
	cols, err := columnsFor(tier)
	if err != nil {
		return err
	}

	q, args, err := s.stmpBuilder().
		Update(usersTable).
		Set(cols.active, false).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	return s.execOne(ctx, s.db, id, q, args...)
}

// RecordSettlement marks the tier paid until expiresAt.
func (s *storageImpl) RecordSettlement(ctx context.Context, id int64, tier tariffs.Tier, paidAt, expiresAt time.Time) error {
	return s.recordSettlement(ctx, s.db, id, tier, paidAt, expiresAt)
}

func (s *storageImpl) recordSettlement(ctx context.Context, db sqlx.ExecerContext, id int64, tier tariffs.Tier, paidAt, expiresAt time.Time) error {
	cols, err := columnsFor(tier)
	if err != nil {
		return err
	}

	q, args, err := s.stmpBuilder().
		Update(usersTable).
		Set(cols.active, true).
		Set(cols.lastPaymentAt, paidAt.UTC()).
		Set(cols.expiresAt, expiresAt.UTC()).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	return s.execOne(ctx, db, id, q, args...)
}

func (s *storageImpl) execOne(ctx context.Context, db sqlx.ExecerContext, id int64, q string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("result.RowsAffected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrSubscriberNotFound, id)
	}

	return nil
}
