package settlement

import (
	"context"
	"time"

	"chanpay-bot/internal/stories/notify"
	"chanpay-bot/internal/stories/subscribers"
)

// mockStorage keeps one tier expiry per subscriber and a set of claimed keys.
type mockStorage struct {
	expiries map[int64]*time.Time
	claimed  map[string]bool
	applyErr error
	applied  int
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		expiries: make(map[int64]*time.Time),
		claimed:  make(map[string]bool),
	}
}

func (m *mockStorage) ApplySettlement(ctx context.Context, entry Entry, next ExpiryFunc) (*Outcome, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	sub := &subscribers.Subscriber{ID: entry.SubscriberID}
	if m.claimed[entry.Key] {
		return &Outcome{Duplicate: true, Subscriber: sub}, nil
	}
	m.claimed[entry.Key] = true
	m.applied++

	previous := m.expiries[entry.SubscriberID]
	expiresAt := next(previous)
	m.expiries[entry.SubscriberID] = &expiresAt

	return &Outcome{PreviousExpiry: previous, ExpiresAt: expiresAt, Subscriber: sub}, nil
}

func (m *mockStorage) GetSubscriber(ctx context.Context, id int64) (*subscribers.Subscriber, error) {
	return &subscribers.Subscriber{ID: id}, nil
}

type mockNotifier struct {
	intents []notify.Intent
	err     error
}

func (m *mockNotifier) Notify(ctx context.Context, intent notify.Intent) error {
	m.intents = append(m.intents, intent)
	return m.err
}

type mockCatalog struct{}

func (mockCatalog) Currency() string      { return "RUB" }
func (mockCatalog) Period() time.Duration { return 30 * 24 * time.Hour }
