package expiration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"chanpay-bot/internal/stories/notify"
	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

var sweepNow = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

type mockStorage struct {
	active        map[tariffs.Tier][]*subscribers.Subscriber
	listErr       map[tariffs.Tier]error
	deactivateErr error
	deactivated   []int64
}

func (m *mockStorage) ListActive(ctx context.Context, tier tariffs.Tier) ([]*subscribers.Subscriber, error) {
	if err := m.listErr[tier]; err != nil {
		return nil, err
	}
	return m.active[tier], nil
}

func (m *mockStorage) Deactivate(ctx context.Context, id int64, tier tariffs.Tier) error {
	if m.deactivateErr != nil {
		return m.deactivateErr
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockNotifier struct {
	intents []notify.Intent
	onCall  func()
	failFor map[int64]error
}

func (m *mockNotifier) Notify(ctx context.Context, intent notify.Intent) error {
	m.intents = append(m.intents, intent)
	if m.onCall != nil {
		m.onCall()
	}
	if intent.Audience == notify.AudienceUser {
		return m.failFor[intent.RecipientID]
	}
	return nil
}

func (m *mockNotifier) count(kind notify.Kind) int {
	n := 0
	for _, i := range m.intents {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

func newTestWorker(st *mockStorage, n *mockNotifier) *Worker {
	w := NewWorker(st, n, Config{Location: time.UTC}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = func() time.Time { return sweepNow }
	return w
}

func subscriberExpiring(id int64, tier tariffs.Tier, expiresAt *time.Time) *subscribers.Subscriber {
	sub := &subscribers.Subscriber{ID: id}
	state := subscribers.TierState{Active: true, ExpiresAt: expiresAt}
	if tier == tariffs.Tier2 {
		sub.Tier2 = state
	} else {
		sub.Tier1 = state
	}
	return sub
}

func at(d time.Duration) *time.Time {
	t := sweepNow.Add(d)
	return &t
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt *time.Time
		want      Band
	}{
		{name: "missing expiry", expiresAt: nil, want: BandExpired},
		{name: "long ago", expiresAt: at(-30 * 24 * time.Hour), want: BandExpired},
		{name: "exactly now", expiresAt: at(0), want: BandExpired},
		{name: "just after now", expiresAt: at(time.Nanosecond), want: BandExpiringTomorrow},
		{name: "exactly 24h", expiresAt: at(24 * time.Hour), want: BandExpiringTomorrow},
		{name: "just after 24h", expiresAt: at(24*time.Hour + time.Nanosecond), want: BandExpiringSoon},
		{name: "two and a half days", expiresAt: at(60 * time.Hour), want: BandExpiringSoon},
		{name: "exactly 72h", expiresAt: at(72 * time.Hour), want: BandExpiringSoon},
		{name: "just after 72h", expiresAt: at(72*time.Hour + time.Nanosecond), want: BandHealthy},
		{name: "month ahead", expiresAt: at(30 * 24 * time.Hour), want: BandHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.expiresAt, sweepNow); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSweepExpiredSubscriber(t *testing.T) {
	st := &mockStorage{active: map[tariffs.Tier][]*subscribers.Subscriber{
		tariffs.Tier1: {subscriberExpiring(1, tariffs.Tier1, at(-time.Second))},
	}}
	n := &mockNotifier{}

	report := newTestWorker(st, n).RunNow(context.Background())

	if len(st.deactivated) != 1 || st.deactivated[0] != 1 {
		t.Errorf("deactivated = %v, want [1]", st.deactivated)
	}
	if report.Deactivated != 1 || report.Counts[tariffs.Tier1][BandExpired] != 1 {
		t.Errorf("report = %+v", report)
	}
	if n.count(notify.KindExpired) != 1 || n.count(notify.KindAdminExpired) != 1 || len(n.intents) != 2 {
		t.Fatalf("intents = %+v, want one user and one admin notification", n.intents)
	}
	admin := n.intents[1]
	if admin.Audience != notify.AudienceAdmins || admin.Subscriber == nil || admin.Subscriber.ID != 1 {
		t.Errorf("admin intent = %+v", admin)
	}
}

func TestSweepReminders(t *testing.T) {
	st := &mockStorage{active: map[tariffs.Tier][]*subscribers.Subscriber{
		tariffs.Tier1: {
			subscriberExpiring(1, tariffs.Tier1, at(2*24*time.Hour+12*time.Hour)),
			subscriberExpiring(2, tariffs.Tier1, at(20*time.Hour)),
			subscriberExpiring(3, tariffs.Tier1, at(10*24*time.Hour)),
		},
		tariffs.Tier2: {
			subscriberExpiring(1, tariffs.Tier2, at(48*time.Hour)),
		},
	}}
	n := &mockNotifier{}

	report := newTestWorker(st, n).RunNow(context.Background())

	if len(st.deactivated) != 0 {
		t.Errorf("deactivated = %v, want none", st.deactivated)
	}
	if n.count(notify.KindExpiringSoon) != 2 || n.count(notify.KindExpiringTomorrow) != 1 || len(n.intents) != 3 {
		t.Errorf("intents = %+v", n.intents)
	}
	if report.Counts[tariffs.Tier1][BandHealthy] != 1 || report.Counts[tariffs.Tier2][BandExpiringSoon] != 1 {
		t.Errorf("counts = %+v", report.Counts)
	}
	for _, intent := range n.intents {
		if intent.Tier == tariffs.Tier2 && intent.RecipientID != 1 {
			t.Errorf("tier_2 reminder went to %d", intent.RecipientID)
		}
	}
}

func TestSweepNilExpiryTreatedAsExpired(t *testing.T) {
	st := &mockStorage{active: map[tariffs.Tier][]*subscribers.Subscriber{
		tariffs.Tier2: {subscriberExpiring(5, tariffs.Tier2, nil)},
	}}
	n := &mockNotifier{}

	newTestWorker(st, n).RunNow(context.Background())

	if len(st.deactivated) != 1 || st.deactivated[0] != 5 {
		t.Errorf("deactivated = %v, want [5]", st.deactivated)
	}
}

func TestSweepDeactivateFailureSendsNothing(t *testing.T) {
	st := &mockStorage{
		active: map[tariffs.Tier][]*subscribers.Subscriber{
			tariffs.Tier1: {subscriberExpiring(1, tariffs.Tier1, at(-time.Hour))},
		},
		deactivateErr: errors.New("database is locked"),
	}
	n := &mockNotifier{}

	report := newTestWorker(st, n).RunNow(context.Background())

	if len(n.intents) != 0 {
		t.Errorf("intents = %+v, want none", n.intents)
	}
	if report.Failures != 1 || report.Deactivated != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestSweepNotifyFailureDoesNotStopSweep(t *testing.T) {
	st := &mockStorage{active: map[tariffs.Tier][]*subscribers.Subscriber{
		tariffs.Tier1: {
			subscriberExpiring(1, tariffs.Tier1, at(-time.Hour)),
			subscriberExpiring(2, tariffs.Tier1, at(20*time.Hour)),
			subscriberExpiring(3, tariffs.Tier1, at(-time.Minute)),
		},
	}}
	n := &mockNotifier{failFor: map[int64]error{
		1: errors.New("Forbidden: bot was blocked by the user"),
	}}

	report := newTestWorker(st, n).RunNow(context.Background())

	if len(st.deactivated) != 2 || st.deactivated[0] != 1 || st.deactivated[1] != 3 {
		t.Errorf("deactivated = %v, want [1 3]", st.deactivated)
	}
	if report.Deactivated != 2 || report.Failures != 1 || report.Canceled {
		t.Errorf("report = %+v", report)
	}
	if n.count(notify.KindExpiringTomorrow) != 1 || n.count(notify.KindExpired) != 2 {
		t.Errorf("intents = %+v", n.intents)
	}
	if n.count(notify.KindAdminExpired) != 2 {
		t.Errorf("admin notifications = %d, want 2", n.count(notify.KindAdminExpired))
	}
}

func TestSweepListFailureDoesNotStopOtherTier(t *testing.T) {
	st := &mockStorage{
		active: map[tariffs.Tier][]*subscribers.Subscriber{
			tariffs.Tier2: {subscriberExpiring(2, tariffs.Tier2, at(-time.Hour))},
		},
		listErr: map[tariffs.Tier]error{tariffs.Tier1: errors.New("no such table")},
	}
	n := &mockNotifier{}

	report := newTestWorker(st, n).RunNow(context.Background())

	if len(st.deactivated) != 1 || st.deactivated[0] != 2 {
		t.Errorf("deactivated = %v, want [2]", st.deactivated)
	}
	if report.Failures != 1 {
		t.Errorf("Failures = %d, want 1", report.Failures)
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := &mockStorage{active: map[tariffs.Tier][]*subscribers.Subscriber{
		tariffs.Tier1: {
			subscriberExpiring(1, tariffs.Tier1, at(time.Hour)),
			subscriberExpiring(2, tariffs.Tier1, at(time.Hour)),
		},
		tariffs.Tier2: {subscriberExpiring(3, tariffs.Tier2, at(time.Hour))},
	}}
	n := &mockNotifier{onCall: cancel}

	report := newTestWorker(st, n).RunNow(ctx)

	if !report.Canceled {
		t.Error("Canceled = false")
	}
	if len(n.intents) != 1 {
		t.Errorf("intents = %d, want 1 before cancellation", len(n.intents))
	}
}

func TestWorkerStartStop(t *testing.T) {
	st := &mockStorage{}
	n := &mockNotifier{}
	w := NewWorker(st, n, Config{Schedule: "0 0 * * *", Location: time.UTC, RunOnStart: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Stop()

	bad := NewWorker(st, n, Config{Schedule: "not a cron"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := bad.Start(); err == nil {
		t.Error("Start() with invalid schedule error = nil")
	}
}
