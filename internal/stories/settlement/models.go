package settlement

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

var ErrInvalidEvent = errors.New("invalid settlement event")

// Source tells where a payment confirmation came from.
type Source string

const (
	SourceTelegram Source = "telegram"
	SourceWebhook  Source = "webhook"
)

// Event is a completed payment reported by the messaging platform or the provider webhook.
type Event struct {
	SubscriberID int64
	Product      tariffs.Product
	AmountMinor  int64
	Currency     string
	OccurredAt   time.Time
	ChargeID     string
	Source       Source
}

func (e Event) Validate() error {
	if e.SubscriberID <= 0 {
		return errors.Wrapf(ErrInvalidEvent, "subscriber id %d", e.SubscriberID)
	}
	if _, ok := tariffs.ParseProduct(string(e.Product)); !ok {
		return errors.Wrapf(ErrInvalidEvent, "product %q", e.Product)
	}
	if e.OccurredAt.IsZero() {
		return errors.Wrap(ErrInvalidEvent, "occurred_at is zero")
	}
	return nil
}

// IdempotencyKey is the charge id, or a digest of the event fields when the
// source supplied none.
func (e Event) IdempotencyKey() string {
	if e.ChargeID != "" {
		return e.ChargeID
	}
	raw := fmt.Sprintf("%d|%s|%d|%d", e.SubscriberID, e.Product, e.AmountMinor, e.OccurredAt.UTC().UnixNano())
	sum := sha256.Sum256([]byte(raw))
	return "derived:" + hex.EncodeToString(sum[:])
}

// Entry is one tier settlement as written to the ledger.
type Entry struct {
	Key          string
	SubscriberID int64
	Tier         tariffs.Tier
	Product      tariffs.Product
	AmountMinor  int64
	OccurredAt   time.Time
}

// ExpiryFunc computes the new expiry from the stored one.
type ExpiryFunc func(current *time.Time) time.Time

// Outcome is what the store reports back after ApplySettlement.
type Outcome struct {
	Duplicate      bool
	PreviousExpiry *time.Time
	ExpiresAt      time.Time
	Subscriber     *subscribers.Subscriber
}

type Status string

const (
	StatusApplied   Status = "applied"
	StatusDuplicate Status = "duplicate"
	StatusDonation  Status = "donation"
)

type Result struct {
	Status    Status
	Tier      tariffs.Tier
	ExpiresAt *time.Time
}

// NextExpiry extends a running window, otherwise starts a new one at occurredAt.
func NextExpiry(current *time.Time, occurredAt time.Time, period time.Duration) time.Time {
	if current != nil && current.After(occurredAt) {
		return current.Add(period)
	}
	return occurredAt.Add(period)
}
