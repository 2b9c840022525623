package subscribers

import (
	"time"

	"chanpay-bot/internal/stories/tariffs"
)

// TierState is the subscription state of one tier.
type TierState struct {
	Active        bool
	LastPaymentAt *time.Time
	ExpiresAt     *time.Time
}

// Subscriber is one Telegram user with two independent tier states.
type Subscriber struct {
	ID          int64
	Handle      *string
	DisplayName *string
	Phone       *string
	Tier1       TierState
	Tier2       TierState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tier returns the state of t.
func (s *Subscriber) Tier(t tariffs.Tier) TierState {
	if t == tariffs.Tier2 {
		return s.Tier2
	}
	return s.Tier1
}

// Identity is what the messaging platform tells us about a user.
type Identity struct {
	ID          int64
	Handle      *string
	DisplayName *string
}

// Критерии для списка подписчиков
type ListCriteria struct {
	ActiveTier *tariffs.Tier
	Limit      int
	Offset     int
}
