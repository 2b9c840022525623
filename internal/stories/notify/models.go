package notify

import (
	"time"

	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

// Audience decides who receives an intent.
type Audience int

const (
	AudienceUser Audience = iota
	AudienceAdmins
)

// Kind selects the message template.
type Kind string

const (
	KindPaymentConfirmed Kind = "payment_confirmed"
	KindDonationThanks   Kind = "donation_thanks"
	KindAdminPayment     Kind = "admin_payment"
	KindExpiringSoon     Kind = "expiring_soon"
	KindExpiringTomorrow Kind = "expiring_tomorrow"
	KindExpired          Kind = "expired"
	KindAdminExpired     Kind = "admin_expired"
)

// Intent is a notification the core asks the delivery layer to send.
type Intent struct {
	Kind        Kind
	Audience    Audience
	RecipientID int64

	Tier        tariffs.Tier
	Product     tariffs.Product
	Subscriber  *subscribers.Subscriber
	AmountMinor int64
	Currency    string
	OccurredAt  time.Time
	ExpiresAt   *time.Time
}

func ToUser(id int64, kind Kind) Intent {
	return Intent{Kind: kind, Audience: AudienceUser, RecipientID: id}
}

func ToAdmins(kind Kind) Intent {
	return Intent{Kind: kind, Audience: AudienceAdmins}
}
