package states

type State string

const (
	StateNone State = "none"
)

// onboarding states
const (
	AwaitingName           State = "awaiting_name"
	AwaitingContact        State = "awaiting_contact"
	AwaitingDonationAmount State = "awaiting_donation_amount"
)

type session struct {
	state     State
	updatedAt int64
}
