package flows

import "chanpay-bot/internal/stories/tariffs"

// Choice is the payment-menu button the user pressed.
type Choice string

const (
	ChoiceTier1  Choice = "pay_channel_1"
	ChoiceTier2  Choice = "pay_channel_2"
	ChoiceDonate Choice = "donate"
)

// ParseChoice decodes callback data; unknown data yields false.
func ParseChoice(data string) (Choice, bool) {
	switch c := Choice(data); c {
	case ChoiceTier1, ChoiceTier2, ChoiceDonate:
		return c, true
	default:
		return "", false
	}
}

// Tier returns the tier a pay button stands for.
func (c Choice) Tier() (tariffs.Tier, bool) {
	switch c {
	case ChoiceTier1:
		return tariffs.Tier1, true
	case ChoiceTier2:
		return tariffs.Tier2, true
	default:
		return 0, false
	}
}

// ChoiceFor is the callback data of the pay button for t.
func ChoiceFor(t tariffs.Tier) Choice {
	if t == tariffs.Tier2 {
		return ChoiceTier2
	}
	return ChoiceTier1
}
