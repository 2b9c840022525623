package messages

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chanpay-bot/internal/localization"
	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
	"chanpay-bot/internal/telegram/flows"
)

const (
	// DateLayout is how dates are shown to users and admins.
	DateLayout = "2006-01-02 15:04:05"
	// MaxMessageLength is the Telegram limit for one text message.
	MaxMessageLength = 4096
)

type (
	localizer interface {
		Get(lang, key string, params map[string]interface{}) string
	}

	tariffCatalog interface {
		Get(t tariffs.Tier) (tariffs.Tariff, bool)
	}
)

// Formatter renders texts and keyboards shared by flows, commands and notifications.
type Formatter struct {
	l10n    localizer
	catalog tariffCatalog
	loc     *time.Location
}

func NewFormatter(l10n localizer, catalog tariffCatalog, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{l10n: l10n, catalog: catalog, loc: loc}
}

// T returns the default-language text for key.
func (f *Formatter) T(key string, params map[string]interface{}) string {
	return f.l10n.Get(localization.DefaultLanguage, key, params)
}

// Date formats t in the bot time zone; nil renders as N/A.
func (f *Formatter) Date(t *time.Time) string {
	if t == nil {
		return f.T("common.not_available", nil)
	}
	return t.In(f.loc).Format(DateLayout)
}

// Price renders minor units as a major-unit amount: 30000 -> "300", 6050 -> "60.50".
func Price(minor int64) string {
	if minor%100 == 0 {
		return fmt.Sprintf("%d", minor/100)
	}
	return fmt.Sprintf("%.2f", float64(minor)/100)
}

// TierName is the channel name of t used in texts.
func (f *Formatter) TierName(t tariffs.Tier) string {
	if tariff, ok := f.catalog.Get(t); ok {
		return tariff.Name
	}
	return t.String()
}

// ProductName names a product for admin summaries.
func (f *Formatter) ProductName(p tariffs.Product) string {
	if tier, ok := p.Tier(); ok {
		if tariff, ok := f.catalog.Get(tier); ok {
			return tariff.Label
		}
	}
	return f.T("admin.donation_type", nil)
}

// Profile renders the subscriber snapshot used by the export and admin summaries.
func (f *Formatter) Profile(sub *subscribers.Subscriber) string {
	na := f.T("common.not_available", nil)
	lines := []string{
		f.T("profile.id", map[string]interface{}{"id": sub.ID}),
		f.T("profile.name", map[string]interface{}{"name": valueOr(sub.DisplayName, na)}),
		f.T("profile.handle", map[string]interface{}{"handle": valueOr(sub.Handle, na)}),
		f.T("profile.phone", map[string]interface{}{"phone": valueOr(sub.Phone, na)}),
	}

	for _, tier := range tariffs.Tiers {
		state := sub.Tier(tier)
		title := f.TierName(tier)
		status := f.T("common.not_paid", nil)
		if state.Active {
			status = f.T("common.paid", nil)
		}
		lines = append(lines,
			f.T("profile.tier_status", map[string]interface{}{"title": title, "status": status}),
			f.T("profile.tier_paid_at", map[string]interface{}{"title": title, "date": f.Date(state.LastPaymentAt)}),
			f.T("profile.tier_expires_at", map[string]interface{}{"title": title, "date": f.Date(state.ExpiresAt)}),
		)
	}

	return strings.Join(lines, "\n")
}

// PaymentKeyboard is the pay/donate menu shown at the end of onboarding.
func (f *Formatter) PaymentKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tariffs.Tiers)+1)
	for _, tier := range tariffs.Tiers {
		tariff, ok := f.catalog.Get(tier)
		if !ok {
			continue
		}
		text := f.T("onboarding.pay_button", map[string]interface{}{
			"title": tariff.Name,
			"price": Price(tariff.PriceMinor),
		})
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text, string(flows.ChoiceFor(tier))),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(f.T("onboarding.donate_button", nil), string(flows.ChoiceDonate)),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ContactKeyboard asks the client to share its phone number.
func (f *Formatter) ContactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButtonContact(f.T("onboarding.share_contact_button", nil)),
	))
	keyboard.ResizeKeyboard = true
	keyboard.OneTimeKeyboard = true
	return keyboard
}

// JoinKeyboard links to the paid channel; nil when no invite URL is configured.
func (f *Formatter) JoinKeyboard(t tariffs.Tier) *tgbotapi.InlineKeyboardMarkup {
	tariff, ok := f.catalog.Get(t)
	if !ok || tariff.InviteURL == "" {
		return nil
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL(
			f.T("payment.join_button", map[string]interface{}{"title": tariff.Name}),
			tariff.InviteURL,
		),
	))
	return &keyboard
}

// Split cuts text into chunks of at most limit UTF-16 code units, preferring line breaks.
// Telegram measures message length in UTF-16, so characters outside the BMP count twice.
// Lines longer than limit are cut mid-line, never inside a surrogate pair.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if s := strings.TrimRight(cur.String(), "\n"); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf16Len(line)
		if curLen+n > limit {
			flush()
		}
		for n > limit {
			var head string
			head, line = cutUnits(line, limit)
			chunks = append(chunks, head)
			n = utf16Len(line)
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()

	return chunks
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// cutUnits returns the longest prefix of s that fits into limit UTF-16 units and the rest.
// The first rune is always taken so a limit of 1 still makes progress.
func cutUnits(s string, limit int) (string, string) {
	units := 0
	for i, r := range s {
		units += utf16.RuneLen(r)
		if units > limit {
			if i == 0 {
				_, size := utf8.DecodeRuneInString(s)
				return s[:size], s[size:]
			}
			return s[:i], s[i:]
		}
	}
	return s, ""
}

func valueOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
