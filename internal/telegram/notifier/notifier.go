package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"chanpay-bot/internal/stories/notify"
	"chanpay-bot/internal/telegram/messages"
)

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chanpay",
	Name:      "notifications_total",
	Help:      "Telegram notification deliveries by kind and result.",
}, []string{"kind", "result"})

// Dispatcher renders notification intents and sends them through the bot.
type Dispatcher struct {
	bot      botApi
	texts    formatter
	adminIDs []int64
	logger   *slog.Logger
}

func New(bot botApi, texts formatter, adminIDs []int64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		bot:      bot,
		texts:    texts,
		adminIDs: lo.Uniq(adminIDs),
		logger:   logger,
	}
}

// Notify delivers intent to its audience. Admin intents go to every admin;
// the returned error combines all failed deliveries.
func (d *Dispatcher) Notify(ctx context.Context, intent notify.Intent) error {
	text, markup, err := d.render(intent)
	if err != nil {
		return err
	}

	switch intent.Audience {
	case notify.AudienceUser:
		return d.deliver(ctx, intent.RecipientID, intent.Kind, text, markup)
	case notify.AudienceAdmins:
		if len(d.adminIDs) == 0 {
			d.logger.Warn("No admins configured, notification dropped", "kind", intent.Kind)
			return nil
		}
		var errs error
		for _, adminID := range d.adminIDs {
			errs = multierr.Append(errs, d.deliver(ctx, adminID, intent.Kind, text, markup))
		}
		return errs
	default:
		return fmt.Errorf("unknown audience %d", intent.Audience)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, chatID int64, kind notify.Kind, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}

	if _, err := d.bot.Send(msg); err != nil {
		deliveriesTotal.WithLabelValues(string(kind), "failed").Inc()
		return fmt.Errorf("send %s to %d: %w", kind, chatID, err)
	}

	deliveriesTotal.WithLabelValues(string(kind), "sent").Inc()
	return nil
}

func (d *Dispatcher) render(intent notify.Intent) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	title := d.texts.TierName(intent.Tier)

	switch intent.Kind {
	case notify.KindPaymentConfirmed:
		text := d.texts.T("payment.confirmed", map[string]interface{}{
			"title":      title,
			"expires_at": d.texts.Date(intent.ExpiresAt),
		})
		return text, d.texts.JoinKeyboard(intent.Tier), nil

	case notify.KindDonationThanks:
		return d.texts.T("donation.thanks", nil), nil, nil

	case notify.KindExpiringSoon:
		return d.texts.T("expiration.soon", map[string]interface{}{"title": title}), nil, nil

	case notify.KindExpiringTomorrow:
		return d.texts.T("expiration.tomorrow", map[string]interface{}{"title": title}), nil, nil

	case notify.KindExpired:
		return d.texts.T("expiration.expired", map[string]interface{}{"title": title}), nil, nil

	case notify.KindAdminExpired:
		return d.renderAdminExpired(intent, title), nil, nil

	case notify.KindAdminPayment:
		return d.renderAdminPayment(intent), nil, nil

	default:
		return "", nil, fmt.Errorf("unknown notification kind %q", intent.Kind)
	}
}

func (d *Dispatcher) renderAdminExpired(intent notify.Intent, title string) string {
	na := d.texts.T("common.not_available", nil)
	name, handle, id := na, na, intent.RecipientID
	if sub := intent.Subscriber; sub != nil {
		id = sub.ID
		if sub.DisplayName != nil {
			name = *sub.DisplayName
		}
		if sub.Handle != nil {
			handle = *sub.Handle
		}
	}

	return d.texts.T("admin.expired", map[string]interface{}{
		"name":   name,
		"handle": handle,
		"id":     id,
		"title":  title,
	})
}

func (d *Dispatcher) renderAdminPayment(intent notify.Intent) string {
	lines := []string{
		d.texts.T("admin.payment_title", nil),
		d.texts.T("admin.payment_type", map[string]interface{}{"type": d.texts.ProductName(intent.Product)}),
		d.texts.T("admin.payment_amount", map[string]interface{}{
			"amount":   messages.Price(intent.AmountMinor),
			"currency": intent.Currency,
		}),
		d.texts.T("admin.payment_date", map[string]interface{}{"date": d.texts.Date(&intent.OccurredAt)}),
	}

	if intent.Subscriber != nil {
		lines = append(lines, d.texts.Profile(intent.Subscriber))
	} else {
		lines = append(lines, d.texts.T("profile.id", map[string]interface{}{"id": intent.RecipientID}))
	}

	return strings.Join(lines, "\n")
}
