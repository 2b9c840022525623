package notifier

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/stories/tariffs"
)

type (
	botApi interface {
		Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	}

	formatter interface {
		T(key string, params map[string]interface{}) string
		Date(t *time.Time) string
		TierName(t tariffs.Tier) string
		ProductName(p tariffs.Product) string
		Profile(sub *subscribers.Subscriber) string
		JoinKeyboard(t tariffs.Tier) *tgbotapi.InlineKeyboardMarkup
	}
)
