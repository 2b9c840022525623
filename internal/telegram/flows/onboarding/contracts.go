package onboarding

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chanpay-bot/internal/stories/tariffs"
	"chanpay-bot/internal/telegram/states"
)

type (
	botApi interface {
		Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
		Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	}

	stateManager interface {
		GetState(userID int64) states.State
		SetState(userID int64, state states.State)
		Clear(userID int64)
	}

	subscriberService interface {
		Touch(ctx context.Context, id int64, handle string) error
		SaveName(ctx context.Context, id int64, handle, displayName string) error
		SavePhone(ctx context.Context, id int64, phone string) error
	}

	tariffCatalog interface {
		Get(t tariffs.Tier) (tariffs.Tariff, bool)
		Currency() string
		DonationMinAmount() float64
		ParseDonationAmount(input string) (int64, error)
	}

	formatter interface {
		T(key string, params map[string]interface{}) string
		PaymentKeyboard() tgbotapi.InlineKeyboardMarkup
		ContactKeyboard() tgbotapi.ReplyKeyboardMarkup
	}
)
