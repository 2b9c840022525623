package onboarding

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MockBotApi - мок Telegram Bot API
type MockBotApi struct {
	SentMessages []tgbotapi.Chattable
	Requests     []tgbotapi.Chattable
}

func (m *MockBotApi) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.SentMessages = append(m.SentMessages, c)
	return tgbotapi.Message{MessageID: len(m.SentMessages)}, nil
}

func (m *MockBotApi) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.Requests = append(m.Requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *MockBotApi) lastText() string {
	if len(m.SentMessages) == 0 {
		return ""
	}
	if msg, ok := m.SentMessages[len(m.SentMessages)-1].(tgbotapi.MessageConfig); ok {
		return msg.Text
	}
	return ""
}

// MockSubscriberService - мок сервиса подписчиков
type MockSubscriberService struct {
	Touched []int64
	Names   map[int64]string
	Phones  map[int64]string
	Err     error
}

func NewMockSubscriberService() *MockSubscriberService {
	return &MockSubscriberService{
		Names:  make(map[int64]string),
		Phones: make(map[int64]string),
	}
}

func (m *MockSubscriberService) Touch(ctx context.Context, id int64, handle string) error {
	m.Touched = append(m.Touched, id)
	return m.Err
}

func (m *MockSubscriberService) SaveName(ctx context.Context, id int64, handle, displayName string) error {
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Names[id]; !ok {
		m.Names[id] = displayName
	}
	return nil
}

func (m *MockSubscriberService) SavePhone(ctx context.Context, id int64, phone string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Phones[id] = phone
	return nil
}

// MockFormatter returns translation keys as texts
type MockFormatter struct{}

func (MockFormatter) T(key string, params map[string]interface{}) string {
	return key
}

func (MockFormatter) PaymentKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("1", "pay_channel_1"),
	))
}

func (MockFormatter) ContactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButtonContact("share"),
	))
}

var errStorage = errors.New("database is locked")
