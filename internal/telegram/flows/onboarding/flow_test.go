package onboarding

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chanpay-bot/internal/stories/tariffs"
	"chanpay-bot/internal/telegram/states"
)

const userID int64 = 555

type fixture struct {
	handler *Handler
	bot     *MockBotApi
	states  *states.Manager
	subs    *MockSubscriberService
}

func newFixture() *fixture {
	bot := &MockBotApi{}
	sm := states.NewManager(time.Hour)
	subs := NewMockSubscriberService()
	catalog := tariffs.NewCatalog("RUB", 0, 60, tariffs.Tariff{}, tariffs.Tariff{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		handler: NewHandler(bot, sm, subs, catalog, MockFormatter{}, "provider-token", logger),
		bot:     bot,
		states:  sm,
		subs:    subs,
	}
}

func textUpdate(text string) *tgbotapi.Update {
	return &tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: "alice"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}}
}

func contactUpdate(phone string) *tgbotapi.Update {
	u := textUpdate("")
	u.Message.Contact = &tgbotapi.Contact{PhoneNumber: phone, UserID: userID}
	return u
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: userID},
		Data: data,
	}
}

func (f *fixture) handle(t *testing.T, u *tgbotapi.Update) {
	t.Helper()
	if err := f.handler.Handle(context.Background(), u, f.states.GetState(userID)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"+79991234567", true},
		{"79991234567", true},
		{"1234567890", true},
		{"+123456789012345", true},
		{"123456789", false},
		{"+1234567890123456", false},
		{"+7 999 123 45 67", false},
		{"++79991234567", false},
		{"7999123456a", false},
		{"", false},
		{"٧٩٩٩١٢٣٤٥٦٧", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsValidPhone(tt.input); got != tt.want {
				t.Errorf("IsValidPhone(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestOnboardingHappyPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	from := &tgbotapi.User{ID: userID, UserName: "alice"}
	if err := f.handler.Start(ctx, from, userID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := f.states.GetState(userID); got != states.AwaitingName {
		t.Fatalf("state after Start = %q, want %q", got, states.AwaitingName)
	}
	if len(f.subs.Touched) != 1 {
		t.Errorf("Touch calls = %d, want 1", len(f.subs.Touched))
	}

	f.handle(t, textUpdate("   "))
	if got := f.bot.lastText(); got != "onboarding.name_empty" {
		t.Errorf("reply to empty name = %q", got)
	}
	if got := f.states.GetState(userID); got != states.AwaitingName {
		t.Fatalf("state after empty name = %q, want %q", got, states.AwaitingName)
	}

	f.handle(t, textUpdate("Алиса"))
	if f.subs.Names[userID] != "Алиса" {
		t.Errorf("saved name = %q, want Алиса", f.subs.Names[userID])
	}
	if got := f.states.GetState(userID); got != states.AwaitingContact {
		t.Fatalf("state after name = %q, want %q", got, states.AwaitingContact)
	}
	last := f.bot.SentMessages[len(f.bot.SentMessages)-1].(tgbotapi.MessageConfig)
	if _, ok := last.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Errorf("contact prompt markup = %T, want ReplyKeyboardMarkup", last.ReplyMarkup)
	}

	f.handle(t, textUpdate("12345"))
	if got := f.bot.lastText(); got != "onboarding.invalid_phone" {
		t.Errorf("reply to invalid phone = %q", got)
	}
	if got := f.states.GetState(userID); got != states.AwaitingContact {
		t.Fatalf("state after invalid phone = %q, want %q", got, states.AwaitingContact)
	}

	f.handle(t, textUpdate(" +79991234567 "))
	if f.subs.Phones[userID] != "+79991234567" {
		t.Errorf("saved phone = %q, want +79991234567", f.subs.Phones[userID])
	}
	if got := f.states.GetState(userID); got != states.StateNone {
		t.Errorf("state after phone = %q, want idle", got)
	}
	if got := f.bot.lastText(); got != "onboarding.choose_payment" {
		t.Errorf("payment prompt = %q", got)
	}
}

func TestContactShareStoredVerbatim(t *testing.T) {
	f := newFixture()
	f.states.SetState(userID, states.AwaitingContact)

	f.handle(t, contactUpdate("79991234567"))

	if f.subs.Phones[userID] != "79991234567" {
		t.Errorf("saved phone = %q, want 79991234567", f.subs.Phones[userID])
	}
	if got := f.states.GetState(userID); got != states.StateNone {
		t.Errorf("state = %q, want idle", got)
	}
}

func TestStoreFailureKeepsState(t *testing.T) {
	f := newFixture()
	f.subs.Err = errStorage
	f.states.SetState(userID, states.AwaitingContact)

	err := f.handler.Handle(context.Background(), textUpdate("+79991234567"), states.AwaitingContact)
	if err == nil {
		t.Fatal("Handle() error = nil, want store error")
	}
	if got := f.bot.lastText(); got != "common.error" {
		t.Errorf("reply = %q, want common.error", got)
	}
	if got := f.states.GetState(userID); got != states.AwaitingContact {
		t.Errorf("state = %q, want %q", got, states.AwaitingContact)
	}
}

func TestTierChoiceSendsInvoice(t *testing.T) {
	tests := []struct {
		data        string
		wantPayload string
		wantAmount  int
	}{
		{data: "pay_channel_1", wantPayload: "subscription_channel_1", wantAmount: 30000},
		{data: "pay_channel_2", wantPayload: "subscription_channel_2", wantAmount: 300000},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			f := newFixture()

			if err := f.handler.HandleChoice(context.Background(), callback(tt.data)); err != nil {
				t.Fatalf("HandleChoice() error = %v", err)
			}

			if len(f.bot.SentMessages) != 1 {
				t.Fatalf("sent %d messages, want 1", len(f.bot.SentMessages))
			}
			invoice, ok := f.bot.SentMessages[0].(tgbotapi.InvoiceConfig)
			if !ok {
				t.Fatalf("sent %T, want InvoiceConfig", f.bot.SentMessages[0])
			}
			if invoice.Payload != tt.wantPayload {
				t.Errorf("Payload = %q, want %q", invoice.Payload, tt.wantPayload)
			}
			if len(invoice.Prices) != 1 || invoice.Prices[0].Amount != tt.wantAmount {
				t.Errorf("Prices = %+v, want amount %d", invoice.Prices, tt.wantAmount)
			}
			if invoice.Currency != "RUB" || invoice.ProviderToken != "provider-token" {
				t.Errorf("Currency = %q, ProviderToken = %q", invoice.Currency, invoice.ProviderToken)
			}
			if invoice.SuggestedTipAmounts == nil {
				t.Error("SuggestedTipAmounts = nil")
			}
			if got := f.states.GetState(userID); got != states.StateNone {
				t.Errorf("state = %q, want unchanged idle", got)
			}
			if len(f.bot.Requests) != 1 {
				t.Errorf("callback answers = %d, want 1", len(f.bot.Requests))
			}
		})
	}
}

func TestDonationFlow(t *testing.T) {
	f := newFixture()

	if err := f.handler.HandleChoice(context.Background(), callback("donate")); err != nil {
		t.Fatalf("HandleChoice() error = %v", err)
	}
	if got := f.states.GetState(userID); got != states.AwaitingDonationAmount {
		t.Fatalf("state = %q, want %q", got, states.AwaitingDonationAmount)
	}

	f.handle(t, textUpdate("59.99"))
	if got := f.bot.lastText(); got != "donation.below_minimum" {
		t.Errorf("reply to 59.99 = %q", got)
	}

	f.handle(t, textUpdate("много"))
	if got := f.bot.lastText(); got != "donation.invalid_amount" {
		t.Errorf("reply to garbage = %q", got)
	}

	f.handle(t, textUpdate("1e17"))
	if got := f.bot.lastText(); got != "donation.invalid_amount" {
		t.Errorf("reply to overflowing amount = %q", got)
	}
	if got := f.states.GetState(userID); got != states.AwaitingDonationAmount {
		t.Fatalf("state after rejections = %q, want %q", got, states.AwaitingDonationAmount)
	}

	f.handle(t, textUpdate("60"))
	invoice, ok := f.bot.SentMessages[len(f.bot.SentMessages)-1].(tgbotapi.InvoiceConfig)
	if !ok {
		t.Fatalf("last sent %T, want InvoiceConfig", f.bot.SentMessages[len(f.bot.SentMessages)-1])
	}
	if invoice.Payload != "donation" || invoice.Prices[0].Amount != 6000 {
		t.Errorf("invoice payload = %q amount = %d, want donation 6000", invoice.Payload, invoice.Prices[0].Amount)
	}
	if got := f.states.GetState(userID); got != states.StateNone {
		t.Errorf("state after invoice = %q, want idle", got)
	}
}

func TestUnknownCallbackIgnored(t *testing.T) {
	f := newFixture()
	f.states.SetState(userID, states.AwaitingName)

	if err := f.handler.HandleChoice(context.Background(), callback("pay_channel_3")); err != nil {
		t.Fatalf("HandleChoice() error = %v", err)
	}
	if len(f.bot.SentMessages) != 0 {
		t.Errorf("sent %d messages, want 0", len(f.bot.SentMessages))
	}
	if got := f.states.GetState(userID); got != states.AwaitingName {
		t.Errorf("state = %q, want %q", got, states.AwaitingName)
	}
}
