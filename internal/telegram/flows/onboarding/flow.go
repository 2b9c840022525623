package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"chanpay-bot/internal/stories/tariffs"
	"chanpay-bot/internal/telegram/flows"
	"chanpay-bot/internal/telegram/states"
)

var phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)

// IsValidPhone reports whether s is an international phone number: optional
// plus followed by 10 to 15 digits.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

type Handler struct {
	bot           botApi
	stateManager  stateManager
	subscribers   subscriberService
	catalog       tariffCatalog
	texts         formatter
	providerToken string
	logger        *slog.Logger
}

func NewHandler(
	bot botApi,
	sm stateManager,
	subscribers subscriberService,
	catalog tariffCatalog,
	texts formatter,
	providerToken string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		bot:           bot,
		stateManager:  sm,
		subscribers:   subscribers,
		catalog:       catalog,
		texts:         texts,
		providerToken: providerToken,
		logger:        logger,
	}
}

// Start сбрасывает сессию и начинает онбординг с запроса имени
func (h *Handler) Start(ctx context.Context, from *tgbotapi.User, chatID int64) error {
	h.stateManager.Clear(from.ID)

	if err := h.subscribers.Touch(ctx, from.ID, from.UserName); err != nil {
		// имя сохранится на следующем шаге тем же upsert
		h.logger.Error("Failed to register subscriber", "error", err, "user_id", from.ID)
	}

	h.stateManager.SetState(from.ID, states.AwaitingName)

	msg := tgbotapi.NewMessage(chatID, h.texts.T("onboarding.ask_name", nil))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	_, err := h.bot.Send(msg)
	return err
}

// Handle обрабатывает сообщение в текущем состоянии
func (h *Handler) Handle(ctx context.Context, update *tgbotapi.Update, state states.State) error {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	switch state {
	case states.AwaitingName:
		return h.handleName(ctx, msg)
	case states.AwaitingContact:
		return h.handleContact(ctx, msg)
	case states.AwaitingDonationAmount:
		return h.handleDonationAmount(msg)
	default:
		return fmt.Errorf("unknown state: %s", state)
	}
}

// HandleChoice обрабатывает нажатие кнопки меню оплаты
func (h *Handler) HandleChoice(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if _, err := h.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		h.logger.Warn("Failed to answer callback", "error", err, "user_id", query.From.ID)
	}

	choice, ok := flows.ParseChoice(query.Data)
	if !ok {
		h.logger.Debug("Unknown callback data", "data", query.Data, "user_id", query.From.ID)
		return nil
	}

	chatID := query.From.ID
	if tier, ok := choice.Tier(); ok {
		return h.sendTierInvoice(chatID, tier)
	}

	h.stateManager.SetState(query.From.ID, states.AwaitingDonationAmount)
	return h.send(chatID, h.texts.T("donation.ask_amount", nil))
}

func (h *Handler) handleName(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.Text)
	if name == "" {
		return h.send(msg.Chat.ID, h.texts.T("onboarding.name_empty", nil))
	}

	if err := h.subscribers.SaveName(ctx, msg.From.ID, msg.From.UserName, name); err != nil {
		_ = h.send(msg.Chat.ID, h.texts.T("common.error", nil))
		return errors.Wrap(err, "save name")
	}

	h.stateManager.SetState(msg.From.ID, states.AwaitingContact)

	reply := tgbotapi.NewMessage(msg.Chat.ID, h.texts.T("onboarding.ask_contact", nil))
	reply.ReplyMarkup = h.texts.ContactKeyboard()
	_, err := h.bot.Send(reply)
	return err
}

func (h *Handler) handleContact(ctx context.Context, msg *tgbotapi.Message) error {
	var phone string
	if msg.Contact != nil {
		phone = msg.Contact.PhoneNumber
	} else {
		phone = strings.TrimSpace(msg.Text)
		if !IsValidPhone(phone) {
			return h.send(msg.Chat.ID, h.texts.T("onboarding.invalid_phone", nil))
		}
	}

	if err := h.subscribers.SavePhone(ctx, msg.From.ID, phone); err != nil {
		_ = h.send(msg.Chat.ID, h.texts.T("common.error", nil))
		return errors.Wrap(err, "save phone")
	}

	h.stateManager.Clear(msg.From.ID)
	return h.SendPaymentPrompt(msg.Chat.ID)
}

// SendPaymentPrompt shows the tier and donation buttons.
func (h *Handler) SendPaymentPrompt(chatID int64) error {
	reply := tgbotapi.NewMessage(chatID, h.texts.T("onboarding.choose_payment", nil))
	reply.ReplyMarkup = h.texts.PaymentKeyboard()
	_, err := h.bot.Send(reply)
	return err
}

func (h *Handler) handleDonationAmount(msg *tgbotapi.Message) error {
	amount, err := h.catalog.ParseDonationAmount(msg.Text)
	switch {
	case errors.Is(err, tariffs.ErrBelowMinimum):
		minAmount := strconv.FormatFloat(h.catalog.DonationMinAmount(), 'f', -1, 64)
		return h.send(msg.Chat.ID, h.texts.T("donation.below_minimum", map[string]interface{}{"min": minAmount}))
	case err != nil:
		return h.send(msg.Chat.ID, h.texts.T("donation.invalid_amount", nil))
	}

	invoice := h.newInvoice(
		msg.Chat.ID,
		h.texts.T("donation.invoice_title", nil),
		h.texts.T("donation.invoice_description", nil),
		tariffs.ProductDonation,
		h.texts.T("donation.invoice_label", nil),
		amount,
	)
	if _, err := h.bot.Send(invoice); err != nil {
		return errors.Wrap(err, "send donation invoice")
	}

	h.stateManager.Clear(msg.From.ID)
	return nil
}

func (h *Handler) sendTierInvoice(chatID int64, tier tariffs.Tier) error {
	tariff, ok := h.catalog.Get(tier)
	if !ok {
		return fmt.Errorf("tariff for %s not configured", tier)
	}

	invoice := h.newInvoice(chatID, tariff.Title, tariff.Description, tariffs.ProductFor(tier), tariff.Label, tariff.PriceMinor)
	if _, err := h.bot.Send(invoice); err != nil {
		return errors.Wrapf(err, "send %s invoice", tier)
	}
	return nil
}

func (h *Handler) newInvoice(chatID int64, title, description string, product tariffs.Product, label string, amount int64) tgbotapi.InvoiceConfig {
	invoice := tgbotapi.NewInvoice(
		chatID,
		title,
		description,
		string(product),
		h.providerToken,
		"",
		h.catalog.Currency(),
		[]tgbotapi.LabeledPrice{{Label: label, Amount: int(amount)}},
	)
	// без этого библиотека отправляет null и Telegram отклоняет счет
	invoice.SuggestedTipAmounts = []int{}
	return invoice
}

func (h *Handler) send(chatID int64, text string) error {
	_, err := h.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
