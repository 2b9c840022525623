package telegram

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chanpay-bot/internal/stories/settlement"
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
		Clear(userID int64)
	}

	onboardingFlow interface {
		Start(ctx context.Context, from *tgbotapi.User, chatID int64) error
		Handle(ctx context.Context, update *tgbotapi.Update, state states.State) error
		HandleChoice(ctx context.Context, query *tgbotapi.CallbackQuery) error
	}

	settlementService interface {
		Settle(ctx context.Context, ev settlement.Event) (*settlement.Result, error)
	}

	exportCommand interface {
		Execute(ctx context.Context, userID, chatID int64) error
	}

	helpCommand interface {
		Execute(chatID int64) error
	}

	localizer interface {
		T(key string, params map[string]interface{}) string
	}
)

type Router struct {
	bot          botApi
	stateManager stateManager
	onboarding   onboardingFlow
	settlement   settlementService
	exportUsers  exportCommand
	help         helpCommand
	texts        localizer
	logger       *slog.Logger
}

// NewRouter создает новый роутер с зависимостями
func NewRouter(
	bot botApi,
	stateManager stateManager,
	onboarding onboardingFlow,
	settlement settlementService,
	exportUsers exportCommand,
	help helpCommand,
	texts localizer,
	logger *slog.Logger,
) *Router {
	return &Router{
		bot:          bot,
		stateManager: stateManager,
		onboarding:   onboarding,
		settlement:   settlement,
		exportUsers:  exportUsers,
		help:         help,
		texts:        texts,
		logger:       logger,
	}
}

func (r *Router) Route(ctx context.Context, update *tgbotapi.Update) error {
	// pre-checkout всегда подтверждаем, иначе Telegram отменит платеж
	if update.PreCheckoutQuery != nil {
		return r.answerPreCheckout(update.PreCheckoutQuery)
	}

	userID := extractUserID(update)
	if userID == 0 {
		return nil // Некорректный update
	}

	if update.Message != nil && update.Message.SuccessfulPayment != nil {
		return r.handleSuccessfulPayment(ctx, update.Message)
	}

	// ПРИОРИТЕТ: команды отменяют любой флоу
	if update.Message != nil && update.Message.IsCommand() {
		r.stateManager.Clear(userID)
		return r.handleCommand(ctx, update.Message)
	}

	if update.CallbackQuery != nil {
		return r.onboarding.HandleChoice(ctx, update.CallbackQuery)
	}

	if state := r.stateManager.GetState(userID); state != states.StateNone {
		return r.onboarding.Handle(ctx, update, state)
	}

	// Если нет активного состояния - показываем помощь
	if chatID := extractChatID(update); chatID != 0 {
		return r.help.Execute(chatID)
	}
	return nil
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return r.onboarding.Start(ctx, msg.From, msg.Chat.ID)
	case "get_users_db":
		return r.exportUsers.Execute(ctx, msg.From.ID, msg.Chat.ID)
	default:
		return r.help.Execute(msg.Chat.ID)
	}
}

func (r *Router) answerPreCheckout(query *tgbotapi.PreCheckoutQuery) error {
	_, err := r.bot.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	})
	return err
}

func (r *Router) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) error {
	payment := msg.SuccessfulPayment

	product, ok := tariffs.ParseProduct(payment.InvoicePayload)
	if !ok {
		r.logger.Error("Successful payment with unknown payload",
			"user_id", msg.From.ID,
			"payload", payment.InvoicePayload,
			"charge_id", payment.TelegramPaymentChargeID)
		return r.send(msg.Chat.ID, r.texts.T("payment.unknown_product", nil))
	}

	ev := settlement.Event{
		SubscriberID: msg.From.ID,
		Product:      product,
		AmountMinor:  int64(payment.TotalAmount),
		Currency:     payment.Currency,
		OccurredAt:   time.Unix(int64(msg.Date), 0).UTC(),
		ChargeID:     chargeID(payment),
		Source:       settlement.SourceTelegram,
	}

	if _, err := r.settlement.Settle(ctx, ev); err != nil {
		_ = r.send(msg.Chat.ID, r.texts.T("payment.failed", nil))
		return err
	}
	return nil
}

// chargeID выбирает id платежа у провайдера: тот же id приходит в вебхуке YooKassa,
// поэтому оба канала дедуплицируются по одному ключу.
func chargeID(payment *tgbotapi.SuccessfulPayment) string {
	if payment.ProviderPaymentChargeID != "" {
		return payment.ProviderPaymentChargeID
	}
	return payment.TelegramPaymentChargeID
}

// SetupBotCommands устанавливает команды для меню бота
func (r *Router) SetupBotCommands(commands tgbotapi.SetMyCommandsConfig) error {
	_, err := r.bot.Request(commands)
	return err
}

func (r *Router) send(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func extractUserID(update *tgbotapi.Update) int64 {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		return update.CallbackQuery.From.ID
	}
	return 0
}

func extractChatID(update *tgbotapi.Update) int64 {
	if update.Message != nil && update.Message.Chat != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}
