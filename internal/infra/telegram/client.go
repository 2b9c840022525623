package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const (
	pollTimeoutSeconds = 60
	// флуд-контроль: дольше не ждём, отдаём ошибку
	maxRetryAfter = 30 * time.Second
)

// ErrRecipientUnavailable: пользователь заблокировал бота или чат удалён.
var ErrRecipientUnavailable = errors.New("telegram recipient unavailable")

type Client struct {
	api     *tgbotapi.BotAPI
	logger  *slog.Logger
	limiter *rate.Limiter
	updates tgbotapi.UpdatesChannel
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewClient авторизует бота. sendRPS ограничивает исходящие запросы на весь процесс.
func NewClient(token string, sendRPS float64, logger *slog.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("создание telegram бота: %w", err)
	}

	if sendRPS <= 0 {
		sendRPS = 30
	}

	logger.Info("Telegram bot authorized", "username", bot.Self.UserName, "send_rps", sendRPS)

	return &Client{
		api:     bot,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(sendRPS), 1),
		ctx:     context.Background(),
	}, nil
}

// Start начинает long polling. Исходящие запросы живут до отмены ctx.
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	u.AllowedUpdates = []string{"message", "callback_query", "pre_checkout_query"}

	c.updates = c.api.GetUpdatesChan(u)

	c.logger.Info("Telegram бот запущен")
	return nil
}

func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.api.StopReceivingUpdates()
	c.logger.Info("Telegram бот остановлен")
}

func (c *Client) GetUpdates() <-chan tgbotapi.Update {
	return c.updates
}

// Send отправляет сообщение (интерфейс botApi)
func (c *Client) Send(chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.send(c.ctx, chattable)
}

// Request выполняет вызов API без сообщения в ответе: answerPreCheckoutQuery,
// answerCallbackQuery, setMyCommands.
func (c *Client) Request(chattable tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	var resp *tgbotapi.APIResponse
	err := c.do(c.ctx, func() error {
		var err error
		resp, err = c.api.Request(chattable)
		return err
	})
	if err != nil {
		c.logger.Error("ошибка запроса к API", slog.Any("error", err))
		return nil, fmt.Errorf("запрос к API: %w", err)
	}
	return resp, nil
}

func (c *Client) Username() string {
	return c.api.Self.UserName
}

func (c *Client) send(ctx context.Context, chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	var message tgbotapi.Message
	err := c.do(ctx, func() error {
		var err error
		message, err = c.api.Send(chattable)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRecipientUnavailable) {
			c.logger.Warn("получатель недоступен", slog.Any("error", err))
		} else {
			c.logger.Error("ошибка отправки", slog.Any("error", err))
		}
		return tgbotapi.Message{}, fmt.Errorf("отправка: %w", err)
	}
	return message, nil
}

// do ждёт лимитер и повторяет вызов один раз, если Telegram ответил 429.
func (c *Client) do(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiting: %w", err)
		}

		err := call()
		if err == nil {
			return nil
		}

		wait, retry := retryAfter(err)
		if !retry || attempt > 0 || wait > maxRetryAfter {
			return classify(err)
		}

		c.logger.Warn("telegram flood control, retrying", slog.Duration("retry_after", wait))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func retryAfter(err error) (time.Duration, bool) {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) || tgErr.Code != http.StatusTooManyRequests {
		return 0, false
	}
	return time.Duration(tgErr.RetryAfter) * time.Second, true
}

func classify(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrRecipientUnavailable, tgErr.Message)
	}
	return err
}
