package cmds

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"chanpay-bot/internal/stories/subscribers"
	"chanpay-bot/internal/telegram/messages"
)

type (
	botApi interface {
		Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	}

	SubscriberLister interface {
		ListAll(ctx context.Context) ([]*subscribers.Subscriber, error)
	}

	AdminChecker interface {
		IsAdmin(telegramID int64) bool
	}

	formatter interface {
		T(key string, params map[string]interface{}) string
		Profile(sub *subscribers.Subscriber) string
	}
)

// ExportUsersCommand - /get_users_db, выгрузка всех подписчиков для админов
type ExportUsersCommand struct {
	bot         botApi
	subscribers SubscriberLister
	admins      AdminChecker
	texts       formatter
}

func NewExportUsersCommand(bot botApi, subscribers SubscriberLister, admins AdminChecker, texts formatter) *ExportUsersCommand {
	return &ExportUsersCommand{
		bot:         bot,
		subscribers: subscribers,
		admins:      admins,
		texts:       texts,
	}
}

func (c *ExportUsersCommand) Execute(ctx context.Context, userID, chatID int64) error {
	if !c.admins.IsAdmin(userID) {
		return c.send(chatID, c.texts.T("admin.forbidden", nil))
	}

	subs, err := c.subscribers.ListAll(ctx)
	if err != nil {
		_ = c.send(chatID, c.texts.T("common.error", nil))
		return fmt.Errorf("list subscribers: %w", err)
	}

	if len(subs) == 0 {
		return c.send(chatID, c.texts.T("admin.no_users", nil))
	}

	separator := c.texts.T("profile.separator", nil)
	blocks := lo.Map(subs, func(sub *subscribers.Subscriber, _ int) string {
		return c.texts.Profile(sub) + "\n" + separator
	})

	for _, part := range messages.Split(strings.Join(blocks, "\n"), messages.MaxMessageLength) {
		if err := c.send(chatID, part); err != nil {
			return fmt.Errorf("send export chunk: %w", err)
		}
	}

	return nil
}

func (c *ExportUsersCommand) send(chatID int64, text string) error {
	_, err := c.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
