package cmds

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type HelpCommand struct {
	bot   botApi
	texts formatter
}

func NewHelpCommand(bot botApi, texts formatter) *HelpCommand {
	return &HelpCommand{bot: bot, texts: texts}
}

func (c *HelpCommand) Execute(chatID int64) error {
	_, err := c.bot.Send(tgbotapi.NewMessage(chatID, c.texts.T("commands.help_text", nil)))
	return err
}

// BotCommands is the command menu registered at startup.
func BotCommands(texts formatter) tgbotapi.SetMyCommandsConfig {
	return tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: texts.T("commands.start", nil)},
		tgbotapi.BotCommand{Command: "help", Description: texts.T("commands.help", nil)},
	)
}
