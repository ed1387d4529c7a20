package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdToken   = "token"
	cmdAuto    = "auto"
	cmdStatus  = "status"
	cmdHistory = "history"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	b.ack(cb.ID, "")

	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	action, arg, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdAuto:
		switch arg {
		case "on":
			b.startAuto(ctx, chatID, "")
		case "off":
			b.stopAuto(ctx, chatID)
		}
	case cmdStatus:
		b.handleStatus(chatID)
	case cmdHistory:
		b.handleHistory(ctx, chatID, arg)
	}
}

func statusKeyboard(active bool) tgbotapi.InlineKeyboardMarkup {
	toggle := tgbotapi.NewInlineKeyboardButtonData("Turn auto mode on", cmdAuto+":on")
	if active {
		toggle = tgbotapi.NewInlineKeyboardButtonData("Turn auto mode off", cmdAuto+":off")
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(toggle),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Refresh", cmdStatus+":"),
			tgbotapi.NewInlineKeyboardButtonData("History", cmdHistory+":10"),
		),
	)
}
