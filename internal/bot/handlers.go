package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Slack Stamper!

The stamper watches your Slack channels and reacts to messages that match its rules after a short random delay.

Quick start:
1. /token <xoxp-...> - store your Slack token
2. /auto on - start auto mode
3. /status - check what it is doing

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Auto mode:
/token <token> - store a Slack token (your message is deleted)
/auto on [token] - start auto mode, optionally with a new token
/auto off - stop auto mode and cancel pending reactions
/status - current state with toggle buttons

One-shot:
/react <channel> <ts> <emoji> - add a reaction now
/history [n] - last n reactions (default 10, max 50)`)
}

func (b *Bot) handleToken(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	b.deleteMessage(chatID, msg.MessageID)

	if args == "" {
		b.reply(chatID, "Usage: /token <token>")
		return
	}
	if err := b.ctl.SetToken(ctx, args); err != nil {
		b.reply(chatID, ErrorText(err))
		return
	}
	b.reply(chatID, "Token saved. Use /auto on to start auto mode.")
}

func (b *Bot) handleAuto(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	on, token, err := ParseAutoArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if token != "" {
		b.deleteMessage(chatID, msg.MessageID)
	}

	if on {
		b.startAuto(ctx, chatID, token)
		return
	}
	b.stopAuto(ctx, chatID)
}

func (b *Bot) startAuto(ctx context.Context, chatID int64, token string) {
	if err := b.ctl.Start(ctx, token); err != nil {
		b.reply(chatID, "Failed to start auto mode: "+ErrorText(err))
		return
	}
	st := b.ctl.Status()
	b.reply(chatID, fmt.Sprintf("Auto mode is on. Watching %d channels.", st.Channels))
}

func (b *Bot) stopAuto(ctx context.Context, chatID int64) {
	if err := b.ctl.Stop(ctx); err != nil {
		b.reply(chatID, "Auto mode stopped, but saving the setting failed: "+ErrorText(err))
		return
	}
	b.reply(chatID, "Auto mode is off. Pending reactions were cancelled.")
}

func (b *Bot) handleStatus(chatID int64) {
	st := b.ctl.Status()
	msg := tgbotapi.NewMessage(chatID, FormatStatus(st))
	msg.ReplyMarkup = statusKeyboard(st.Active)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send status", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleReact(ctx context.Context, chatID int64, args string) {
	req, err := ParseReactArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	rec, err := b.ctl.AddReaction(ctx, req)
	if err != nil {
		b.reply(chatID, "Reaction failed: "+ErrorText(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Reacted with :%s: to %s in %s.", rec.Emoji, rec.MessageID, rec.Channel))
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, args string) {
	limit, err := ParseLimitArg(args, 10, 50)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	recs, err := b.ctl.History(ctx, limit)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatHistory(recs))
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Warn("delete token message", "chat_id", chatID, "error", err)
	}
}
