// Package bot is the Telegram adapter over the control surface.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/config"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/control"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Controller is the control surface the bot drives.
type Controller interface {
	Start(ctx context.Context, token string) error
	Stop(ctx context.Context) error
	Status() model.Status
	SetToken(ctx context.Context, token string) error
	AddReaction(ctx context.Context, req control.ReactionRequest) (model.ReactionRecord, error)
	History(ctx context.Context, limit int) ([]model.ReactionRecord, error)
}

// Bot is the Telegram bot that lets allowed users drive the stamper.
type Bot struct {
	api telegramAPI
	ctl Controller
	cfg *config.Config
	log *slog.Logger
}

// New creates a Bot with the given Telegram token, controller, and config.
func New(token string, ctl Controller, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api: api,
		ctl: ctl,
		cfg: cfg,
		log: log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || !b.cfg.IsUserAllowed(cb.From.ID) {
			b.ack(cb.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if update.Message.From == nil || !b.cfg.IsUserAllowed(update.Message.From.ID) {
		b.reply(update.Message.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, update.Message)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	// Token arguments are never logged.
	b.log.Debug("command", "cmd", cmd, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdToken:
		b.handleToken(ctx, msg, args)
	case cmdAuto:
		b.handleAuto(ctx, msg, args)
	case cmdStatus:
		b.handleStatus(chatID)
	case "react":
		b.handleReact(ctx, chatID, args)
	case cmdHistory:
		b.handleHistory(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
