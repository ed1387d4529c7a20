package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/bot"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	var auto bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the stamper with its Telegram and HTTP control surfaces",
		Long: "serve resumes auto mode if it was left on, then runs the Telegram bot " +
			"(TELEGRAM_BOT_TOKEN) and the HTTP API (HTTP_ADDR) until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return serve(ctx, a, auto)
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "start auto mode immediately with the stored or SLACK_TOKEN token")
	return cmd
}

func serve(ctx context.Context, a *app, auto bool) error {
	log := a.log

	if a.cfg.SlackToken != "" {
		if err := a.ctl.SetToken(ctx, a.cfg.SlackToken); err != nil {
			return fmt.Errorf("SLACK_TOKEN: %w", err)
		}
	}

	if auto {
		if err := a.ctl.Start(ctx, ""); err != nil {
			return err
		}
	} else if err := a.ctl.Resume(ctx); err != nil {
		log.Warn("resume auto mode", "error", err)
	}

	// Shutdown keeps the persisted toggle so the next start resumes.
	defer a.manager.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.TelegramBotToken != "" {
		b, err := bot.New(a.cfg.TelegramBotToken, a.ctl, a.cfg, log.With("component", "bot"))
		if err != nil {
			return err
		}
		g.Go(func() error {
			b.Run(gctx)
			return nil
		})
	} else {
		log.Info("telegram bot disabled (TELEGRAM_BOT_TOKEN not set)")
	}

	if a.cfg.HTTPAddr != "" {
		srv := httpapi.New(a.ctl, log.With("component", "http"))
		g.Go(func() error {
			return srv.Run(gctx, a.cfg.HTTPAddr)
		})
	} else {
		log.Info("http api disabled (HTTP_ADDR not set)")
	}

	log.Info("stamper running", "status", a.ctl.Status().State)
	<-gctx.Done()

	err := g.Wait()
	log.Info("stamper stopped")
	return err
}
