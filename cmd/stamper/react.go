package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/control"
)

func newReactCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:     "react <channel> <ts> <emoji>",
		Short:   "Add one reaction to a message",
		Example: "  stamper react C0123456789 1700000000.000100 tada",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if token == "" {
				token = a.cfg.SlackToken
			}
			rec, err := a.ctl.AddReaction(cmd.Context(), control.ReactionRequest{
				Channel:   args[0],
				Timestamp: args[1],
				Emoji:     args[2],
				Token:     token,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Reacted with :%s: to %s in %s\n", rec.Emoji, rec.MessageID, rec.Channel)
			return err
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Slack token (defaults to SLACK_TOKEN, then the stored token)")
	return cmd
}
