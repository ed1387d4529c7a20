package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored Slack token",
	}
	cmd.AddCommand(newTokenSetCmd())
	return cmd
}

func newTokenSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <token>",
		Short: "Validate and store a Slack token for auto mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wireApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ctl.SetToken(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Token saved")
			return err
		},
	}
}
