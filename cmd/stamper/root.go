package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stamper",
		Short:         "Slack auto-reaction stamper",
		Long:          "stamper watches Slack channels and reacts to messages that match keyword rules after a random delay. It can also add one-shot reactions.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newReactCmd(),
		newTokenCmd(),
		newHistoryCmd(),
	)

	return rootCmd
}
