package main

import (
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show correlator counters, subscribers and connected players",
		Long: `Show a summary of the daemon's state.

Examples:
  # Show status
  ondeathctl status

  # Output as JSON
  ondeathctl status -o json`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	status, err := newClient(serverURL).status(cmd.Context())
	if err != nil {
		return err
	}
	return outputResult(StatusResult(status), outputFmt)
}

func subscribersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribers",
		Short: "List subscribed plugins in delivery order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, err := newClient(serverURL).subscribers(cmd.Context())
			if err != nil {
				return err
			}
			return outputResult(SubscribersResult(subs), outputFmt)
		},
	}
}

func subscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe NAME",
		Short: "Subscribe a plugin to death, kill and spawn events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := newClient(serverURL).subscribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return outputResult(SubscribersResult(subs), outputFmt)
		},
	}
}

func unsubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe NAME",
		Short: "Remove a plugin's subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := newClient(serverURL).unsubscribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return outputResult(SubscribersResult(subs), outputFmt)
		},
	}
}
