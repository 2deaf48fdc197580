// ondeathctl is a CLI tool for inspecting and driving a running ondeath daemon.
//
// Usage:
//
//	ondeathctl status
//	ondeathctl subscribers -o json
//	ondeathctl subscribe statsplugin
//	ondeathctl unsubscribe statsplugin
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	outputFmt string
	serverURL string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ondeathctl",
		Short: "Inspect and manage an ondeath daemon",
		Long: `ondeathctl talks to the ondeath status API.

It reports correlator counters and connected players, and adds or removes
subscribers the same way a plugin's subscribe request would.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := "http://localhost:8080"
	if env := os.Getenv("ONDEATH_SERVER"); env != "" {
		defaultServer = env
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Base URL of the ondeath status API")

	// Add subcommands
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(subscribersCmd())
	rootCmd.AddCommand(subscribeCmd())
	rootCmd.AddCommand(unsubscribeCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
