package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "Operate the depot fleet planner from the command line",
	Long: `fleetctl drives the same allocation and scheduling runs the HTTP
façade exposes, for operators and cron jobs that prefer a one-shot process
over a long-running server.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runFlags are the flags common to all three run subcommands (§6.2).
type runFlags struct {
	siteID      string
	startTime   string
	windowHours float64
	noPersist   bool
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.siteID, "site-id", "", "site to plan for (required)")
	cmd.Flags().StringVar(&f.startTime, "start-time", "", `planning instant, "YYYY-MM-DD HH:MM:SS" (default: now)`)
	cmd.Flags().Float64Var(&f.windowHours, "window-hours", 0, "planning window length in hours (default: site config)")
	cmd.Flags().BoolVar(&f.noPersist, "no-persist", false, "solve without writing results back to the store")
	cmd.MarkFlagRequired("site-id")
}
