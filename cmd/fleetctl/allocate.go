package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/controller"
	"github.com/depotfleet/sigec-fleet/internal/domain"
)

func newAllocateCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Run vehicle-to-route allocation for a site",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runWithSignals(func(ctx context.Context) (bool, error) {
				return runAllocate(ctx, flags)
			}))
			return nil
		},
	}
	addRunFlags(cmd, flags)
	return cmd
}

func runAllocate(ctx context.Context, flags *runFlags) (bool, error) {
	t, err := parseStartTime(flags.startTime)
	if err != nil {
		return false, err
	}

	a, err := newApp()
	if err != nil {
		return false, err
	}
	defer a.Close()

	opts := controller.DefaultAllocationOptions()
	opts.WindowHours = flags.windowHours
	opts.Persist = !flags.noPersist

	result, err := a.planner.RunAllocation(ctx, flags.siteID, t, opts)
	if err != nil {
		a.log.Error("allocation run failed", zap.String("site_id", flags.siteID), zap.Error(err))
		return false, err
	}

	printJSON(result)

	ok := result.Monitor.Status == domain.RunStatusAccepted || result.Monitor.Status == domain.RunStatusCompleted
	return ok, nil
}

func printJSON(v interface{}) {
	enc := jsonEncoder()
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
