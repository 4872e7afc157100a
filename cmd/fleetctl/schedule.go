package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/controller"
	"github.com/depotfleet/sigec-fleet/internal/domain"
)

func newScheduleCmd() *cobra.Command {
	flags := &runFlags{}
	var triadPenalty float64
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run charge scheduling for a site",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runWithSignals(func(ctx context.Context) (bool, error) {
				return runSchedule(ctx, flags, triadPenalty)
			}))
			return nil
		},
	}
	addRunFlags(cmd, flags)
	cmd.Flags().Float64Var(&triadPenalty, "triad-penalty", 0, "TRIAD slot penalty weight (default: solver default)")
	return cmd
}

func runSchedule(ctx context.Context, flags *runFlags, triadPenalty float64) (bool, error) {
	t, err := parseStartTime(flags.startTime)
	if err != nil {
		return false, err
	}

	a, err := newApp()
	if err != nil {
		return false, err
	}
	defer a.Close()

	opts := controller.DefaultScheduleOptions()
	opts.WindowHours = flags.windowHours
	opts.Persist = !flags.noPersist
	if triadPenalty > 0 {
		opts.TriadPenalty = triadPenalty
	}

	result, err := a.planner.RunSchedule(ctx, flags.siteID, t, opts)
	if err != nil {
		a.log.Error("schedule run failed", zap.String("site_id", flags.siteID), zap.Error(err))
		return false, err
	}

	printJSON(result)

	ok := result.Scheduler.Status == domain.RunStatusAccepted || result.Scheduler.Status == domain.RunStatusCompleted
	return ok, nil
}
