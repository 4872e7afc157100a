package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/controller"
	"github.com/depotfleet/sigec-fleet/internal/domain"
)

func newUnifiedCmd() *cobra.Command {
	flags := &runFlags{}
	var alpha, beta float64
	cmd := &cobra.Command{
		Use:   "unified",
		Short: "Run the fused allocation+scheduling optimization for a site",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runWithSignals(func(ctx context.Context) (bool, error) {
				return runUnified(ctx, flags, alpha, beta)
			}))
			return nil
		},
	}
	addRunFlags(cmd, flags)
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "allocation weight in the fused objective (default: solver default)")
	cmd.Flags().Float64Var(&beta, "beta", 0, "scheduling weight in the fused objective (default: solver default)")
	return cmd
}

func runUnified(ctx context.Context, flags *runFlags, alpha, beta float64) (bool, error) {
	t, err := parseStartTime(flags.startTime)
	if err != nil {
		return false, err
	}

	a, err := newApp()
	if err != nil {
		return false, err
	}
	defer a.Close()

	opts := controller.DefaultUnifiedOptions()
	opts.Allocation.WindowHours = flags.windowHours
	opts.Allocation.Persist = !flags.noPersist
	opts.Schedule.WindowHours = flags.windowHours
	opts.Schedule.Persist = !flags.noPersist
	if alpha > 0 {
		opts.Alpha = alpha
	}
	if beta > 0 {
		opts.Beta = beta
	}

	result, err := a.planner.RunUnified(ctx, flags.siteID, t, opts)
	if err != nil {
		a.log.Error("unified run failed", zap.String("site_id", flags.siteID), zap.Error(err))
		return false, err
	}

	printJSON(result)

	ok := result.Allocation.Monitor.Status == domain.RunStatusAccepted &&
		result.Schedule.Scheduler.Status == domain.RunStatusCompleted
	return ok, nil
}

func init() {
	rootCmd.AddCommand(newAllocateCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newUnifiedCmd())
}
