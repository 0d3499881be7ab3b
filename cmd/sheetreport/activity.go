package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/rendering"
	"github.com/jonathan/sheetreport/internal/types"
)

var (
	activityMode  string
	activityMonth string
	activityStart string
	activityEnd   string
	activityType  string
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Generate the monthly activity preview for the last compare",
	Long: `Generate agent monthly activity for the businesses in the last compare
report. The timeframe is a month (default: the current month) or a custom
date range (default: the first of this month to today).`,
	RunE: withApp(runActivity),
}

func init() {
	f := activityCmd.Flags()
	f.StringVar(&activityMode, "mode", types.TimeframeMonth, "Timeframe mode: month or custom")
	f.StringVar(&activityMonth, "month", "", "Month (YYYY-MM)")
	f.StringVar(&activityStart, "start", "", "Custom start date (YYYY-MM-DD)")
	f.StringVar(&activityEnd, "end", "", "Custom end date (YYYY-MM-DD)")
	f.StringVar(&activityType, "type", types.DefaultActivityType, "Activity type")
	rootCmd.AddCommand(activityCmd)
}

// activityRequest builds the request from flags, filling in the default
// month or range for flags that were not given.
func activityRequest(cmd *cobra.Command, today time.Time) types.ActivityRequest {
	req := types.ActivityRequest{
		TimeframeMode: activityMode,
		Month:         activityMonth,
		StartDate:     activityStart,
		EndDate:       activityEnd,
		ActivityType:  activityType,
	}
	if !cmd.Flags().Changed("month") {
		req.Month = today.Format("2006-01")
	}
	if !cmd.Flags().Changed("start") {
		req.StartDate = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).Format(time.DateOnly)
	}
	if !cmd.Flags().Changed("end") {
		req.EndDate = today.Format(time.DateOnly)
	}
	return req
}

func runActivity(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}

	state, err := a.runner().GenerateActivity(ctx, fileID, activityRequest(cmd, time.Now()))
	if err != nil {
		return fail(pipeline.StageActivity, err)
	}

	if snap := state.Activity; snap != nil {
		if err := a.render(rendering.NewTable(rendering.ContextActivity, snap.PreviewRows)); err != nil {
			return err
		}
	}
	if outputFormat == string(rendering.FormatText) {
		a.printer.PrintActivity(state.Activity)
	}
	return nil
}
