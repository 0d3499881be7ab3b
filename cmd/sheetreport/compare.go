package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/rendering"
)

var compareCmd = &cobra.Command{
	Use:   "compare [FILE]",
	Short: "Compare a second spreadsheet with the dataset",
	Long: `Upload a second spreadsheet and list the businesses in the dataset that
are inactive or not seen in it. A new compare replaces the previous report
and any monthly activity built on it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runCompare),
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}

	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	state, err := a.runner().Compare(ctx, fileID, path)
	if err != nil {
		return fail(pipeline.StageCompare, err)
	}

	if snap := state.Compare; snap != nil && snap.DirectFile == "" {
		if err := a.render(rendering.NewTable(rendering.ContextCompare, snap.PreviewRows)); err != nil {
			return err
		}
	}
	if outputFormat == string(rendering.FormatText) {
		a.printer.PrintCompare(state.Compare)
	}
	return nil
}
