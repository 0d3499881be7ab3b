package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/pipeline"
)

var downloadCmd = &cobra.Command{
	Use:       "download compare|activity",
	Short:     "Download the last compare or monthly activity report",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(pipeline.KindCompare), string(pipeline.KindActivity)},
	RunE:      withApp(runDownload),
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}

	if _, err := a.runner().Download(ctx, fileID, pipeline.ReportKind(args[0])); err != nil {
		return fail(pipeline.StageDownload, err)
	}
	return nil
}
