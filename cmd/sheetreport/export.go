package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/query"
)

var (
	exportFormat  string
	exportURLOnly bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every row matching the current filter",
	Long: `Export the rows matching the stored dashboard filter (all pages) as CSV or
XLSX. The file is saved to the output directory or bucket; --url-only prints
the export link instead.`,
	RunE: withApp(runExport),
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "as", query.FormatCSV, "Export format: csv or xlsx")
	exportCmd.Flags().BoolVar(&exportURLOnly, "url-only", false, "Print the export link instead of downloading")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}
	snap, err := a.store.Load(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	params, err := snap.Query.ExportParams(exportFormat)
	if err != nil {
		return &pipeline.ValidationError{Stage: pipeline.StageExport, Message: err.Error()}
	}

	if exportURLOnly {
		//nolint:errcheck // writing to stdout; errors are not recoverable
		fmt.Fprintln(a.out, a.client.ExportURL(fileID, params))
		return nil
	}

	dl, err := a.client.Export(ctx, fileID, params)
	if err != nil {
		return fail(pipeline.StageExport, err)
	}
	location, err := a.saver.Save(ctx, dl.Filename, dl.Body)
	if err != nil {
		return fmt.Errorf("failed to save export: %w", err)
	}

	//nolint:errcheck // writing to stdout; errors are not recoverable
	fmt.Fprintf(a.out, "Export saved to %s\n", location)
	return nil
}
