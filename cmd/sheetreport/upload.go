package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/api"
	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/query"
	"github.com/jonathan/sheetreport/internal/session"
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload one or more spreadsheets as a new dataset",
	Long: fmt.Sprintf(`Upload up to %d spreadsheets. The server merges them into one dataset,
which becomes the current dataset for later commands.`, api.MaxUploadFiles),
	RunE: withApp(runUpload),
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	res, err := a.client.Upload(ctx, args)
	if err != nil {
		return fail(pipeline.StageUpload, err)
	}

	ds, err := a.client.LoadDataset(ctx, res.FileID)
	if err != nil {
		return fail(pipeline.StageUpload, err)
	}

	ds.FileID = res.FileID
	if err := session.SaveDataset(ctx, a.store, ds, query.Default().WithDataset(*ds)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := session.SetCurrent(ctx, a.store, res.FileID); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	//nolint:errcheck // writing to stdout; errors are not recoverable
	fmt.Fprintf(a.out, "Uploaded %d file(s).\n", res.UploadedFiles)
	a.printer.PrintDataset(ds)
	return nil
}
