package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/session"
)

var refreshMeta bool

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Show the columns and detected agent/date columns of the dataset",
	RunE:  withApp(runMeta),
}

func init() {
	metaCmd.Flags().BoolVar(&refreshMeta, "refresh", false, "Fetch metadata from the server even if it is cached")
	rootCmd.AddCommand(metaCmd)
}

func runMeta(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}

	snap, err := a.store.Load(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if snap.Dataset == nil || refreshMeta {
		ds, err := a.client.LoadDataset(ctx, fileID)
		if err != nil {
			return fail(pipeline.StageQuery, err)
		}
		ds.FileID = fileID
		snap.Dataset = ds
		if snap.Query.Column == "" {
			snap.Query = snap.Query.WithDataset(*ds)
		}
		if err := session.SaveDataset(ctx, a.store, ds, snap.Query); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
	}

	a.printer.PrintDataset(snap.Dataset)
	return nil
}
