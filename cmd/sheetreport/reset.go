package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/session"
)

var resetAll bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the report chain for the dataset",
	Long: `Clear the compare and monthly activity reports for the dataset. With --all
the stored dashboard filter and dataset metadata are dropped too, and the
dataset stops being the current one.`,
	RunE: withApp(runReset),
}

func init() {
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "Forget everything stored for the dataset")
	rootCmd.AddCommand(resetCmd)
}

func runReset(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}

	if resetAll {
		if err := session.Forget(ctx, a.store, fileID); err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
		if current, err := session.Current(ctx, a.store); err == nil && current == fileID {
			if err := a.store.Delete(ctx, session.CurrentKey); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
		}
		//nolint:errcheck // writing to stdout; errors are not recoverable
		fmt.Fprintf(a.out, "Forgot dataset %s.\n", fileID)
		return nil
	}

	state, err := a.runner().Reset(ctx, fileID)
	if err != nil {
		return err
	}
	a.printer.PrintStatus(state)
	return nil
}
