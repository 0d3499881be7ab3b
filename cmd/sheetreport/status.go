package main

import (
	"context"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the report chain for the dataset",
	RunE:  withApp(runStatus),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}
	state, err := a.runner().Status(ctx, fileID)
	if err != nil {
		return err
	}
	a.printer.PrintStatus(state)
	return nil
}
