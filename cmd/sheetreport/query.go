package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/query"
	"github.com/jonathan/sheetreport/internal/rendering"
	"github.com/jonathan/sheetreport/internal/session"
)

var (
	queryColumn   string
	queryValue    string
	queryMode     string
	queryStart    string
	queryEnd      string
	queryPageSize string
	queryPage     int
	queryNext     bool
	queryPrev     bool
	queryReset    bool
	queryAgent    string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Filter the dataset and show one page of rows",
	Long: `Filter the current dataset and show a page of matching rows.

Filter flags change the stored dashboard state and go back to page 1. Without
any flags the last query is repeated, so --next and --prev page through it.`,
	RunE: withApp(runQuery),
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryColumn, "column", "", "Column to filter on")
	f.StringVar(&queryValue, "value", "", "Value to match")
	f.StringVar(&queryMode, "mode", "", "Match mode: contains or equals")
	f.StringVar(&queryStart, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&queryEnd, "end", "", "End date (YYYY-MM-DD)")
	f.StringVar(&queryPageSize, "page-size", "", "Rows per page")
	f.IntVar(&queryPage, "page", 0, "Jump to a page")
	f.BoolVar(&queryNext, "next", false, "Show the next page")
	f.BoolVar(&queryPrev, "prev", false, "Show the previous page")
	f.BoolVar(&queryReset, "reset", false, "Clear the filter before applying other flags")
	f.StringVar(&queryAgent, "agent", "", "Show rows for one agent (exact match on the agent column)")
	queryCmd.MarkFlagsMutuallyExclusive("next", "prev", "page")
	rootCmd.AddCommand(queryCmd)
}

// filterFromFlags collects the filter flags the user actually set.
func filterFromFlags(cmd *cobra.Command) (query.Filter, bool) {
	var f query.Filter
	changed := false
	set := func(name string, dst **string, v *string) {
		if cmd.Flags().Changed(name) {
			*dst = v
			changed = true
		}
	}
	set("column", &f.Column, &queryColumn)
	set("value", &f.Value, &queryValue)
	set("mode", &f.Mode, &queryMode)
	set("start", &f.StartDate, &queryStart)
	set("end", &f.EndDate, &queryEnd)
	if cmd.Flags().Changed("page-size") {
		size := query.ParsePageSize(queryPageSize)
		f.PageSize = &size
		changed = true
	}
	return f, changed
}

func runQuery(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}
	snap, err := a.store.Load(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	state := snap.Query
	if queryReset {
		state = state.Reset()
	}
	if f, ok := filterFromFlags(cmd); ok {
		state = state.WithFilter(f)
	}
	if cmd.Flags().Changed("agent") {
		agentColumn := ""
		if snap.Dataset != nil {
			agentColumn = snap.Dataset.AgentColumn
		}
		state = state.ForAgent(agentColumn, queryAgent)
	}
	switch {
	case queryNext:
		state = state.Next()
	case queryPrev:
		state = state.Prev()
	case queryPage > 0:
		state.Page = queryPage
	}

	return showPage(ctx, a, snap, state)
}

// showPage runs a query, renders it, and stores the clamped dashboard state.
func showPage(ctx context.Context, a *app, snap *session.Snapshot, state query.State) error {
	if state.Mode != query.ModeContains && state.Mode != query.ModeEquals {
		return &pipeline.ValidationError{Stage: pipeline.StageQuery, Message: "Mode must be contains or equals."}
	}

	res, err := a.client.Query(ctx, snap.FileID, state.BuildQueryRequest())
	if err != nil {
		return fail(pipeline.StageQuery, err)
	}
	state = state.ApplyQueryResult(*res)

	if err := session.SaveQuery(ctx, a.store, snap.FileID, state); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := a.render(rendering.NewTable(rendering.ContextQuery, res.Rows)); err != nil {
		return err
	}
	if outputFormat == string(rendering.FormatText) {
		a.printer.PrintPager(state, res.Count)
	}
	return nil
}
