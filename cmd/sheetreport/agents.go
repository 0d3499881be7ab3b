package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/rendering"
	"github.com/jonathan/sheetreport/internal/types"
)

var (
	agentsSearch string
	agentsStart  string
	agentsEnd    string
	agentsSelect string
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents in the dataset",
	Long: `List the distinct agents in the dataset, optionally narrowed by a name
search and a date range. --select opens the dashboard for one agent: the
query filter becomes an exact match on the agent column.`,
	RunE: withApp(runAgents),
}

func init() {
	f := agentsCmd.Flags()
	f.StringVar(&agentsSearch, "search", "", "Only list agents whose name contains this text")
	f.StringVar(&agentsStart, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&agentsEnd, "end", "", "End date (YYYY-MM-DD)")
	f.StringVar(&agentsSelect, "select", "", "Show dataset rows for this agent")
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	fileID, err := a.fileID(ctx)
	if err != nil {
		return err
	}
	snap, err := a.store.Load(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if agentsSelect != "" {
		agentColumn := ""
		if snap.Dataset != nil {
			agentColumn = snap.Dataset.AgentColumn
		}
		return showPage(ctx, a, snap, snap.Query.ForAgent(agentColumn, agentsSelect))
	}

	res, err := a.client.Agents(ctx, fileID, types.AgentsRequest{
		Search:    agentsSearch,
		StartDate: agentsStart,
		EndDate:   agentsEnd,
	})
	if err != nil {
		return fail(pipeline.StageAgents, err)
	}

	if err := a.render(rendering.ListTable(rendering.ContextAgents, "Agent", res.Agents)); err != nil {
		return err
	}
	if outputFormat == string(rendering.FormatText) {
		a.printer.PrintAgentsSummary(res)
	}
	return nil
}
