// Package observability provides logging setup and formatted terminal output
// for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/query"
	"github.com/jonathan/sheetreport/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// PrintDataset outputs the dataset's columns and designated agent/date columns.
func (p *Printer) PrintDataset(ds *types.Dataset) {
	if ds == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File ID:  %s\n", ds.FileID))
	sb.WriteString(fmt.Sprintf("Agent:    %s\n", orDash(ds.AgentColumn)))
	sb.WriteString(fmt.Sprintf("Date:     %s\n", orDash(ds.DateColumn)))
	if ds.MinDate != "" || ds.MaxDate != "" {
		sb.WriteString(fmt.Sprintf("Range:    %s to %s\n", orDash(ds.MinDate), orDash(ds.MaxDate)))
	}
	sb.WriteString(fmt.Sprintf("Columns:  %d\n", len(ds.Columns)))

	if chips := query.Chips(*ds); len(chips) > 0 {
		sb.WriteString("\nQuick picks:\n")
		count := min(len(chips), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", chips[i]))
		}
		if len(chips) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(chips)-maxItemsToShow))
		}
	}

	p.printBox("DATASET", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPager outputs the current page position and result count.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintPager(s query.State, count int) {
	var hints []string
	if s.CanPrev() {
		hints = append(hints, "prev")
	}
	if s.CanNext() {
		hints = append(hints, "next")
	}
	line := fmt.Sprintf("Page %d of %d · %d row(s)", s.Page, s.TotalPages, count)
	if len(hints) > 0 {
		line += " · " + strings.Join(hints, "/") + " available"
	}
	fmt.Fprintln(p.out, line)
}

// PrintAgentsSummary outputs the agent count and the date column used for filtering.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintAgentsSummary(res *types.AgentsResult) {
	if res == nil {
		return
	}
	fmt.Fprintf(p.out, "Agents: %d (date column: %s)\n", res.Count, orDash(res.DateColumn))
}

// PrintCompare outputs the summary of the last compare.
func (p *Printer) PrintCompare(snap *pipeline.CompareSnapshot) {
	if snap == nil {
		return
	}

	var sb strings.Builder
	if snap.ReportID != "" {
		sb.WriteString(fmt.Sprintf("Report:   %s\n", snap.ReportID))
	}
	if snap.DirectFile != "" {
		sb.WriteString(fmt.Sprintf("File:     %s\n", snap.DirectFile))
	}
	sb.WriteString(fmt.Sprintf("Compared: %d\n", snap.ComparedCount))
	sb.WriteString(fmt.Sprintf("Inactive: %d\n", snap.InactiveCount))
	sb.WriteString("\n")
	sb.WriteString(snap.Summary)

	p.printBox("AGENT COMPARE", sb.String())
}

// PrintActivity outputs the summary of the last monthly activity preview.
func (p *Printer) PrintActivity(snap *pipeline.ActivitySnapshot) {
	if snap == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Report:    %s\n", snap.ActivityReportID))
	sb.WriteString(fmt.Sprintf("Timeframe: %s\n", orDash(snap.TimeframeLabel)))
	sb.WriteString(fmt.Sprintf("Type:      %s\n", strings.ToUpper(snap.ActivityType)))
	sb.WriteString(fmt.Sprintf("Rows:      %d\n", snap.TotalRows))
	sb.WriteString("\n")
	sb.WriteString(snap.Summary)

	p.printBox("MONTHLY ACTIVITY", sb.String())
}

// PrintStatus outputs the report chain state and the actions available next.
func (p *Printer) PrintStatus(s pipeline.State) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File ID:   %s\n", s.FileID))
	sb.WriteString(fmt.Sprintf("Phase:     %s\n", s.Phase))
	sb.WriteString(fmt.Sprintf("Report:    %s\n", orDash(s.ReportID)))
	sb.WriteString(fmt.Sprintf("Activity:  %s\n", orDash(s.ActivityReportID)))
	if s.LastError != "" {
		sb.WriteString(fmt.Sprintf("Error:     %s\n", s.LastError))
	}

	stages := pipeline.AvailableStages(s)
	sb.WriteString("\nAvailable:\n")
	if len(stages) == 0 {
		sb.WriteString("  (none)")
	}
	for i, stage := range stages {
		sb.WriteString(fmt.Sprintf("  • %s", stage))
		if i < len(stages)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("REPORT STATUS", sb.String())
}

// PrintProgress outputs one progress event as a status line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(e pipeline.ProgressEvent) {
	marker := "…"
	switch e.Level {
	case pipeline.LevelGood:
		marker = "✓"
	case pipeline.LevelBad:
		marker = "✗"
	}
	fmt.Fprintf(p.out, "%s %s\n", marker, e.Message)
}
