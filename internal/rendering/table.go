// Package rendering turns result rows into tables for the terminal, CSV and
// HTML. Rendering is presentation only; it never changes report state.
package rendering

import (
	"slices"

	"github.com/jonathan/sheetreport/internal/types"
)

// PriorityColumn is moved to the front whenever a result set has it.
const PriorityColumn = "S/N"

// Context says where a table is shown; each has its own empty-state message.
type Context string

// Rendering contexts.
const (
	ContextQuery    Context = "query"
	ContextCompare  Context = "compare"
	ContextActivity Context = "activity"
	ContextAgents   Context = "agents"
)

var emptyMessages = map[Context]string{
	ContextQuery:    "No results found",
	ContextCompare:  "No inactive businesses found in this run.",
	ContextActivity: "No businesses match this month/filter.",
	ContextAgents:   "No agents found",
}

// EmptyMessage returns the empty-state text for a context.
func EmptyMessage(ctx Context) string {
	if msg, ok := emptyMessages[ctx]; ok {
		return msg
	}
	return emptyMessages[ContextQuery]
}

// Table is a rectangular, display-ready result set.
type Table struct {
	Context Context
	Columns []string
	Rows    [][]string
}

// NewTable builds a table whose header comes from the first row's keys, with
// PriorityColumn first when present. Values missing from a later row render
// as empty cells.
func NewTable(ctx Context, rows []types.Row) Table {
	t := Table{Context: ctx}
	if len(rows) == 0 {
		return t
	}

	t.Columns = orderColumns(rows[0].Keys())
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			v, _ := r.Get(col)
			line[i] = CellText(v)
		}
		t.Rows = append(t.Rows, line)
	}
	return t
}

// ListTable builds a one-column table, used for the agent list.
func ListTable(ctx Context, header string, items []string) Table {
	t := Table{Context: ctx}
	if len(items) == 0 {
		return t
	}
	t.Columns = []string{header}
	for _, item := range items {
		t.Rows = append(t.Rows, []string{item})
	}
	return t
}

// IsEmpty reports whether the table has no rows.
func (t Table) IsEmpty() bool {
	return len(t.Rows) == 0
}

// EmptyMessage returns the empty-state text for the table's context.
func (t Table) EmptyMessage() string {
	return EmptyMessage(t.Context)
}

func orderColumns(keys []string) []string {
	idx := slices.Index(keys, PriorityColumn)
	if idx <= 0 {
		return keys
	}
	out := make([]string, 0, len(keys))
	out = append(out, PriorityColumn)
	out = append(out, keys[:idx]...)
	out = append(out, keys[idx+1:]...)
	return out
}
