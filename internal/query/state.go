// Package query holds the dashboard's filter and pagination state and
// derives query payloads and export links from it. Every operation returns a
// new State; nothing is shared.
package query

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonathan/sheetreport/internal/types"
)

// Match modes understood by the query endpoint.
const (
	ModeContains = "contains"
	ModeEquals   = "equals"
)

// DefaultPageSize is used whenever a page size is missing or invalid.
const DefaultPageSize = 25

// maxChipColumns caps how many leading columns become quick-pick chips.
const maxChipColumns = 12

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ErrUnsupportedFormat is returned for export formats other than csv and xlsx.
var ErrUnsupportedFormat = errors.New("export format must be csv or xlsx")

// State is the dashboard filter and pager.
type State struct {
	Column     string `json:"column"`
	Value      string `json:"value"`
	Mode       string `json:"mode"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

// Default returns the initial dashboard state.
func Default() State {
	return State{
		Mode:       ModeContains,
		Page:       1,
		PageSize:   DefaultPageSize,
		TotalPages: 1,
	}
}

// ParsePageSize reads a page size control value. Anything that is not a
// positive integer becomes DefaultPageSize.
func ParsePageSize(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultPageSize
	}
	return n
}

func (s State) mode() string {
	if s.Mode == "" {
		return ModeContains
	}
	return s.Mode
}

// BuildQueryRequest serializes the state into a query payload.
func (s State) BuildQueryRequest() types.QueryPayload {
	page := s.Page
	if page < 1 {
		page = 1
	}
	size := s.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return types.QueryPayload{
		Column:    s.Column,
		Value:     s.Value,
		Mode:      s.mode(),
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		Page:      page,
		PageSize:  size,
	}
}

// ExportParams encodes the filter fields (no pagination) for an export link.
// Empty dates are left out rather than sent as empty strings.
func (s State) ExportParams(format string) (url.Values, error) {
	switch format {
	case FormatCSV, FormatXLSX:
	default:
		return nil, ErrUnsupportedFormat
	}

	p := url.Values{}
	p.Set("format", format)
	p.Set("column", s.Column)
	p.Set("value", s.Value)
	p.Set("mode", s.mode())
	if s.StartDate != "" {
		p.Set("start_date", s.StartDate)
	}
	if s.EndDate != "" {
		p.Set("end_date", s.EndDate)
	}
	return p, nil
}

// BuildExportURL returns the export link for a dataset. Parameters are
// encoded in sorted key order, so equal states give equal URLs.
func (s State) BuildExportURL(base, fileID, format string) (string, error) {
	params, err := s.ExportParams(format)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(base, "/") + "/api/export/" + url.PathEscape(fileID) + "?" + params.Encode(), nil
}

// ApplyQueryResult takes the server's page count and clamps the current page
// into range. A response that disagrees with the pager never pushes the page
// past the last one.
func (s State) ApplyQueryResult(r types.QueryResult) State {
	s.TotalPages = max(1, r.TotalPages)
	s.Page = min(max(r.Page, 1), s.TotalPages)
	return s
}

// Reset restores the filter defaults. The selected column is kept.
func (s State) Reset() State {
	s.Value = ""
	s.StartDate = ""
	s.EndDate = ""
	s.Mode = ModeContains
	s.PageSize = DefaultPageSize
	s.Page = 1
	return s
}

// CanPrev reports whether a previous page exists.
func (s State) CanPrev() bool { return s.Page > 1 }

// CanNext reports whether a next page exists.
func (s State) CanNext() bool { return s.Page < s.TotalPages }

// Next moves one page forward if possible.
func (s State) Next() State {
	if s.CanNext() {
		s.Page++
	}
	return s
}

// Prev moves one page back if possible.
func (s State) Prev() State {
	if s.CanPrev() {
		s.Page--
	}
	return s
}

// Filter carries the filter controls. Nil fields are left unchanged.
type Filter struct {
	Column    *string
	Value     *string
	Mode      *string
	StartDate *string
	EndDate   *string
	PageSize  *int
}

// WithFilter applies filter changes and goes back to the first page.
func (s State) WithFilter(f Filter) State {
	if f.Column != nil {
		s.Column = *f.Column
	}
	if f.Value != nil {
		s.Value = *f.Value
	}
	if f.Mode != nil {
		s.Mode = strings.ToLower(strings.TrimSpace(*f.Mode))
		if s.Mode == "" {
			s.Mode = ModeContains
		}
	}
	if f.StartDate != nil {
		s.StartDate = *f.StartDate
	}
	if f.EndDate != nil {
		s.EndDate = *f.EndDate
	}
	if f.PageSize != nil {
		s.PageSize = *f.PageSize
		if s.PageSize <= 0 {
			s.PageSize = DefaultPageSize
		}
	}
	s.Page = 1
	return s
}

// ForAgent is the agents-page click-through: an exact match on one agent.
func (s State) ForAgent(agentColumn, agent string) State {
	if agentColumn != "" {
		s.Column = agentColumn
	}
	s.Value = agent
	s.Mode = ModeEquals
	s.Page = 1
	return s
}

// WithDataset selects the initial column: the agent column if the dataset
// has one, else the first column.
func (s State) WithDataset(ds types.Dataset) State {
	switch {
	case ds.AgentColumn != "":
		s.Column = ds.AgentColumn
	case len(ds.Columns) > 0:
		s.Column = ds.Columns[0]
	}
	return s
}

// Chips lists quick-pick columns: agent column, date column, then the first
// twelve columns, without duplicates.
func Chips(ds types.Dataset) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	add(ds.AgentColumn)
	add(ds.DateColumn)
	for i, c := range ds.Columns {
		if i >= maxChipColumns {
			break
		}
		add(c)
	}
	return out
}
