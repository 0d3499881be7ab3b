package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Timeframe modes accepted by the monthly activity endpoint.
const (
	TimeframeMonth  = "month"
	TimeframeCustom = "custom"
)

// DefaultActivityType selects every activity kind.
const DefaultActivityType = "all"

// CompareResult is the JSON preview returned by a compare upload. When the
// server answers with a spreadsheet instead, Direct carries it and ReportID is
// empty.
type CompareResult struct {
	ReportID      string    `json:"report_id"`
	PreviewRows   []Row     `json:"preview_rows"`
	ComparedCount int       `json:"compared_count"`
	InactiveCount int       `json:"inactive_count"`
	PreviewTotal  int       `json:"preview_total"`
	PreviewLimit  int       `json:"preview_limit"`
	Direct        *Download `json:"-"`
}

// ActivityRequest is the body of a monthly activity generation call.
type ActivityRequest struct {
	TimeframeMode string `json:"timeframe_mode" validate:"required,oneof=month custom"`
	Month         string `json:"month" validate:"required_if=TimeframeMode month"`
	StartDate     string `json:"start_date" validate:"required_if=TimeframeMode custom"`
	EndDate       string `json:"end_date" validate:"required_if=TimeframeMode custom"`
	ActivityType  string `json:"activity_type" validate:"required"`
}

// Validate checks the request's field tags.
func (r *ActivityRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Timeframe returns the active timeframe variant.
func (r *ActivityRequest) Timeframe() (Timeframe, error) {
	switch r.TimeframeMode {
	case TimeframeMonth:
		return MonthTimeframe(r.Month)
	case TimeframeCustom:
		return CustomTimeframe(r.StartDate, r.EndDate)
	default:
		return Timeframe{}, fmt.Errorf("unknown timeframe mode %q", r.TimeframeMode)
	}
}

// ActivityResult is the preview returned by monthly activity generation.
type ActivityResult struct {
	ActivityReportID string `json:"activity_report_id"`
	PreviewRows      []Row  `json:"preview_rows"`
	TotalRows        int    `json:"total_rows"`
	TimeframeLabel   string `json:"timeframe_label"`
	ActivityType     string `json:"activity_type"`
	PreviewTotal     int    `json:"preview_total"`
	PreviewLimit     int    `json:"preview_limit"`
}

// Timeframe is either a single month or an inclusive custom date range.
// Exactly one variant is active.
type Timeframe struct {
	Mode  string
	Month string
	Start string
	End   string
}

// MonthTimeframe builds the month variant. The value must be YYYY-MM.
func MonthTimeframe(month string) (Timeframe, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return Timeframe{}, fmt.Errorf("month must be YYYY-MM, got %q", month)
	}
	return Timeframe{Mode: TimeframeMonth, Month: month}, nil
}

// CustomTimeframe builds the range variant. Both ends must be YYYY-MM-DD
// and start must not be after end.
func CustomTimeframe(start, end string) (Timeframe, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return Timeframe{}, fmt.Errorf("start date must be YYYY-MM-DD, got %q", start)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return Timeframe{}, fmt.Errorf("end date must be YYYY-MM-DD, got %q", end)
	}
	if s.After(e) {
		return Timeframe{}, ErrRangeInverted
	}
	return Timeframe{Mode: TimeframeCustom, Start: start, End: end}, nil
}

// ErrRangeInverted is returned when a custom range starts after it ends.
var ErrRangeInverted = errors.New("start date is after end date")

// Label is a short human description of the timeframe.
func (t Timeframe) Label() string {
	if t.Mode == TimeframeCustom {
		return t.Start + " to " + t.End
	}
	return t.Month
}
