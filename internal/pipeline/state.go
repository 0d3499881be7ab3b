// Package pipeline tracks the compare -> monthly activity -> download chain
// of server-issued report identifiers.
//
// Transitions are pure functions over State. Every Begin* call bumps an
// epoch for its stage and hands back a Ticket; the matching Complete* or
// Fail* call only lands if the ticket's epoch is still current, so a slow
// response from a superseded request can never overwrite newer state.
package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/jonathan/sheetreport/internal/types"
)

// Phase is the externally visible state of the report chain.
type Phase string

// Pipeline phases.
const (
	PhaseIdle               Phase = "idle"
	PhaseComparing          Phase = "comparing"
	PhaseCompared           Phase = "compared"
	PhaseGeneratingActivity Phase = "generating_activity"
	PhaseActivityReady      Phase = "activity_ready"
	PhaseDownloading        Phase = "downloading"
)

// Default download names, used when the server sends no usable filename.
const (
	DefaultCompareFilename  = "inactive_businesses.xlsx"
	DefaultActivityFilename = "agent_monthly_activity.xlsx"
)

// CompareSnapshot is the retained result of the last successful compare.
type CompareSnapshot struct {
	ReportID      string      `json:"report_id,omitempty"`
	PreviewRows   []types.Row `json:"preview_rows"`
	ComparedCount int         `json:"compared_count"`
	InactiveCount int         `json:"inactive_count"`
	PreviewTotal  int         `json:"preview_total"`
	PreviewLimit  int         `json:"preview_limit"`
	Summary       string      `json:"summary"`
	// DirectFile is set when the server answered with a spreadsheet instead of a preview.
	DirectFile string `json:"direct_file,omitempty"`
}

// ActivitySnapshot is the retained result of the last successful activity generation.
type ActivitySnapshot struct {
	ParentReportID   string                `json:"parent_report_id"`
	ActivityReportID string                `json:"activity_report_id"`
	Request          types.ActivityRequest `json:"request"`
	PreviewRows      []types.Row           `json:"preview_rows"`
	TotalRows        int                   `json:"total_rows"`
	TimeframeLabel   string                `json:"timeframe_label"`
	ActivityType     string                `json:"activity_type"`
	PreviewTotal     int                   `json:"preview_total"`
	PreviewLimit     int                   `json:"preview_limit"`
	Summary          string                `json:"summary"`
}

// State is the full report chain for one uploaded dataset.
type State struct {
	FileID           string            `json:"file_id"`
	Phase            Phase             `json:"phase"`
	ReportID         string            `json:"report_id,omitempty"`
	ActivityReportID string            `json:"activity_report_id,omitempty"`
	CompareEpoch     uint64            `json:"compare_epoch"`
	ActivityEpoch    uint64            `json:"activity_epoch"`
	Compare          *CompareSnapshot  `json:"compare,omitempty"`
	Activity         *ActivitySnapshot `json:"activity,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
}

// New returns an idle state for a dataset.
func New(fileID string) State {
	return State{FileID: fileID, Phase: PhaseIdle}
}

// Ticket identifies one in-flight request. It is only honoured while its
// epoch (and, for activity, its parent report id) is still current.
type Ticket struct {
	Stage    Stage
	Epoch    uint64
	ReportID string
}

// BeginCompare validates the compare file name and invalidates every
// identifier derived from an earlier compare before the upload is sent.
func BeginCompare(s State, filename string) (State, Ticket, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return s, Ticket{}, validationErr(StageCompare, "Pick a compare file first.")
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".csv":
	default:
		return s, Ticket{}, validationErr(StageCompare, "Compare file must be .xlsx or .csv")
	}

	s.ReportID = ""
	s.ActivityReportID = ""
	s.Compare = nil
	s.Activity = nil
	s.LastError = ""
	s.CompareEpoch++
	s.ActivityEpoch++
	s.Phase = PhaseComparing

	return s, Ticket{Stage: StageCompare, Epoch: s.CompareEpoch}, nil
}

// CompleteCompare applies a compare result. The bool is false when the
// ticket was superseded and s is returned unchanged.
func CompleteCompare(s State, t Ticket, result types.CompareResult) (State, bool) {
	if t.Stage != StageCompare || t.Epoch != s.CompareEpoch {
		return s, false
	}

	snap := &CompareSnapshot{
		ReportID:      result.ReportID,
		PreviewRows:   result.PreviewRows,
		ComparedCount: result.ComparedCount,
		InactiveCount: result.InactiveCount,
		PreviewTotal:  result.PreviewTotal,
		PreviewLimit:  result.PreviewLimit,
		Summary:       CompareSummary(result),
	}
	if result.Direct != nil {
		snap.DirectFile = result.Direct.Filename
		snap.Summary = "Compare report returned as a file; no preview available."
	}

	s.Compare = snap
	s.ReportID = result.ReportID
	s.ActivityReportID = ""
	s.Activity = nil
	s.LastError = ""
	if s.ReportID != "" {
		s.Phase = PhaseCompared
	} else {
		s.Phase = PhaseIdle
	}
	return s, true
}

// FailCompare records a failed compare. No report id survives, so a retry
// starts from a fresh upload of the compare file; the dataset is kept.
func FailCompare(s State, t Ticket, err error) (State, bool) {
	if t.Stage != StageCompare || t.Epoch != s.CompareEpoch {
		return s, false
	}
	s.ReportID = ""
	s.ActivityReportID = ""
	s.Compare = nil
	s.Activity = nil
	s.Phase = PhaseIdle
	s.LastError = StageMessage(StageCompare, err)
	return s, true
}

// NormalizeActivityRequest fills defaults the way the form controls do:
// lower-cased mode defaulting to month, activity type defaulting to all.
func NormalizeActivityRequest(req types.ActivityRequest) types.ActivityRequest {
	req.TimeframeMode = strings.ToLower(strings.TrimSpace(req.TimeframeMode))
	if req.TimeframeMode == "" {
		req.TimeframeMode = types.TimeframeMonth
	}
	req.Month = strings.TrimSpace(req.Month)
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)
	req.ActivityType = strings.ToLower(strings.TrimSpace(req.ActivityType))
	if req.ActivityType == "" {
		req.ActivityType = types.DefaultActivityType
	}
	return req
}

// BeginActivity validates the timeframe selection against the current
// compare report and clears any previous activity report.
func BeginActivity(s State, req types.ActivityRequest) (State, Ticket, types.ActivityRequest, error) {
	req = NormalizeActivityRequest(req)

	if s.ReportID == "" {
		return s, Ticket{}, req, validationErr(StageActivity, "Run compare first before generating monthly activity.")
	}
	if err := validateActivity(req); err != nil {
		return s, Ticket{}, req, err
	}

	s.ActivityReportID = ""
	s.Activity = nil
	s.LastError = ""
	s.ActivityEpoch++
	s.Phase = PhaseGeneratingActivity

	return s, Ticket{Stage: StageActivity, Epoch: s.ActivityEpoch, ReportID: s.ReportID}, req, nil
}

// CompleteActivity applies an activity result if neither the activity
// request nor its parent compare report has been superseded.
func CompleteActivity(s State, t Ticket, req types.ActivityRequest, result types.ActivityResult) (State, bool) {
	if t.Stage != StageActivity || t.Epoch != s.ActivityEpoch || t.ReportID != s.ReportID || s.ReportID == "" {
		return s, false
	}

	label := ActivityLabel(req, result)
	activityType := result.ActivityType
	if activityType == "" {
		activityType = req.ActivityType
	}

	s.ActivityReportID = result.ActivityReportID
	s.Activity = &ActivitySnapshot{
		ParentReportID:   t.ReportID,
		ActivityReportID: result.ActivityReportID,
		Request:          req,
		PreviewRows:      result.PreviewRows,
		TotalRows:        result.TotalRows,
		TimeframeLabel:   label,
		ActivityType:     activityType,
		PreviewTotal:     result.PreviewTotal,
		PreviewLimit:     result.PreviewLimit,
		Summary:          ActivitySummary(req, result),
	}
	s.LastError = ""
	if s.ActivityReportID != "" {
		s.Phase = PhaseActivityReady
	} else {
		s.Phase = PhaseCompared
	}
	return s, true
}

// FailActivity records a failed generation. The compare report stays valid;
// the activity report and its preview are cleared.
func FailActivity(s State, t Ticket, err error) (State, bool) {
	if t.Stage != StageActivity || t.Epoch != s.ActivityEpoch || t.ReportID != s.ReportID {
		return s, false
	}
	s.ActivityReportID = ""
	s.Activity = nil
	s.Phase = PhaseCompared
	if s.ReportID == "" {
		s.Phase = PhaseIdle
	}
	s.LastError = StageMessage(StageActivity, err)
	return s, true
}

// ReportKind selects which report a download refers to.
type ReportKind string

// Downloadable report kinds.
const (
	KindCompare  ReportKind = "compare"
	KindActivity ReportKind = "activity"
)

// DownloadTarget holds the identifiers a download request needs.
type DownloadTarget struct {
	Kind             ReportKind
	FileID           string
	ReportID         string
	ActivityReportID string
	DefaultName      string
}

// PrepareDownload checks that the identifiers for kind are present. It never
// changes the state.
func PrepareDownload(s State, kind ReportKind) (DownloadTarget, error) {
	switch kind {
	case KindCompare:
		if s.ReportID == "" {
			return DownloadTarget{}, validationErr(StageDownload, "Run compare first to generate a downloadable report.")
		}
		return DownloadTarget{
			Kind:        kind,
			FileID:      s.FileID,
			ReportID:    s.ReportID,
			DefaultName: DefaultCompareFilename,
		}, nil
	case KindActivity:
		if s.ReportID == "" || s.ActivityReportID == "" {
			return DownloadTarget{}, validationErr(StageDownload, "Generate monthly activity preview first before downloading.")
		}
		if s.Activity != nil && s.Activity.ParentReportID != s.ReportID {
			return DownloadTarget{}, validationErr(StageDownload, "Generate monthly activity preview first before downloading.")
		}
		return DownloadTarget{
			Kind:             kind,
			FileID:           s.FileID,
			ReportID:         s.ReportID,
			ActivityReportID: s.ActivityReportID,
			DefaultName:      DefaultActivityFilename,
		}, nil
	default:
		return DownloadTarget{}, validationErr(StageDownload, "Unknown report kind "+string(kind)+"; use compare or activity.")
	}
}

// Reset drops every report identifier for the dataset. Epochs keep counting
// so tickets issued before the reset stay stale.
func Reset(s State) State {
	return State{
		FileID:        s.FileID,
		Phase:         PhaseIdle,
		CompareEpoch:  s.CompareEpoch + 1,
		ActivityEpoch: s.ActivityEpoch + 1,
	}
}
