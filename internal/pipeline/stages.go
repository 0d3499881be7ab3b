package pipeline

import (
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/sheetreport/internal/types"
)

// Stage names a user action that talks to the server.
type Stage string

// Stages.
const (
	StageUpload           Stage = "upload"
	StageQuery            Stage = "query"
	StageAgents           Stage = "agents"
	StageExport           Stage = "export"
	StageCompare          Stage = "compare"
	StageActivity         Stage = "activity"
	StageDownload         Stage = "download"
	StageCompareDownload  Stage = "compare_download"
	StageActivityDownload Stage = "activity_download"
)

// ValidationError is a local precondition failure. No request was sent.
type ValidationError struct {
	Stage   Stage
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErr(stage Stage, message string) error {
	return &ValidationError{Stage: stage, Message: message}
}

// IsValidation reports whether err is a local precondition failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StageDefinition declares which identifiers a report stage needs before it
// can run.
type StageDefinition struct {
	Stage    Stage
	Requires []string
}

// Identifier names used by StageRegistry.
const (
	requiresFileID     = "file_id"
	requiresReportID   = "report_id"
	requiresActivityID = "activity_report_id"
)

// StageRegistry holds the report chain's dependencies.
var StageRegistry = map[Stage]StageDefinition{
	StageCompare: {
		Stage:    StageCompare,
		Requires: []string{requiresFileID},
	},
	StageCompareDownload: {
		Stage:    StageCompareDownload,
		Requires: []string{requiresFileID, requiresReportID},
	},
	StageActivity: {
		Stage:    StageActivity,
		Requires: []string{requiresFileID, requiresReportID},
	},
	StageActivityDownload: {
		Stage:    StageActivityDownload,
		Requires: []string{requiresFileID, requiresReportID, requiresActivityID},
	},
}

// Available reports which report actions are currently enabled. A stage whose
// own request is in flight is disabled so the caller serializes per stage.
func Available(s State) map[Stage]bool {
	have := map[string]bool{
		requiresFileID:     s.FileID != "",
		requiresReportID:   s.ReportID != "",
		requiresActivityID: s.ActivityReportID != "",
	}

	out := make(map[Stage]bool, len(StageRegistry))
	for stage, def := range StageRegistry {
		ok := true
		for _, dep := range def.Requires {
			if !have[dep] {
				ok = false
				break
			}
		}
		out[stage] = ok
	}

	if s.Phase == PhaseComparing {
		out[StageCompare] = false
		out[StageActivity] = false
	}
	if s.Phase == PhaseGeneratingActivity {
		out[StageActivity] = false
	}
	return out
}

// AvailableStages lists the enabled stages in a stable order.
func AvailableStages(s State) []Stage {
	var out []Stage
	for stage, ok := range Available(s) {
		if ok {
			out = append(out, stage)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func validateActivity(req types.ActivityRequest) error {
	if err := req.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Month":
				return validationErr(StageActivity, "Select a month first.")
			case "StartDate", "EndDate":
				return validationErr(StageActivity, "Select both custom start and end dates.")
			case "TimeframeMode":
				return validationErr(StageActivity, "Timeframe mode must be month or custom.")
			}
		}
		return validationErr(StageActivity, "Invalid activity request: "+err.Error())
	}

	if _, err := req.Timeframe(); err != nil {
		switch {
		case errors.Is(err, types.ErrRangeInverted):
			return validationErr(StageActivity, "Custom start date cannot be after end date.")
		case req.TimeframeMode == types.TimeframeMonth:
			return validationErr(StageActivity, "Month must be YYYY-MM.")
		default:
			return validationErr(StageActivity, "Custom dates must be YYYY-MM-DD.")
		}
	}
	return nil
}
