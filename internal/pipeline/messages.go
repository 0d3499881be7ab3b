package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/sheetreport/internal/transport"
	"github.com/jonathan/sheetreport/internal/types"
)

// CompareSummary describes a compare result, noting when the preview was truncated.
func CompareSummary(r types.CompareResult) string {
	return fmt.Sprintf("Compared %d businesses. Found %d inactive/not-seen businesses.%s",
		r.ComparedCount, r.InactiveCount, previewSuffix(r.PreviewTotal, r.PreviewLimit))
}

// ActivityLabel picks the display label for an activity result: the server's
// label, else the requested month or custom range.
func ActivityLabel(req types.ActivityRequest, r types.ActivityResult) string {
	if label := strings.TrimSpace(r.TimeframeLabel); label != "" {
		return label
	}
	if tf, err := req.Timeframe(); err == nil {
		return tf.Label()
	}
	return ""
}

// ActivitySummary describes an activity result.
func ActivitySummary(req types.ActivityRequest, r types.ActivityResult) string {
	activityType := r.ActivityType
	if activityType == "" {
		activityType = req.ActivityType
	}
	return fmt.Sprintf("%s | Type: %s | Rows: %d.%s",
		ActivityLabel(req, r), strings.ToUpper(activityType), r.TotalRows, previewSuffix(r.PreviewTotal, r.PreviewLimit))
}

// previewSuffix is non-empty only when the server matched more rows than it returned.
func previewSuffix(total, limit int) string {
	shown := min(limit, total)
	if total > shown {
		return fmt.Sprintf(" Showing first %d row(s).", shown)
	}
	return ""
}

// StageMessage turns a failure into the status line shown to the user.
// Timeouts read differently from rejections so "server unreachable" and
// "server rejected input" are easy to tell apart.
func StageMessage(stage Stage, err error) string {
	if err == nil {
		return ""
	}

	label := stageLabel(stage)

	var (
		validationErr *ValidationError
		httpErr       *transport.HTTPError
		networkErr    *transport.NetworkError
	)
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case transport.IsTimeout(err):
		return label + " timed out (backend not responding)"
	case errors.As(err, &httpErr):
		if msg, ok := httpErr.Payload["error"].(string); ok && msg != "" {
			return msg
		}
		return fmt.Sprintf("%s failed (%d)", label, httpErr.Status)
	case errors.As(err, &networkErr):
		return fmt.Sprintf("%s failed: %s", label, networkErr.Error())
	default:
		return fmt.Sprintf("%s failed: %v", label, err)
	}
}

func stageLabel(stage Stage) string {
	switch stage {
	case StageUpload:
		return "Upload"
	case StageQuery:
		return "Query"
	case StageAgents:
		return "Agents"
	case StageExport:
		return "Export"
	case StageCompare:
		return "Compare"
	case StageActivity:
		return "Activity preview"
	case StageDownload, StageCompareDownload, StageActivityDownload:
		return "Download"
	case "":
		return "Request"
	default:
		return strings.ToUpper(string(stage[:1])) + string(stage[1:])
	}
}
