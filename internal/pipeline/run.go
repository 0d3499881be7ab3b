package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/sheetreport/internal/types"
)

// ErrStale is returned when a response arrives after a newer request for the
// same stage replaced it. The response is dropped.
var ErrStale = errors.New("result discarded: superseded by a newer request")

// Level classifies a progress event for display.
type Level string

// Progress levels.
const (
	LevelInfo Level = "info"
	LevelGood Level = "good"
	LevelBad  Level = "bad"
)

// ProgressEvent represents a status update during a report action
type ProgressEvent struct {
	Stage   Stage  `json:"stage"`
	Phase   Phase  `json:"phase"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when a report action makes progress
type ProgressCallback func(event ProgressEvent)

// API is the subset of the reporting API the report chain uses.
type API interface {
	Compare(ctx context.Context, fileID, path string) (*types.CompareResult, error)
	GenerateActivity(ctx context.Context, fileID, reportID string, req types.ActivityRequest) (*types.ActivityResult, error)
	DownloadCompare(ctx context.Context, fileID, reportID string) (*types.Download, error)
	DownloadActivity(ctx context.Context, fileID, reportID, activityReportID string) (*types.Download, error)
}

// Store persists pipeline state between actions, keyed by file id.
type Store interface {
	LoadPipeline(ctx context.Context, fileID string) (State, error)
	SavePipeline(ctx context.Context, fileID string, s State) error
}

// Saver writes a downloaded report somewhere the user can open it and
// returns where it went.
type Saver interface {
	Save(ctx context.Context, filename string, body []byte) (string, error)
}

// RunOptions holds optional collaborators for a Runner
type RunOptions struct {
	Logger     logrus.FieldLogger
	OnProgress ProgressCallback
}

// Runner binds user actions to transitions: load state, begin, persist,
// call the API, reload, complete or fail, persist, report progress.
type Runner struct {
	api        API
	store      Store
	saver      Saver
	log        logrus.FieldLogger
	onProgress ProgressCallback
}

// NewRunner creates a Runner.
func NewRunner(api API, store Store, saver Saver, opts RunOptions) *Runner {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{
		api:        api,
		store:      store,
		saver:      saver,
		log:        log,
		onProgress: opts.OnProgress,
	}
}

// emitProgress calls the progress callback if configured
func (r *Runner) emitProgress(stage Stage, phase Phase, level Level, message string, content any) {
	if r.onProgress != nil {
		r.onProgress(ProgressEvent{
			Stage:   stage,
			Phase:   phase,
			Level:   level,
			Message: message,
			Content: content,
		})
	}
}

// Status returns the persisted state for a dataset.
func (r *Runner) Status(ctx context.Context, fileID string) (State, error) {
	s, err := r.store.LoadPipeline(ctx, fileID)
	if err != nil {
		return State{}, fmt.Errorf("failed to load pipeline state: %w", err)
	}
	return s, nil
}

// Reset clears every report identifier for a dataset.
func (r *Runner) Reset(ctx context.Context, fileID string) (State, error) {
	s, err := r.Status(ctx, fileID)
	if err != nil {
		return State{}, err
	}
	s = Reset(s)
	if err := r.store.SavePipeline(ctx, fileID, s); err != nil {
		return State{}, fmt.Errorf("failed to save pipeline state: %w", err)
	}
	return s, nil
}

// Compare uploads a second file and compares it with the dataset.
func (r *Runner) Compare(ctx context.Context, fileID, path string) (State, error) {
	s, err := r.Status(ctx, fileID)
	if err != nil {
		return State{}, err
	}

	name := ""
	if strings.TrimSpace(path) != "" {
		name = filepath.Base(path)
	}

	next, ticket, err := BeginCompare(s, name)
	if err != nil {
		r.emitProgress(StageCompare, s.Phase, LevelBad, StageMessage(StageCompare, err), nil)
		return s, err
	}
	if err := r.store.SavePipeline(ctx, fileID, next); err != nil {
		return s, fmt.Errorf("failed to save pipeline state: %w", err)
	}

	log := r.log.WithFields(logrus.Fields{"file_id": fileID, "stage": StageCompare, "epoch": ticket.Epoch})
	r.emitProgress(StageCompare, next.Phase, LevelInfo, "Uploading compare file...", nil)

	result, callErr := r.api.Compare(ctx, fileID, path)

	// The call may have been cancelled; persisting its outcome must not be.
	storeCtx := context.WithoutCancel(ctx)
	latest, err := r.store.LoadPipeline(storeCtx, fileID)
	if err != nil {
		return next, fmt.Errorf("failed to reload pipeline state: %w", err)
	}

	if callErr != nil {
		applied, ok := FailCompare(latest, ticket, callErr)
		if !ok {
			log.WithError(callErr).Info("stale compare failure ignored")
			return latest, callErr
		}
		if err := r.store.SavePipeline(storeCtx, fileID, applied); err != nil {
			return applied, fmt.Errorf("failed to save pipeline state: %w", err)
		}
		log.WithError(callErr).Warn("compare failed")
		r.emitProgress(StageCompare, applied.Phase, LevelBad, applied.LastError, nil)
		return applied, callErr
	}

	applied, ok := CompleteCompare(latest, ticket, *result)
	if !ok {
		log.WithField("current_epoch", latest.CompareEpoch).Info("stale compare result discarded")
		r.emitProgress(StageCompare, latest.Phase, LevelInfo, "Compare result discarded: a newer compare was started.", nil)
		return latest, ErrStale
	}
	if err := r.store.SavePipeline(storeCtx, fileID, applied); err != nil {
		return applied, fmt.Errorf("failed to save pipeline state: %w", err)
	}

	if result.Direct != nil {
		filename := result.Direct.Filename
		if filename == "" {
			filename = DefaultCompareFilename
		}
		location, err := r.saver.Save(ctx, filename, result.Direct.Body)
		if err != nil {
			r.emitProgress(StageCompare, applied.Phase, LevelBad, fmt.Sprintf("Download failed: %v", err), nil)
			return applied, fmt.Errorf("failed to save compare report: %w", err)
		}
		r.emitProgress(StageCompare, applied.Phase, LevelGood, "Compare complete. Report saved to "+location, nil)
		return applied, nil
	}

	log.WithField("report_id", applied.ReportID).Info("compare complete")
	r.emitProgress(StageCompare, applied.Phase, LevelGood, "Compare complete. Preview generated below.", applied.Compare)
	return applied, nil
}

// GenerateActivity requests a monthly activity preview for the current
// compare report.
func (r *Runner) GenerateActivity(ctx context.Context, fileID string, req types.ActivityRequest) (State, error) {
	s, err := r.Status(ctx, fileID)
	if err != nil {
		return State{}, err
	}

	next, ticket, req, err := BeginActivity(s, req)
	if err != nil {
		r.emitProgress(StageActivity, s.Phase, LevelBad, StageMessage(StageActivity, err), nil)
		return s, err
	}
	if err := r.store.SavePipeline(ctx, fileID, next); err != nil {
		return s, fmt.Errorf("failed to save pipeline state: %w", err)
	}

	log := r.log.WithFields(logrus.Fields{
		"file_id":   fileID,
		"stage":     StageActivity,
		"epoch":     ticket.Epoch,
		"report_id": ticket.ReportID,
	})
	r.emitProgress(StageActivity, next.Phase, LevelInfo, "Generating monthly activity preview...", nil)

	result, callErr := r.api.GenerateActivity(ctx, fileID, ticket.ReportID, req)

	storeCtx := context.WithoutCancel(ctx)
	latest, err := r.store.LoadPipeline(storeCtx, fileID)
	if err != nil {
		return next, fmt.Errorf("failed to reload pipeline state: %w", err)
	}

	if callErr != nil {
		applied, ok := FailActivity(latest, ticket, callErr)
		if !ok {
			log.WithError(callErr).Info("stale activity failure ignored")
			return latest, callErr
		}
		if err := r.store.SavePipeline(storeCtx, fileID, applied); err != nil {
			return applied, fmt.Errorf("failed to save pipeline state: %w", err)
		}
		log.WithError(callErr).Warn("activity generation failed")
		r.emitProgress(StageActivity, applied.Phase, LevelBad, applied.LastError, nil)
		return applied, callErr
	}

	applied, ok := CompleteActivity(latest, ticket, req, *result)
	if !ok {
		log.Info("stale activity result discarded")
		r.emitProgress(StageActivity, latest.Phase, LevelInfo, "Activity result discarded: the compare report or request changed.", nil)
		return latest, ErrStale
	}
	if err := r.store.SavePipeline(storeCtx, fileID, applied); err != nil {
		return applied, fmt.Errorf("failed to save pipeline state: %w", err)
	}

	log.WithField("activity_report_id", applied.ActivityReportID).Info("activity preview ready")
	r.emitProgress(StageActivity, applied.Phase, LevelGood, "Monthly activity preview ready.", applied.Activity)
	return applied, nil
}

// Download fetches a finished report and hands it to the saver. It never
// changes pipeline state, whether it succeeds or fails.
func (r *Runner) Download(ctx context.Context, fileID string, kind ReportKind) (string, error) {
	s, err := r.Status(ctx, fileID)
	if err != nil {
		return "", err
	}

	target, err := PrepareDownload(s, kind)
	if err != nil {
		r.emitProgress(StageDownload, s.Phase, LevelBad, StageMessage(StageDownload, err), nil)
		return "", err
	}

	var download *types.Download
	switch kind {
	case KindActivity:
		r.emitProgress(StageActivityDownload, PhaseDownloading, LevelInfo, "Preparing monthly activity download...", nil)
		download, err = r.api.DownloadActivity(ctx, target.FileID, target.ReportID, target.ActivityReportID)
	default:
		r.emitProgress(StageCompareDownload, PhaseDownloading, LevelInfo, "Preparing download...", nil)
		download, err = r.api.DownloadCompare(ctx, target.FileID, target.ReportID)
	}
	if err != nil {
		r.log.WithError(err).WithField("kind", kind).Warn("download failed")
		r.emitProgress(StageDownload, s.Phase, LevelBad, StageMessage(StageDownload, err), nil)
		return "", err
	}

	filename := download.Filename
	if filename == "" {
		filename = target.DefaultName
	}

	location, err := r.saver.Save(ctx, filename, download.Body)
	if err != nil {
		r.emitProgress(StageDownload, s.Phase, LevelBad, fmt.Sprintf("Download failed: %v", err), nil)
		return "", fmt.Errorf("failed to save %s: %w", filename, err)
	}

	message := "Download saved to " + location
	if kind == KindActivity {
		message = "Monthly activity download saved to " + location
	}
	r.emitProgress(StageDownload, s.Phase, LevelGood, message, nil)
	return location, nil
}
