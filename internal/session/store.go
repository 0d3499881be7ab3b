// Package session persists the client's per-dataset state (dashboard filter
// and report chain) between CLI invocations.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/query"
	"github.com/jonathan/sheetreport/internal/types"
)

// CurrentKey holds a pointer snapshot naming the dataset in use.
const CurrentKey = "_current"

// ErrNoCurrent is returned when no dataset has been uploaded or selected yet.
var ErrNoCurrent = errors.New("no dataset selected: run upload first or pass --file-id")

// Snapshot is everything the client remembers about one dataset.
type Snapshot struct {
	FileID    string         `json:"file_id"`
	Dataset   *types.Dataset `json:"dataset,omitempty"`
	Query     query.State    `json:"query"`
	Pipeline  pipeline.State `json:"pipeline"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSnapshot returns the state for a dataset nothing has been stored for.
func NewSnapshot(fileID string) *Snapshot {
	return &Snapshot{
		FileID:   fileID,
		Query:    query.Default(),
		Pipeline: pipeline.New(fileID),
	}
}

// Store persists snapshots by key. Loading a missing key returns a fresh
// snapshot, not an error.
type Store interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, snap *Snapshot) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("session key is required")
	}
	return nil
}

func encode(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

func decode(key string, data []byte) (*Snapshot, error) {
	snap := NewSnapshot(key)
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", key, err)
	}
	return snap, nil
}

// SetCurrent records fileID as the dataset in use.
func SetCurrent(ctx context.Context, s Store, fileID string) error {
	return s.Save(ctx, CurrentKey, &Snapshot{FileID: fileID, UpdatedAt: time.Now().UTC()})
}

// Current returns the dataset in use, or ErrNoCurrent.
func Current(ctx context.Context, s Store) (string, error) {
	snap, err := s.Load(ctx, CurrentKey)
	if err != nil {
		return "", err
	}
	if snap.FileID == "" || snap.FileID == CurrentKey {
		return "", ErrNoCurrent
	}
	return snap.FileID, nil
}

// ResolveFileID returns explicit when set, else the current dataset.
func ResolveFileID(ctx context.Context, s Store, explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	return Current(ctx, s)
}

// update reloads the snapshot for fileID, applies fn and saves it. Each
// writer replaces only its own part so a concurrent writer's part survives.
func update(ctx context.Context, s Store, fileID string, fn func(*Snapshot)) error {
	snap, err := s.Load(ctx, fileID)
	if err != nil {
		return err
	}
	snap.FileID = fileID
	fn(snap)
	snap.UpdatedAt = time.Now().UTC()
	return s.Save(ctx, fileID, snap)
}

// SaveQuery replaces the dashboard state and keeps the rest of the snapshot.
func SaveQuery(ctx context.Context, s Store, fileID string, q query.State) error {
	return update(ctx, s, fileID, func(snap *Snapshot) {
		snap.Query = q
	})
}

// SaveDataset replaces the dataset metadata and dashboard state and keeps the
// report chain.
func SaveDataset(ctx context.Context, s Store, ds *types.Dataset, q query.State) error {
	return update(ctx, s, ds.FileID, func(snap *Snapshot) {
		snap.Dataset = ds
		snap.Query = q
	})
}

// Forget drops the dataset metadata and dashboard state and resets the report
// chain. The epochs stay, so a request started before forgetting can never
// match a later one.
func Forget(ctx context.Context, s Store, fileID string) error {
	return update(ctx, s, fileID, func(snap *Snapshot) {
		snap.Dataset = nil
		snap.Query = query.Default()
		if snap.Pipeline.FileID == "" {
			snap.Pipeline = pipeline.New(fileID)
		}
		snap.Pipeline = pipeline.Reset(snap.Pipeline)
	})
}

// PipelineStore exposes the report chain part of a Store to pipeline.Runner.
type PipelineStore struct {
	Store Store
}

var _ pipeline.Store = PipelineStore{}

// LoadPipeline returns the stored report chain for a dataset.
func (p PipelineStore) LoadPipeline(ctx context.Context, fileID string) (pipeline.State, error) {
	snap, err := p.Store.Load(ctx, fileID)
	if err != nil {
		return pipeline.State{}, err
	}
	if snap.Pipeline.FileID == "" {
		snap.Pipeline = pipeline.New(fileID)
	}
	return snap.Pipeline, nil
}

// SavePipeline replaces the report chain and keeps the rest of the snapshot.
func (p PipelineStore) SavePipeline(ctx context.Context, fileID string, s pipeline.State) error {
	return update(ctx, p.Store, fileID, func(snap *Snapshot) {
		snap.Pipeline = s
	})
}
