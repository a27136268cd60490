package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

// SnapshotSource produces ledger snapshots for scheduled syncs
type SnapshotSource interface {
	Name() string
	Fetch(ctx context.Context) (ledger.Snapshot, error)
}

// FileSource reads the JSON file the scraper writes after each scrape
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name identifies the source in logs
func (f *FileSource) Name() string {
	return "file:" + f.path
}

// Fetch reads and decodes the snapshot file
func (f *FileSource) Fetch(ctx context.Context) (ledger.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Snapshot{}, err
	}
	return ReadSnapshotFile(f.path)
}

// ReadSnapshotFile decodes a snapshot from a JSON file
func ReadSnapshotFile(path string) (ledger.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return snap, nil
}
