package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/sensorhub/internal/infrastructure/fsutil"
)

const (
	historyExt     = ".json"
	dirPermissions = 0o750
)

// FileHistoryStore keeps one JSON array file per device in a directory.
type FileHistoryStore struct {
	dir string
}

// NewFileHistoryStore returns a store rooted at dir. The directory is
// created on first use.
func NewFileHistoryStore(dir string) *FileHistoryStore {
	return &FileHistoryStore{dir: dir}
}

// PathFor returns the history file for id.
func (s *FileHistoryStore) PathFor(id string) string {
	return filepath.Join(s.dir, id+historyExt)
}

// LoadAll reads every <id>.json in the directory. Hidden files (including
// leftover temp files) and subdirectories are skipped; an unreadable or
// corrupt history file is an error, since silently dropping it would lose
// data on the next rewrite.
func (s *FileHistoryStore) LoadAll(_ context.Context) (map[string][]Reading, error) {
	if err := os.MkdirAll(s.dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	out := make(map[string][]Reading)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, historyExt) {
			continue
		}
		id := strings.TrimSuffix(name, historyExt)

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		history := []Reading{}
		if err := json.Unmarshal(data, &history); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		out[id] = history
	}
	return out, nil
}

// Persist rewrites id's file with the complete history.
func (s *FileHistoryStore) Persist(_ context.Context, id string, history []Reading) error {
	if err := os.MkdirAll(s.dir, dirPermissions); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return fsutil.WriteFileAtomic(s.PathFor(id), data)
}
