package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/nerrad567/sensorhub/internal/infrastructure/fsutil"
)

// FileStore keeps the registry in a single JSON object file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the registry file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the registry file. A missing file is an empty registry.
func (s *FileStore) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	bindings := map[string]string{}
	if err := json.Unmarshal(data, &bindings); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return bindings, nil
}

// Save rewrites the registry file atomically.
func (s *FileStore) Save(_ context.Context, bindings map[string]string) error {
	data, err := json.MarshalIndent(bindings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, data)
}
