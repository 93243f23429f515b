package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kholzweiler/planfreeze/pkg/errors"
	"github.com/kholzweiler/planfreeze/pkg/observability"
)

// FileStore archives runs as JSON files in a directory. It is meant for CLI
// use where a database is overkill but runs should survive the process.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-backed store rooted at baseDir. If baseDir is
// empty, runs go to ~/.local/share/planfreeze/runs/.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "get home dir")
		}
		baseDir = filepath.Join(home, ".local", "share", "planfreeze", "runs")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "create run dir %s", baseDir)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) runPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// Put archives a run, replacing any run with the same id.
func (s *FileStore) Put(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "run id cannot be empty")
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "marshal run %s", run.ID)
	}

	s.mu.Lock()
	err = os.WriteFile(s.runPath(run.ID), data, 0o600)
	s.mu.Unlock()
	if err != nil {
		wrapped := errors.Wrap(errors.ErrCodeStore, err, "write run %s", run.ID)
		observability.Store().OnStoreError(ctx, "put", wrapped)
		return wrapped
	}

	observability.Store().OnRunSaved(ctx, run.ID, len(data))
	return nil
}

// Get fetches a run by id.
func (s *FileStore) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	data, err := os.ReadFile(s.runPath(id))
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeRunNotFound, "run %s not found", id)
		}
		wrapped := errors.Wrap(errors.ErrCodeStore, err, "read run %s", id)
		observability.Store().OnStoreError(ctx, "get", wrapped)
		return nil, wrapped
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "parse run %s", id)
	}

	observability.Store().OnRunLoaded(ctx, id)
	return &run, nil
}

// List returns the most recent runs, newest first. Files that fail to parse
// are skipped rather than failing the whole listing.
func (s *FileStore) List(ctx context.Context, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		wrapped := errors.Wrap(errors.ErrCodeStore, err, "read run dir %s", s.baseDir)
		observability.Store().OnStoreError(ctx, "list", wrapped)
		return nil, wrapped
	}

	out := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			continue
		}
		out = append(out, Summarize(&run))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close(ctx context.Context) error { return nil }

// Path returns the directory holding the run files.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
