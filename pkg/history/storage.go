package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"lsd-bridge/pkg/types"
)

const (
	DefaultStorageFileName = ".lsd-bridge-history.json"
)

// Storage is the journal of finished workflow runs.
type Storage struct {
	filePath string
	mu       sync.RWMutex
	runs     map[string]*types.Run
}

// journal is the JSON structure on disk.
type journal struct {
	Runs map[string]*types.Run `json:"runs"`
}

// NewStorage opens the journal at filePath, defaulting to the home
// directory.
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	storage := &Storage{
		filePath: filePath,
		runs:     make(map[string]*types.Run),
	}

	// A missing file is fine, it is created on the first record.
	if err := storage.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load run history: %w", err)
		}
	}

	return storage, nil
}

// load reads runs from the storage file.
func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("failed to unmarshal run history: %w", err)
	}

	s.runs = j.Runs
	if s.runs == nil {
		s.runs = make(map[string]*types.Run)
	}

	return nil
}

// save writes runs to the storage file.
func (s *Storage) save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(journal{Runs: s.runs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write run history: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Record persists a run, overwriting any previous entry with the same id.
func (s *Storage) Record(run *types.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	return s.save()
}

// Get retrieves a run by id.
func (s *Storage) Get(id string) (*types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run '%s' not found", id)
	}

	return run, nil
}

// List returns all runs, most recent first.
func (s *Storage) List() []*types.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*types.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs
}

// ListByDirection returns runs filtered by direction, most recent first.
func (s *Storage) ListByDirection(direction types.Direction) []*types.Run {
	all := s.List()
	runs := make([]*types.Run, 0)
	for _, run := range all {
		if run.Direction == direction {
			runs = append(runs, run)
		}
	}

	return runs
}

// Count returns the total number of recorded runs.
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.runs)
}

// GetFilePath returns the storage file path.
func (s *Storage) GetFilePath() string {
	return s.filePath
}
