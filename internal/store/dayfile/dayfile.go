// Package dayfile persists standup records as a day-partitioned JSON file
// tree: <root>/YYYY/MM/DD.json, one array of records per day.
package dayfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/standvox/standvox/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is a file-tree backed [store.Store].
type Store struct {
	root string
}

// New creates a Store rooted at dir. The directory tree is created lazily on
// the first save.
func New(dir string) *Store {
	return &Store{root: dir}
}

// dayPath returns <root>/YYYY/MM/DD.json for the given day.
func (s *Store) dayPath(day time.Time) string {
	return filepath.Join(s.root,
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("%02d.json", day.Day()),
	)
}

// SaveDay implements [store.Store]. It overwrites the day's file with the
// full record set, creating parent directories as needed.
func (s *Store) SaveDay(_ context.Context, day time.Time, records []store.DayRecord) error {
	path := s.dayPath(day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dayfile store: create %s: %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("dayfile store: encode records: %w", err)
	}

	// Write-then-rename so a crash mid-save cannot truncate the day's file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dayfile store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("dayfile store: rename %s: %w", tmp, err)
	}
	return nil
}

// LoadDay implements [store.Store]. A missing file yields an empty slice.
func (s *Store) LoadDay(_ context.Context, day time.Time) ([]store.DayRecord, error) {
	path := s.dayPath(day)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []store.DayRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dayfile store: read %s: %w", path, err)
	}

	var records []store.DayRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("dayfile store: decode %s: %w", path, err)
	}
	return records, nil
}

// LoadPrevious implements [store.Store].
func (s *Store) LoadPrevious(ctx context.Context, day time.Time) ([]store.DayRecord, error) {
	return s.LoadDay(ctx, day.AddDate(0, 0, -1))
}
