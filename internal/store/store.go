// Package store implements the file-backed context store: an append-only
// per-day event log, daily note blobs, and the pin and entity side files.
//
// Layout under the base directory:
//
//	staging/<YYYY-MM-DD>.jsonl   append-only event log, one JSON object per line
//	daily/<YYYY-MM-DD>.md        daily note, whole-file overwrite
//	pins.jsonl                   pin records
//	entities.jsonl               knowledge entities
//
// The store assumes a single logical writer per base directory (one app
// instance). Mutations within a process are serialized by a mutex, but
// there is no cross-process locking: a second process racing a rewrite-all
// mutation (pins, entities) loses updates, last writer wins.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amberlabs/amber/internal/apperr"
	"github.com/amberlabs/amber/internal/models"
)

const (
	stagingDir   = "staging"
	dailyDir     = "daily"
	pinsFile     = "pins.jsonl"
	entitiesFile = "entities.jsonl"
)

// Store is a context store rooted at a base directory.
type Store struct {
	base string
	mu   sync.Mutex
}

// New creates a Store rooted at base, creating the staging and daily
// directories if absent.
func New(base string) (*Store, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("store: resolve base: %w", err)
	}
	for _, d := range []string{stagingDir, dailyDir} {
		if err := os.MkdirAll(filepath.Join(abs, d), 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s dir: %w", d, err)
		}
	}
	return &Store{base: abs}, nil
}

// Base returns the absolute base directory.
func (s *Store) Base() string { return s.base }

// validDate rejects anything that is not a bare YYYY-MM-DD date. Dates
// become file names, so this also blocks path traversal.
func validDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("store: %w: %q", apperr.ErrInvalidDate, date)
	}
	return nil
}

func (s *Store) stagingPath(date string) string {
	return filepath.Join(s.base, stagingDir, date+".jsonl")
}

func (s *Store) dailyPath(date string) string {
	return filepath.Join(s.base, dailyDir, date+".md")
}

// AppendEvent appends one JSON-encoded line to the date's log, creating the
// file if absent. The append is a single write call, so interleaved appends
// from concurrent callers stay line-atomic.
func (s *Store) AppendEvent(date string, event models.RawEvent) error {
	if err := validDate(date); err != nil {
		return err
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("store: encode event: %w", err)
	}
	f, err := os.OpenFile(s.stagingPath(date), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("store: open staging log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	return nil
}

// ReadEvents returns the raw lines of the date's log in append order.
// A date with no log yields an empty slice, not an error.
func (s *Store) ReadEvents(date string) ([]string, error) {
	if err := validDate(date); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.stagingPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("store: read staging log: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// ClearEvents deletes the date's log. Clearing a date with no log is a no-op.
func (s *Store) ClearEvents(date string) error {
	if err := validDate(date); err != nil {
		return err
	}
	if err := os.Remove(s.stagingPath(date)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: clear staging log: %w", err)
	}
	return nil
}

// WriteNote overwrites the date's daily note atomically.
func (s *Store) WriteNote(date, content string) error {
	if err := validDate(date); err != nil {
		return err
	}
	return s.writeAtomic(s.dailyPath(date), []byte(content))
}

// ReadNote returns the date's daily note. found is false when no note has
// been written yet; that is not an error.
func (s *Store) ReadNote(date string) (content string, found bool, err error) {
	if err := validDate(date); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(s.dailyPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: read daily note: %w", err)
	}
	return string(data), true, nil
}

// ListDates enumerates, in ascending order, every date that has either an
// event log or a daily note.
func (s *Store) ListDates() ([]string, error) {
	seen := make(map[string]struct{})
	collect := func(dir, suffix string) error {
		entries, err := os.ReadDir(filepath.Join(s.base, dir))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("store: list %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, suffix) {
				continue
			}
			date := strings.TrimSuffix(name, suffix)
			if validDate(date) != nil {
				continue
			}
			seen[date] = struct{}{}
		}
		return nil
	}
	if err := collect(stagingDir, ".jsonl"); err != nil {
		return nil, err
	}
	if err := collect(dailyDir, ".md"); err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

// writeAtomic writes content via tmp file, fsync, and rename.
func (s *Store) writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".amber-tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	success = true
	return nil
}

// readJSONLines decodes every well-formed line of a JSON-lines file into
// out's element type, silently skipping malformed lines. Absence is empty.
func readJSONLines[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", filepath.Base(path), err)
	}
	var out []T
	for _, l := range strings.Split(string(data), "\n") {
		if l == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(l), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// writeJSONLines rewrites a JSON-lines file wholesale, atomically.
func writeJSONLines[T any](s *Store, path string, items []T) error {
	var b strings.Builder
	for _, it := range items {
		line, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("store: encode %s record: %w", filepath.Base(path), err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return s.writeAtomic(path, []byte(b.String()))
}
