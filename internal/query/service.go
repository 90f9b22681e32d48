// Package query serves date-scoped and full-text reads derived from the
// event store. There is no index: every view is a bounded linear scan.
package query

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/store"
)

const defaultSearchLimit = 50

// Collector is an out-of-band producer of context entries for a date
// (browser history, notes). Collectors fail soft: an erroring collector
// contributes nothing.
type Collector interface {
	Name() string
	EntriesForDate(date string) ([]models.ContextEntry, error)
}

// Service answers UI reads over the store.
type Service struct {
	store      *store.Store
	collectors []Collector
	logger     *slog.Logger
}

// NewService creates a query service over the store and collectors.
func NewService(s *store.Store, logger *slog.Logger, collectors ...Collector) *Service {
	return &Service{store: s, collectors: collectors, logger: logger}
}

// EntriesForDate projects the date's raw events into context entries,
// unions in collector entries, sorts descending by timestamp, and joins
// pin state by exact fingerprint.
func (s *Service) EntriesForDate(date string) ([]models.ContextEntry, error) {
	lines, err := s.store.ReadEvents(date)
	if err != nil {
		return nil, err
	}
	entries := make([]models.ContextEntry, 0, len(lines))
	for _, line := range lines {
		var ev models.RawEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		entries = append(entries, projectEntry(ev))
	}

	for _, c := range s.collectors {
		extra, err := c.EntriesForDate(date)
		if err != nil {
			s.logger.Warn("query: collector failed",
				slog.String("collector", c.Name()),
				slog.String("date", date),
				slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, extra...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if err := s.joinPins(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// joinPins marks entries whose fingerprint matches a pin. Matching is
// exact (source, timestamp, kind); a pin whose entry is gone simply stays
// unmatched.
func (s *Service) joinPins(entries []models.ContextEntry) error {
	pins, err := s.store.ListPins()
	if err != nil {
		return err
	}
	if len(pins) == 0 {
		return nil
	}
	byFingerprint := make(map[string]string, len(pins))
	for _, p := range pins {
		byFingerprint[p.Fingerprint()] = p.ID
	}
	for i := range entries {
		if id, ok := byFingerprint[models.EntryFingerprint(entries[i])]; ok {
			entries[i].Pinned = true
			entries[i].PinID = id
		}
	}
	return nil
}

// SearchResult is one search hit with the date it was found on.
type SearchResult struct {
	Date  string              `json:"date"`
	Entry models.ContextEntry `json:"entry"`
}

// Search scans dates newest-first for a case-insensitive substring match,
// stopping as soon as limit results are collected. It is deliberately
// non-exhaustive: a latency-bounded scan, not a ranked index.
func (s *Service) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	dates, err := s.store.ListDates()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	results := make([]SearchResult, 0, limit)
	for i := len(dates) - 1; i >= 0 && len(results) < limit; i-- {
		lines, err := s.store.ReadEvents(dates[i])
		if err != nil {
			continue
		}
		for _, line := range lines {
			if len(results) >= limit {
				break
			}
			if !strings.Contains(strings.ToLower(line), needle) {
				continue
			}
			var ev models.RawEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				continue
			}
			results = append(results, SearchResult{Date: dates[i], Entry: projectEntry(ev)})
		}
	}
	return results, nil
}

// EntryCounts returns the event line count per date. It is a coarse
// density signal for the calendar heatmap, not a row-count guarantee.
func (s *Service) EntryCounts() (map[string]int, error) {
	dates, err := s.store.ListDates()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(dates))
	for _, d := range dates {
		lines, err := s.store.ReadEvents(d)
		if err != nil {
			continue
		}
		if len(lines) > 0 {
			counts[d] = len(lines)
		}
	}
	return counts, nil
}

// Pin records a pin for an entry, keyed by the entry's fingerprint fields.
func (s *Service) Pin(entry models.ContextEntry, note string) (models.PinRecord, error) {
	pin := models.PinRecord{
		ID:          uuid.NewString(),
		Timestamp:   entry.Timestamp,
		Source:      entry.Source,
		Kind:        entry.Kind,
		Date:        entry.Timestamp.Format(models.DateLayout),
		Title:       entry.Title,
		Detail:      entry.Detail,
		ProjectPath: entry.ProjectPath,
		Data:        entry.Data,
		Note:        note,
	}
	if err := s.store.AddPin(pin); err != nil {
		return models.PinRecord{}, err
	}
	return pin, nil
}

// Unpin removes a pin by id.
func (s *Service) Unpin(id string) error {
	return s.store.RemovePin(id)
}

// Pins lists all pins.
func (s *Service) Pins() ([]models.PinRecord, error) {
	return s.store.ListPins()
}

// projectEntry derives UI-facing title/detail/projectPath fields from a raw
// event, deterministically by source and kind.
func projectEntry(ev models.RawEvent) models.ContextEntry {
	entry := models.ContextEntry{
		Source:    ev.Source,
		Timestamp: ev.Timestamp,
		Kind:      ev.Kind,
		Data:      ev.Data,
	}
	switch ev.Kind {
	case models.KindCommit:
		entry.Title = dataString(ev.Data, "subject")
		repo := dataString(ev.Data, "repo")
		hash := dataString(ev.Data, "hash")
		if len(hash) > 7 {
			hash = hash[:7]
		}
		entry.Detail = strings.TrimSpace(filepath.Base(repo) + " " + hash)
		entry.ProjectPath = repo
	case models.KindSession:
		entry.Title = dataString(ev.Data, "title")
		entry.Detail = firstLine(dataString(ev.Data, "summary"))
		entry.ProjectPath = dataString(ev.Data, "project")
	case models.KindBrowse:
		entry.Title = dataString(ev.Data, "title")
		entry.Detail = dataString(ev.Data, "url")
		if entry.Title == "" {
			entry.Title = entry.Detail
		}
	default:
		entry.Title = dataString(ev.Data, "title")
		entry.Detail = dataString(ev.Data, "detail")
	}
	if entry.Title == "" {
		entry.Title = fmt.Sprintf("%s %s", ev.Source, ev.Kind)
	}
	return entry
}

func dataString(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
