// Package collectors holds out-of-band context-entry producers that sit
// beside the event store: simple single-format readers over other tools'
// data files.
package collectors

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amberlabs/amber/internal/models"
)

// Microseconds between the Chromium epoch (1601-01-01) and the Unix epoch.
const chromiumEpochOffset = 11644473600

// BrowserHistory reads page visits from a Chromium History database.
// The browser keeps the database locked while running, so each read works
// on a temp copy opened immutable.
type BrowserHistory struct {
	dbPath string
}

// NewBrowserHistory creates a collector over the given History database
// path (e.g. ~/Library/Application Support/Google/Chrome/Default/History).
func NewBrowserHistory(dbPath string) *BrowserHistory {
	return &BrowserHistory{dbPath: dbPath}
}

// Name implements query.Collector.
func (b *BrowserHistory) Name() string { return "browser" }

// EntriesForDate returns one browse entry per URL visited on the date.
// A missing database means no entries, not an error.
func (b *BrowserHistory) EntriesForDate(date string) ([]models.ContextEntry, error) {
	if _, err := os.Stat(b.dbPath); err != nil {
		return nil, nil
	}
	day, err := time.ParseInLocation(models.DateLayout, date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("collectors: browser: %w", err)
	}

	snapshot, cleanup, err := b.snapshot()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := sql.Open("sqlite3", "file:"+snapshot+"?immutable=1&mode=ro")
	if err != nil {
		return nil, fmt.Errorf("collectors: browser: open: %w", err)
	}
	defer db.Close()

	from := chromiumMicros(day)
	to := chromiumMicros(day.AddDate(0, 0, 1))
	rows, err := db.Query(`
		SELECT url, title, last_visit_time
		FROM urls
		WHERE last_visit_time >= ? AND last_visit_time < ?
		ORDER BY last_visit_time DESC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("collectors: browser: query: %w", err)
	}
	defer rows.Close()

	var entries []models.ContextEntry
	for rows.Next() {
		var url, title string
		var visitTime int64
		if err := rows.Scan(&url, &title, &visitTime); err != nil {
			return nil, fmt.Errorf("collectors: browser: scan: %w", err)
		}
		ts := chromiumTime(visitTime)
		entries = append(entries, models.ContextEntry{
			Source:    "browser",
			Timestamp: ts,
			Kind:      models.KindBrowse,
			Title:     title,
			Detail:    url,
			Data:      map[string]any{"url": url, "title": title},
		})
	}
	return entries, rows.Err()
}

// snapshot copies the live database to a temp file the browser is not
// holding open.
func (b *BrowserHistory) snapshot() (path string, cleanup func(), err error) {
	src, err := os.Open(b.dbPath)
	if err != nil {
		return "", nil, fmt.Errorf("collectors: browser: open history: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "amber-history-*"+filepath.Ext(b.dbPath))
	if err != nil {
		return "", nil, fmt.Errorf("collectors: browser: create temp: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("collectors: browser: copy history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("collectors: browser: close temp: %w", err)
	}
	name := tmp.Name()
	return name, func() { os.Remove(name) }, nil
}

func chromiumMicros(t time.Time) int64 {
	return (t.Unix() + chromiumEpochOffset) * 1_000_000
}

func chromiumTime(micros int64) time.Time {
	return time.Unix(micros/1_000_000-chromiumEpochOffset, (micros%1_000_000)*1000)
}
