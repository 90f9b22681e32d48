// Package importer discovers and normalizes session files written by AI
// coding-agent tools. Each tool keeps sessions in its own directory shape
// and JSON dialect; the importer turns the ones inside a cutoff window into
// store events.
package importer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/amberlabs/amber/internal/apperr"
	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/store"
)

// AllowedCutoffs is the closed set of cutoff windows, in days.
var AllowedCutoffs = []int{1, 7, 30, 90}

const (
	previewReadBytes    = 32 * 1024
	defaultPreviewLimit = 50
	importBatchCap      = 100
	maxSummaryMessages  = 20
	maxMessageChars     = 500
)

// agent describes one known tool. The set is closed: dispatch is by id,
// never by probing file contents.
type agent struct {
	id        string
	name      string
	supported bool // sqlite-backed stores are scanned but never imported
}

// agents is the fixed tool table, in scan order.
var agents = []agent{
	{id: "claude", name: "Claude", supported: true},
	{id: "codex", name: "Codex", supported: true},
	{id: "gemini", name: "Gemini", supported: true},
	{id: "cursor", name: "Cursor", supported: false},
	{id: "aider", name: "Aider", supported: true},
}

// defaultRoots returns each agent's session directory under the home dir.
func defaultRoots() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return map[string]string{
		"claude": filepath.Join(home, ".claude", "projects"),
		"codex":  filepath.Join(home, ".codex", "sessions"),
		"gemini": filepath.Join(home, ".gemini", "tmp"),
		"cursor": filepath.Join(home, ".cursor", "chats"),
		"aider":  filepath.Join(home, ".aider", "logs"),
	}
}

// Importer scans agent session directories and imports sessions into the store.
type Importer struct {
	store  *store.Store
	roots  map[string]string
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Importer. rootOverrides maps agent ids to session
// directories, replacing the default per-tool locations (used by config and
// tests); unknown keys are ignored.
func New(s *store.Store, logger *slog.Logger, rootOverrides map[string]string) *Importer {
	roots := defaultRoots()
	for id, root := range rootOverrides {
		if _, ok := roots[id]; ok && root != "" {
			roots[id] = root
		}
	}
	return &Importer{store: s, roots: roots, logger: logger, now: time.Now}
}

// lookup resolves an agent id, failing fast on unknown ids.
func lookup(agentID string) (agent, error) {
	for _, a := range agents {
		if a.id == agentID {
			return a, nil
		}
	}
	return agent{}, fmt.Errorf("importer: %w: %q", apperr.ErrUnknownAgent, agentID)
}

// validateCutoff checks a cutoff against the allowed set. Zero means "no
// cutoff" and is accepted only where the cutoff is optional.
func validateCutoff(cutoffDays int, optional bool) error {
	if cutoffDays == 0 && optional {
		return nil
	}
	for _, d := range AllowedCutoffs {
		if cutoffDays == d {
			return nil
		}
	}
	return fmt.Errorf("importer: %w: %d days", apperr.ErrInvalidCutoff, cutoffDays)
}

// Scan reports, for each known agent, whether its directory exists, how many
// session files fall inside the optional cutoff, and the oldest and newest
// session dates. A missing directory is "not found", never an error.
func (im *Importer) Scan(cutoffDays int) ([]models.AgentStatus, error) {
	if err := validateCutoff(cutoffDays, true); err != nil {
		return nil, err
	}
	statuses := make([]models.AgentStatus, 0, len(agents))
	for _, a := range agents {
		status := models.AgentStatus{ID: a.id, Name: a.name, Supported: a.supported}
		root := im.roots[a.id]
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			status.Found = true
			files := im.cutFiles(discover(a.id, root), cutoffDays)
			status.SessionCount = len(files)
			for _, f := range files {
				if status.Oldest == "" || f.Date < status.Oldest {
					status.Oldest = f.Date
				}
				if f.Date > status.Newest {
					status.Newest = f.Date
				}
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// cutFiles filters session files by modification time and sorts them
// newest-first. A zero cutoff keeps everything.
func (im *Importer) cutFiles(files []models.SessionFile, cutoffDays int) []models.SessionFile {
	kept := files
	if cutoffDays > 0 {
		cutoff := im.now().AddDate(0, 0, -cutoffDays)
		kept = kept[:0]
		for _, f := range files {
			if !f.MTime.Before(cutoff) {
				kept = append(kept, f)
			}
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].MTime.After(kept[j].MTime) })
	return kept
}
