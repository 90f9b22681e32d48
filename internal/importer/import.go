package importer

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/amberlabs/amber/internal/models"
)

// ProgressFunc receives a cumulative snapshot after every processed file.
// The importer does not process the next file until the callback returns.
type ProgressFunc func(models.ImportProgress)

// Import converts every session file inside the cutoff window into one
// `session` event on the file's calendar date. The batch is capped at 100
// files, newest first. Per-file failures are skipped, never fatal; unknown
// agent ids and cutoffs outside {1,7,30,90} reject before any filesystem
// access. Sqlite-backed agents count as processed but are never imported.
//
// Import is monotone: re-running it for the same window re-appends; nothing
// deduplicates across runs.
func (im *Importer) Import(agentID string, cutoffDays int, onProgress ProgressFunc) (models.ImportProgress, error) {
	a, err := lookup(agentID)
	if err != nil {
		return models.ImportProgress{}, err
	}
	if err := validateCutoff(cutoffDays, false); err != nil {
		return models.ImportProgress{}, err
	}

	files := im.cutFiles(discover(a.id, im.roots[a.id]), cutoffDays)
	if len(files) > importBatchCap {
		files = files[:importBatchCap]
	}

	progress := models.ImportProgress{AgentID: a.id, Total: len(files), Dates: []string{}}
	dates := make(map[string]struct{})

	for _, f := range files {
		progress.Processed++
		if a.supported {
			if im.importOne(a, f) {
				progress.Imported++
				dates[f.Date] = struct{}{}
				progress.Dates = sortedKeys(dates)
			}
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}
	return progress, nil
}

// importOne summarizes one session file and appends its event. Reports
// whether an event was written.
func (im *Importer) importOne(a agent, f models.SessionFile) bool {
	summary, cwd := extractTranscript(f.Path)
	if summary == "" || summary == unreadableSummary {
		return false
	}
	project := projectLabel(a.id, f.Path, cwd)
	event := models.RawEvent{
		Source:    a.id,
		Timestamp: f.MTime,
		Kind:      models.KindSession,
		Data: map[string]any{
			"title":       a.name + " session: " + project,
			"summary":     summary,
			"project":     project,
			"sessionPath": f.Path,
		},
	}
	if err := im.store.AppendEvent(f.Date, event); err != nil {
		im.logger.Warn("import: append failed",
			slog.String("agent", a.id),
			slog.String("path", f.Path),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// extractTranscript builds a bounded, role-labeled summary of a session:
// at most 20 attributed user/assistant messages, each truncated to 500
// characters. Blank and unparseable lines are skipped silently. Returns the
// working directory as a side channel when the format carries one.
func extractTranscript(path string) (summary, cwd string) {
	f, err := os.Open(path)
	if err != nil {
		return unreadableSummary, ""
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)
	for sc.Scan() && len(lines) < maxSummaryMessages {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if cwd == "" {
			cwd = workingDir(line)
		}
		if l, ok := summaryLine(line); ok {
			lines = append(lines, l)
		}
	}
	// Scanner errors (oversized line) end the summary early, keeping what
	// was already collected.

	if len(lines) == 0 {
		// Whole-document session files have no per-line messages.
		if doc, err := readDocument(path); err == nil {
			for _, raw := range documentMessages(doc) {
				if len(lines) >= maxSummaryMessages {
					break
				}
				if l, ok := summaryLine(raw); ok {
					lines = append(lines, l)
				}
			}
		}
	}

	if len(lines) == 0 {
		return "", cwd
	}
	return strings.Join(lines, "\n"), cwd
}

// summaryLine renders one message-like JSON value as a role-labeled line.
func summaryLine(raw []byte) (string, bool) {
	role, text := decodeMessage(raw)
	switch role {
	case "user":
		if isSystemText(text) {
			return "", false
		}
		return "User: " + truncateText(text, maxMessageChars), true
	case "assistant":
		return "Assistant: " + truncateText(text, maxMessageChars), true
	default:
		return "", false
	}
}

// readDocument reads a bounded amount of a whole-file JSON session.
func readDocument(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, 1<<20))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
