package importer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amberlabs/amber/internal/models"
)

// unreadableSummary is the sentinel returned when a session file cannot be
// read at all. Import treats it like an empty summary.
const unreadableSummary = "(unreadable session)"

// Preview extracts a lightweight glimpse of each candidate session, newest
// first, reading at most the first 32KB of every file. Malformed files are
// skipped, never fatal. limit <= 0 means the default of 50.
func (im *Importer) Preview(agentID string, cutoffDays, limit int) ([]models.SessionPreview, error) {
	a, err := lookup(agentID)
	if err != nil {
		return nil, err
	}
	if err := validateCutoff(cutoffDays, true); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPreviewLimit
	}

	files := im.cutFiles(discover(a.id, im.roots[a.id]), cutoffDays)
	previews := make([]models.SessionPreview, 0, limit)
	for _, f := range files {
		if len(previews) >= limit {
			break
		}
		if !a.supported {
			// Sqlite session stores are presence-only: no content is parsed.
			previews = append(previews, models.SessionPreview{
				Date:         f.Date,
				Project:      filepath.Base(filepath.Dir(f.Path)),
				FirstMessage: "(binary session store)",
			})
			continue
		}
		head, err := readHead(f.Path)
		if err != nil {
			continue
		}
		msg, cwd := firstUserMessage(head)
		if msg == "" {
			continue
		}
		previews = append(previews, models.SessionPreview{
			Date:         f.Date,
			Project:      projectLabel(a.id, f.Path, cwd),
			FirstMessage: truncateText(msg, maxMessageChars),
		})
	}
	return previews, nil
}

// readHead returns at most the first 32KB of a file. The bound is on the
// read itself, not a truncation after the fact.
func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, previewReadBytes))
}

// firstUserMessage scans JSON lines for the first user-authored message and
// a working-directory field. Whole-document session files (one JSON object
// instead of lines) fall back to their "messages" array.
func firstUserMessage(head []byte) (msg, cwd string) {
	sc := bufio.NewScanner(bytes.NewReader(head))
	sc.Buffer(make([]byte, 0, 64*1024), previewReadBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if cwd == "" {
			cwd = workingDir(line)
		}
		if msg == "" {
			if role, text := decodeMessage(line); role == "user" && !isSystemText(text) {
				msg = text
			}
		}
		if msg != "" && cwd != "" {
			return msg, cwd
		}
	}
	if msg == "" {
		for _, raw := range documentMessages(head) {
			if role, text := decodeMessage(raw); role == "user" && !isSystemText(text) {
				return text, cwd
			}
		}
	}
	return msg, cwd
}

// decodeMessage extracts a normalized role and text from one message-like
// JSON value, trying the known schema shapes in order:
//
//  1. role-tagged object with string content
//  2. role-tagged object with content blocks (text/input_text/output_text)
//  3. nested message/payload object, recursively
//
// The order matters: some formats satisfy more than one shape.
func decodeMessage(raw []byte) (role, text string) {
	var m struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
		Message json.RawMessage `json:"message"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", ""
	}
	if r := normalizeRole(m.Role); r != "" {
		if t := contentText(m.Content); t != "" {
			return r, t
		}
	}
	if len(m.Message) > 0 {
		if r, t := decodeMessage(m.Message); t != "" {
			return r, t
		}
	}
	if len(m.Payload) > 0 {
		if r, t := decodeMessage(m.Payload); t != "" {
			return r, t
		}
	}
	return "", ""
}

// contentText flattens a content field: either a plain string or an array
// of typed blocks, of which only text-bearing kinds contribute.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var texts []string
	for _, b := range blocks {
		switch b.Type {
		case "text", "input_text", "output_text":
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

func normalizeRole(role string) string {
	switch strings.ToLower(role) {
	case "user", "human":
		return "user"
	case "assistant", "model":
		return "assistant"
	default:
		return ""
	}
}

// workingDir pulls a cwd field from a JSON line, checking the top level and
// the nested payload envelope.
func workingDir(raw []byte) string {
	var m struct {
		CWD     string `json:"cwd"`
		Payload struct {
			CWD string `json:"cwd"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	if m.CWD != "" {
		return m.CWD
	}
	return m.Payload.CWD
}

// documentMessages unwraps a whole-file JSON session ({"messages": [...]}).
// Truncated or non-object heads yield nothing.
func documentMessages(data []byte) []json.RawMessage {
	var doc struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return nil
	}
	return doc.Messages
}

// isSystemText filters tool-generated scaffolding that masquerades as user
// messages in several session formats.
func isSystemText(text string) bool {
	return strings.HasPrefix(text, "<local-command-") ||
		strings.HasPrefix(text, "<command-name>") ||
		strings.Contains(text, "<system-reminder>") ||
		strings.Contains(text, "<environment_context>") ||
		strings.Contains(text, "<permissions") ||
		strings.Contains(text, "AGENTS.md")
}

// projectLabel derives a project name: the last path element of an explicit
// working directory when one was found, otherwise a directory-name fallback
// specific to the agent's layout.
func projectLabel(agentID, path, cwd string) string {
	if cwd != "" {
		if p := filepath.Base(cwd); p != "" && p != "." && p != string(filepath.Separator) {
			return p
		}
	}
	switch agentID {
	case "claude":
		return filepath.Base(filepath.Dir(path))
	case "gemini":
		// <hash>/chats/session-*.json
		return filepath.Base(filepath.Dir(filepath.Dir(path)))
	case "cursor":
		return filepath.Base(filepath.Dir(path))
	default:
		return "unknown"
	}
}

// truncateText collapses whitespace and truncates to at most max runes.
func truncateText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-2]) + ".."
}
