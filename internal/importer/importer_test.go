package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amberlabs/amber/internal/apperr"
	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/store"
	"github.com/amberlabs/amber/internal/testutil"
)

type fixture struct {
	store *store.Store
	im    *Importer
	roots map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := testutil.TestStore(t)
	roots := map[string]string{}
	for _, id := range []string{"claude", "codex", "gemini", "cursor", "aider"} {
		roots[id] = filepath.Join(t.TempDir(), id)
	}
	return &fixture{store: s, im: New(s, testutil.Logger(), roots), roots: roots}
}

// writeSession writes a file and pins its mtime.
func writeSession(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

// claudeTranscript renders a role-tagged JSONL session in the nested
// message shape with a cwd side channel.
func claudeTranscript(cwd string, turns ...[2]string) string {
	var b strings.Builder
	for _, turn := range turns {
		line, _ := json.Marshal(map[string]any{
			"cwd": cwd,
			"message": map[string]any{
				"role":    turn[0],
				"content": turn[1],
			},
		})
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestScanEmptyRoots(t *testing.T) {
	f := newFixture(t)

	statuses, err := f.im.Scan(0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(statuses) != 5 {
		t.Fatalf("agents = %d, want 5", len(statuses))
	}
	for _, st := range statuses {
		if st.Found || st.SessionCount != 0 {
			t.Errorf("agent %s: %+v, want not found", st.ID, st)
		}
		if st.ID == "cursor" && st.Supported {
			t.Error("cursor must be unsupported")
		}
		if st.ID == "claude" && !st.Supported {
			t.Error("claude must be supported")
		}
	}
}

func TestScanCountsAndCutoff(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	recent := filepath.Join(f.roots["claude"], "proj-a", "s1.jsonl")
	old := filepath.Join(f.roots["claude"], "proj-a", "s2.jsonl")
	writeSession(t, recent, "{}\n", now.Add(-24*time.Hour))
	writeSession(t, old, "{}\n", now.Add(-60*24*time.Hour))

	statuses, err := f.im.Scan(0)
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]models.AgentStatus{}
	for _, st := range statuses {
		byID[st.ID] = st
	}
	if got := byID["claude"]; !got.Found || got.SessionCount != 2 {
		t.Errorf("claude no cutoff = %+v, want 2 sessions", got)
	}
	if byID["claude"].Oldest == byID["claude"].Newest {
		t.Error("oldest and newest should differ")
	}

	statuses, err = f.im.Scan(7)
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range statuses {
		if st.ID == "claude" && st.SessionCount != 1 {
			t.Errorf("claude with 7d cutoff = %d sessions, want 1", st.SessionCount)
		}
	}
}

func TestScanRejectsBadCutoff(t *testing.T) {
	f := newFixture(t)
	if _, err := f.im.Scan(5); !errors.Is(err, apperr.ErrInvalidCutoff) {
		t.Errorf("err = %v, want ErrInvalidCutoff", err)
	}
}

func TestUnknownAgentRejectedEverywhere(t *testing.T) {
	f := newFixture(t)
	if _, err := f.im.Preview("copilot", 0, 10); !errors.Is(err, apperr.ErrUnknownAgent) {
		t.Errorf("Preview err = %v", err)
	}
	if _, err := f.im.Import("copilot", 7, nil); !errors.Is(err, apperr.ErrUnknownAgent) {
		t.Errorf("Import err = %v", err)
	}
}

func TestImportRequiresCutoff(t *testing.T) {
	f := newFixture(t)
	for _, cutoff := range []int{0, 3, 365} {
		if _, err := f.im.Import("claude", cutoff, nil); !errors.Is(err, apperr.ErrInvalidCutoff) {
			t.Errorf("cutoff %d err = %v, want ErrInvalidCutoff", cutoff, err)
		}
	}
}

func TestImportClaudeSession(t *testing.T) {
	f := newFixture(t)
	mtime := time.Now().Add(-2 * time.Hour)
	date := mtime.Format(models.DateLayout)
	path := filepath.Join(f.roots["claude"], "-home-u-src-myproj", "s1.jsonl")
	writeSession(t, path, claudeTranscript("/home/u/src/myproj",
		[2]string{"user", "Need to compact this memory import flow"},
		[2]string{"assistant", "Sure, batching by date."},
	), mtime)

	var snapshots []models.ImportProgress
	progress, err := f.im.Import("claude", 7, func(p models.ImportProgress) {
		snapshots = append(snapshots, p)
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if progress.Total != 1 || progress.Processed != 1 || progress.Imported != 1 {
		t.Fatalf("progress = %+v", progress)
	}
	if len(progress.Dates) != 1 || progress.Dates[0] != date {
		t.Errorf("dates = %v, want [%s]", progress.Dates, date)
	}
	if len(snapshots) != 1 {
		t.Errorf("callbacks = %d, want one per file", len(snapshots))
	}

	lines, err := f.store.ReadEvents(date)
	if err != nil || len(lines) != 1 {
		t.Fatalf("events = %d err=%v, want 1", len(lines), err)
	}
	var ev models.RawEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != models.KindSession || ev.Source != "claude" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Data["title"] != "Claude session: myproj" {
		t.Errorf("title = %v", ev.Data["title"])
	}
	summary, _ := ev.Data["summary"].(string)
	if !strings.Contains(summary, "User: Need to compact this memory import flow") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "Assistant: Sure, batching by date.") {
		t.Errorf("summary = %q", summary)
	}
}

func TestImportTranscriptBounds(t *testing.T) {
	f := newFixture(t)
	mtime := time.Now().Add(-time.Hour)

	var turns [][2]string
	long := strings.Repeat("a", 1000)
	for i := 0; i < 30; i++ {
		turns = append(turns, [2]string{"user", long})
	}
	path := filepath.Join(f.roots["claude"], "proj", "big.jsonl")
	writeSession(t, path, claudeTranscript("/w/proj", turns...), mtime)

	if _, err := f.im.Import("claude", 1, nil); err != nil {
		t.Fatal(err)
	}
	lines, _ := f.store.ReadEvents(mtime.Format(models.DateLayout))
	var ev models.RawEvent
	_ = json.Unmarshal([]byte(lines[0]), &ev)
	summary := ev.Data["summary"].(string)

	rows := strings.Split(summary, "\n")
	if len(rows) != 20 {
		t.Errorf("summary rows = %d, want 20", len(rows))
	}
	for _, row := range rows {
		text := strings.TrimPrefix(row, "User: ")
		if n := len([]rune(text)); n > 500 {
			t.Errorf("row length = %d runes, want <= 500", n)
		}
		if !strings.HasSuffix(text, "..") {
			t.Errorf("truncated row missing marker: %q", text[len(text)-8:])
		}
	}
}

func TestImportCursorProcessedNotImported(t *testing.T) {
	f := newFixture(t)
	mtime := time.Now().Add(-time.Hour)
	path := filepath.Join(f.roots["cursor"], "hash1", "sess1", "store.db")
	writeSession(t, path, "SQLite format 3\x00garbage", mtime)

	progress, err := f.im.Import("cursor", 7, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if progress.Total != 1 || progress.Processed != 1 {
		t.Errorf("progress = %+v", progress)
	}
	if progress.Imported != 0 {
		t.Errorf("imported = %d, want 0 for sqlite agent", progress.Imported)
	}
	dates, _ := f.store.ListDates()
	if len(dates) != 0 {
		t.Errorf("dates = %v, want no events", dates)
	}
}

func TestImportProgressIsCumulative(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	for i, name := range []string{"a", "b", "c"} {
		path := filepath.Join(f.roots["claude"], "proj", name+".jsonl")
		writeSession(t, path, claudeTranscript("/w/proj", [2]string{"user", "hello " + name}),
			now.Add(-time.Duration(i+1)*time.Hour))
	}

	var snapshots []models.ImportProgress
	_, err := f.im.Import("claude", 1, func(p models.ImportProgress) {
		snapshots = append(snapshots, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("callbacks = %d, want 3", len(snapshots))
	}
	for i, p := range snapshots {
		if p.Processed != i+1 {
			t.Errorf("snapshot %d processed = %d", i, p.Processed)
		}
		if p.Total != 3 {
			t.Errorf("snapshot %d total = %d", i, p.Total)
		}
	}
}

func TestImportSkipsUnparseableFile(t *testing.T) {
	f := newFixture(t)
	mtime := time.Now().Add(-time.Hour)
	good := filepath.Join(f.roots["claude"], "proj", "good.jsonl")
	bad := filepath.Join(f.roots["claude"], "proj", "bad.jsonl")
	writeSession(t, good, claudeTranscript("/w/proj", [2]string{"user", "real work"}), mtime)
	writeSession(t, bad, "%%% not json at all\n", mtime)

	progress, err := f.im.Import("claude", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if progress.Processed != 2 || progress.Imported != 1 {
		t.Errorf("progress = %+v, want 2 processed 1 imported", progress)
	}
}

func TestPreviewClaude(t *testing.T) {
	f := newFixture(t)
	mtime := time.Now().Add(-time.Hour)
	path := filepath.Join(f.roots["claude"], "proj", "s.jsonl")
	writeSession(t, path, claudeTranscript("/home/u/src/amber",
		[2]string{"user", "<system-reminder>setup</system-reminder>"},
		[2]string{"user", "how do pins join entries?"},
	), mtime)

	previews, err := f.im.Preview("claude", 0, 0)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(previews) != 1 {
		t.Fatalf("previews = %d, want 1", len(previews))
	}
	p := previews[0]
	if p.FirstMessage != "how do pins join entries?" {
		t.Errorf("first message = %q", p.FirstMessage)
	}
	if p.Project != "amber" {
		t.Errorf("project = %q, want from cwd", p.Project)
	}
	if p.Date != mtime.Format(models.DateLayout) {
		t.Errorf("date = %q", p.Date)
	}
}

func TestPreviewCursorIsPresenceOnly(t *testing.T) {
	f := newFixture(t)
	mtime := time.Now().Add(-time.Hour)
	path := filepath.Join(f.roots["cursor"], "hash1", "sess1", "store.db")
	writeSession(t, path, "SQLite format 3\x00", mtime)

	previews, err := f.im.Preview("cursor", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(previews) != 1 || previews[0].FirstMessage != "(binary session store)" {
		t.Errorf("previews = %+v", previews)
	}
}

func TestPreviewLimit(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		path := filepath.Join(f.roots["aider"], string(rune('a'+i))+".log")
		line, _ := json.Marshal(map[string]string{"role": "user", "content": "prompt"})
		writeSession(t, path, string(line)+"\n", now.Add(-time.Duration(i)*time.Hour))
	}

	previews, err := f.im.Preview("aider", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(previews) != 2 {
		t.Errorf("previews = %d, want limit 2", len(previews))
	}
}

func TestGeminiWholeDocumentFallback(t *testing.T) {
	f := newFixture(t)
	mtime := time.Now().Add(-time.Hour)
	doc, _ := json.Marshal(map[string]any{
		"sessionId": "x",
		"messages": []map[string]any{
			{"role": "user", "content": "plan the gemini importer"},
			{"role": "model", "content": "done"},
		},
	})
	path := filepath.Join(f.roots["gemini"], "hash9", "chats", "session-1.json")
	writeSession(t, path, string(doc), mtime)

	previews, err := f.im.Preview("gemini", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(previews) != 1 || previews[0].FirstMessage != "plan the gemini importer" {
		t.Fatalf("previews = %+v", previews)
	}

	progress, err := f.im.Import("gemini", 7, nil)
	if err != nil {
		t.Fatal(err)
	}
	if progress.Imported != 1 {
		t.Errorf("imported = %d, want 1", progress.Imported)
	}
	lines, _ := f.store.ReadEvents(mtime.Format(models.DateLayout))
	if len(lines) != 1 || !strings.Contains(lines[0], "Assistant: done") {
		t.Errorf("events = %v", lines)
	}
}

func TestCodexNestedPayloadShape(t *testing.T) {
	f := newFixture(t)
	mtime := time.Now().Add(-time.Hour)
	var b strings.Builder
	for _, m := range []map[string]any{
		{"type": "session_meta", "payload": map[string]any{"cwd": "/home/u/src/codexproj"}},
		{"type": "response_item", "payload": map[string]any{
			"role": "user",
			"content": []map[string]string{
				{"type": "input_text", "text": "wire the event store"},
			},
		}},
	} {
		line, _ := json.Marshal(m)
		b.Write(line)
		b.WriteByte('\n')
	}
	path := filepath.Join(f.roots["codex"], "2025", "06", "01", "rollout.jsonl")
	writeSession(t, path, b.String(), mtime)

	previews, err := f.im.Preview("codex", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(previews) != 1 {
		t.Fatalf("previews = %+v", previews)
	}
	if previews[0].FirstMessage != "wire the event store" {
		t.Errorf("first message = %q", previews[0].FirstMessage)
	}
	if previews[0].Project != "codexproj" {
		t.Errorf("project = %q", previews[0].Project)
	}
}

func TestTruncateText(t *testing.T) {
	if got := truncateText("short", 500); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateText("a  b\n\tc", 500); got != "a b c" {
		t.Errorf("whitespace collapse: %q", got)
	}
	long := strings.Repeat("x", 1000)
	got := truncateText(long, 500)
	if n := len([]rune(got)); n != 500 {
		t.Errorf("len = %d, want 500", n)
	}
	if !strings.HasSuffix(got, "..") {
		t.Error("missing truncation marker")
	}
}

func TestImportBatchCap(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	for i := 0; i < 105; i++ {
		path := filepath.Join(f.roots["claude"], "proj", fmt.Sprintf("s%03d.jsonl", i))
		writeSession(t, path, claudeTranscript("/w/proj", [2]string{"user", "msg"}),
			now.Add(-time.Duration(i)*time.Minute))
	}

	progress, err := f.im.Import("claude", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if progress.Total != 100 {
		t.Errorf("total = %d, want batch cap 100", progress.Total)
	}
}
