package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amberlabs/amber/internal/importer"
	"github.com/amberlabs/amber/internal/knowledge"
	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/query"
	"github.com/amberlabs/amber/internal/sse"
	"github.com/amberlabs/amber/internal/status"
	"github.com/amberlabs/amber/internal/store"
	"github.com/amberlabs/amber/internal/testutil"
)

type env struct {
	store   *store.Store
	trigger chan struct{}
	router  http.Handler
}

// testEnv wires a full handler stack over a temp store. Agent roots point
// into an empty temp directory so scans never touch the real home.
func testEnv(t *testing.T, authToken string) *env {
	t.Helper()

	s := testutil.TestStore(t)
	logger := testutil.Logger()

	roots := map[string]string{}
	for _, id := range []string{"claude", "codex", "gemini", "cursor", "aider"} {
		roots[id] = t.TempDir() + "/" + id
	}
	im := importer.New(s, logger, roots)
	g := knowledge.NewGraph(s)
	q := query.NewService(s, logger)
	tracker := status.NewTracker()

	broker := sse.NewBroker()
	t.Cleanup(broker.Close)

	trigger := make(chan struct{}, 1)
	h := NewHandler(q, im, g, s, tracker, broker, trigger, logger)
	router := NewRouter(h, authToken != "", authToken, broker)
	return &env{store: s, trigger: trigger, router: router}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func seedEvent(t *testing.T, s *store.Store, date, subject string) models.RawEvent {
	t.Helper()
	ev := models.RawEvent{
		Source:    "git",
		Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Kind:      models.KindCommit,
		Data: map[string]any{
			"repo":    "/home/u/src/amber",
			"hash":    "deadbeefcafe",
			"subject": subject,
			"author":  "dev",
		},
	}
	if err := s.AppendEvent(date, ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestContextEmptyDate(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/context/2025-06-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Entries []models.ContextEntry `json:"entries"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Entries == nil || len(resp.Entries) != 0 {
		t.Errorf("entries = %v, want empty non-nil", resp.Entries)
	}
}

func TestContextInvalidDate(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/context/not-a-date", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestContextWithEvents(t *testing.T) {
	e := testEnv(t, "")
	seedEvent(t, e.store, "2025-06-01", "fix store fsync")

	w := e.do(t, http.MethodGet, "/context/2025-06-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Entries []models.ContextEntry `json:"entries"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(resp.Entries))
	}
	if resp.Entries[0].Title != "fix store fsync" {
		t.Errorf("title = %q", resp.Entries[0].Title)
	}
}

func TestPinLifecycle(t *testing.T) {
	e := testEnv(t, "")
	ev := seedEvent(t, e.store, "2025-06-01", "pin me")

	entry := models.ContextEntry{
		Source:    ev.Source,
		Timestamp: ev.Timestamp,
		Kind:      ev.Kind,
		Title:     "pin me",
	}
	w := e.do(t, http.MethodPost, "/pins", CreatePinRequest{Entry: entry, Note: "important"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create pin = %d, body = %s", w.Code, w.Body.String())
	}
	var pin models.PinRecord
	_ = json.Unmarshal(w.Body.Bytes(), &pin)
	if pin.ID == "" {
		t.Fatal("pin has no id")
	}

	// Context now carries pin state joined by fingerprint.
	w = e.do(t, http.MethodGet, "/context/2025-06-01", nil)
	var resp struct {
		Entries []models.ContextEntry `json:"entries"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 || !resp.Entries[0].Pinned {
		t.Errorf("entry not pinned: %+v", resp.Entries)
	}
	if resp.Entries[0].PinID != pin.ID {
		t.Errorf("pinId = %q, want %q", resp.Entries[0].PinID, pin.ID)
	}

	w = e.do(t, http.MethodDelete, "/pins/"+pin.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete pin = %d, want 204", w.Code)
	}
	w = e.do(t, http.MethodDelete, "/pins/"+pin.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestCreatePinMissingFields(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/pins", CreatePinRequest{Note: "no entry"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestNotesRoundTrip(t *testing.T) {
	e := testEnv(t, "")

	// Missing note is found=false, not 404.
	w := e.do(t, http.MethodGet, "/notes/2025-06-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get missing = %d", w.Code)
	}
	var note NoteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Found {
		t.Error("missing note reported found")
	}

	w = e.do(t, http.MethodPut, "/notes/2025-06-01", PutNoteRequest{Content: "# Day one"})
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/notes/2025-06-01", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if !note.Found || note.Content != "# Day one" {
		t.Errorf("note = %+v", note)
	}
}

func TestPutNoteInvalidDate(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPut, "/notes/junk", PutNoteRequest{Content: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCalendarCounts(t *testing.T) {
	e := testEnv(t, "")
	seedEvent(t, e.store, "2025-06-01", "a")
	seedEvent(t, e.store, "2025-06-01", "b")
	seedEvent(t, e.store, "2025-06-02", "c")

	w := e.do(t, http.MethodGet, "/calendar", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Counts map[string]int `json:"counts"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Counts["2025-06-01"] != 2 || resp.Counts["2025-06-02"] != 1 {
		t.Errorf("counts = %v", resp.Counts)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := testEnv(t, "")
	seedEvent(t, e.store, "2025-06-01", "uniquetoken landed")

	w := e.do(t, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp struct {
		Results []query.SearchResult `json:"results"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Errorf("results = %d, want 1", len(resp.Results))
	}
}

func TestSearchMissingQuery(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEntitiesBackfillAndDelete(t *testing.T) {
	e := testEnv(t, "")

	note := "---\ndate: 2025-06-01\nprojects:\n  - amber\npeople: []\ntopics:\n  - storage\n---\n# Day\n"
	w := e.do(t, http.MethodPut, "/notes/2025-06-01", PutNoteRequest{Content: note})
	if w.Code != http.StatusOK {
		t.Fatalf("put note = %d", w.Code)
	}

	w = e.do(t, http.MethodPost, "/entities/backfill", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backfill = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/entities?type=project", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp struct {
		Entities []models.KnowledgeEntity `json:"entities"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entities) != 1 || resp.Entities[0].Slug != "project:amber" {
		t.Fatalf("entities = %+v", resp.Entities)
	}

	w = e.do(t, http.MethodDelete, "/entities/"+resp.Entities[0].ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
}

func TestListEntitiesInvalidType(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/entities?type=planet", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestScanAgents(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/agents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Agents []models.AgentStatus `json:"agents"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Agents) != 5 {
		t.Fatalf("agents = %d, want 5", len(resp.Agents))
	}
	for _, a := range resp.Agents {
		if a.Found {
			t.Errorf("agent %s found in empty env", a.ID)
		}
	}
}

func TestScanAgentsBadCutoff(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/agents?cutoff=999", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestImportUnknownAgent(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/agents/copilot/import", ImportRequest{CutoffDays: 7})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestImportBadCutoff(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/agents/claude/import", ImportRequest{CutoffDays: 3})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSummarizeTrigger(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/summarize", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	select {
	case <-e.trigger:
	default:
		t.Error("trigger channel received nothing")
	}
}

func TestStatusEndpoint(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap status.Status
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")

	w := e.do(t, http.MethodGet, "/status", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}
