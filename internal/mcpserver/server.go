// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Amber tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/amberlabs/amber/internal/knowledge"
	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/parser"
	"github.com/amberlabs/amber/internal/store"
)

// Server wraps the MCP server with Amber tools.
type Server struct {
	mcp   *server.MCPServer
	store *store.Store
	graph *knowledge.Graph
}

// New creates a new MCP server with all Amber tools registered.
func New(s *store.Store, g *knowledge.Graph) *Server {
	srv := &Server{store: s, graph: g}

	srv.mcp = server.NewMCPServer(
		"Amber",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	srv.mcp.AddTool(mcp.NewTool("read_events",
		mcp.WithDescription("Read the raw event log for a calendar date. Returns one JSON object per line. "+
			"A date with no events returns an empty result, not an error."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Calendar date (YYYY-MM-DD)")),
	), srv.readEvents)

	srv.mcp.AddTool(mcp.NewTool("write_daily_note",
		mcp.WithDescription("Write the daily note for a date. Content MUST follow the canonical "+
			"daily note format (YAML frontmatter with date, projects, people, topics). Read the "+
			"contract first via the get_note_contract tool or the amber://daily-note-format resource. "+
			"Frontmatter entities are recorded into the knowledge graph."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Calendar date (YYYY-MM-DD)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the daily note format contract")),
	), srv.writeDailyNote)

	srv.mcp.AddTool(mcp.NewTool("upsert_entity",
		mcp.WithDescription("Record a mention of a knowledge entity (project, person, or topic). "+
			"Entities are deduplicated by normalized name; repeat mentions merge instead of duplicating."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type: project, person, or topic")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Entity display name")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Where the mention was observed (e.g. daily-note, chat)")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Mention date (YYYY-MM-DD)")),
		mcp.WithString("metadata", mcp.Description("Optional JSON object of extra fields to merge")),
	), srv.upsertEntity)

	srv.mcp.AddTool(mcp.NewTool("read_entities",
		mcp.WithDescription("List knowledge entities, optionally filtered by type."),
		mcp.WithString("type", mcp.Description("Optional filter: project, person, or topic")),
	), srv.readEntities)

	srv.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Amber daily note format contract. "+
			"Call this before writing daily notes to ensure correct structure."),
	), srv.getNoteContract)

	// Resource: daily note format contract.
	srv.mcp.AddResource(
		mcp.NewResource("amber://daily-note-format", "Daily Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown format that all daily notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		srv.readNoteFormatResource,
	)

	return srv
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) readEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines, err := s.store.ReadEvents(date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no events for " + date), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) writeDailyNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.WriteNote(date, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Record frontmatter entities. Failures never fail the write; a later
	// backfill recovers them from the stored note.
	res := parser.Parse([]byte(content))
	recorded := 0
	for _, l := range []struct {
		entityType models.EntityType
		names      []string
	}{
		{models.EntityProject, res.Projects},
		{models.EntityPerson, res.People},
		{models.EntityTopic, res.Topics},
	} {
		for _, name := range l.names {
			if _, upErr := s.graph.UpsertFromObservation(knowledge.Observation{
				Type:   l.entityType,
				Name:   name,
				Source: "daily-note",
				Date:   date,
			}); upErr == nil {
				recorded++
			}
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("written: %s (%d entities recorded)", date, recorded)), nil
}

func (s *Server) upsertEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	obs := knowledge.Observation{
		Type:   models.EntityType(entityType),
		Name:   name,
		Source: source,
		Date:   date,
	}
	if raw := req.GetString("metadata", ""); raw != "" {
		var meta map[string]any
		if jsonErr := json.Unmarshal([]byte(raw), &meta); jsonErr != nil {
			return mcp.NewToolResultError("metadata must be a JSON object"), nil
		}
		obs.Metadata = meta
	}

	entity, err := s.graph.UpsertFromObservation(obs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entity, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := models.EntityType(req.GetString("type", ""))
	if filter != "" && !filter.IsValid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid entity type: %s", filter)), nil
	}
	entities, err := s.graph.Read(filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entities, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "amber://daily-note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
