// Package mcpserver exposes the query engine to LLM clients over the Model
// Context Protocol (stdio transport).
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/queryservice"
	"github.com/starford/ansuz/internal/storage"
)

// QueryLanguageURI identifies the query language reference resource.
const QueryLanguageURI = "ansuz://query-language"

// QueryService is the part of queryservice.Service the tools use.
type QueryService interface {
	Submit(ctx context.Context, text string) queryservice.Response
	Status() queryservice.Status
	Rebuild(ctx context.Context) (queryservice.Status, error)
}

// LinkSource answers link graph lookups.
type LinkSource interface {
	LinkGraph(path string) (models.Links, error)
}

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp     *server.MCPServer
	queries QueryService
	store   storage.Provider
	links   LinkSource
}

// New creates a new MCP server with all tools registered.
func New(queries QueryService, store storage.Provider, links LinkSource) *Server {
	s := &Server{queries: queries, store: store, links: links}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("run_query",
		mcp.WithDescription("Run a TABLE or LIST query over note metadata and return the result as JSON. "+
			"Read the ansuz://query-language resource for the grammar. "+
			"If the response has needsIndex=true, call rebuild_index first."),
		mcp.WithString("query", mcp.Required(), mcp.Description(`Query text, e.g. TABLE status FROM "projects" SORT file.mtime DESC`)),
	), s.runQuery)

	s.mcp.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Report whether the metadata index is built, when, and how many notes it holds."),
	), s.indexStatus)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Rebuild the metadata index from the vault on disk."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("get_query_language",
		mcp.WithDescription("Returns the query language reference. Call this before writing queries."),
	), s.getQueryLanguage)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the raw Markdown of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddResource(
		mcp.NewResource(QueryLanguageURI, "Query Language Reference",
			mcp.WithResourceDescription("Grammar and semantics of TABLE and LIST queries."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQueryLanguageResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) runQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp := s.queries.Submit(ctx, query)
	res, err := jsonResult(resp)
	if err != nil {
		return nil, err
	}
	res.IsError = !resp.Success
	return res, nil
}

func (s *Server) indexStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.queries.Status())
}

func (s *Server) rebuildIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.queries.Rebuild(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) getQueryLanguage(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QueryLanguageReference), nil
}

func (s *Server) readQueryLanguageResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      QueryLanguageURI,
			MIMEType: "text/markdown",
			Text:     QueryLanguageReference,
		},
	}, nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}
	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0, len(metas))
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getBacklinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.links.LinkGraph(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links.Inlinks) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(links.Inlinks, "\n")), nil
}
