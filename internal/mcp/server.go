package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/core"
	"github.com/vadimtrunov/cinelist/internal/listing"
)

// Deps holds backend dependencies for MCP tool handlers.
type Deps struct {
	Movies  core.MovieService
	Details core.MovieDetailsProvider
}

// Server wraps an MCP SDK server with cinelist tool handlers.
type Server struct {
	server *mcpsdk.Server
	deps   Deps
	logger *slog.Logger
}

// NewServer creates an MCP server with all catalog tools registered.
func NewServer(deps Deps, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "cinelist",
			Version: version,
		},
		&mcpsdk.ServerOptions{Logger: logger},
	)

	srv := &Server{server: s, deps: deps, logger: logger}
	srv.registerTools()
	return srv
}

// ServeStdio runs the MCP server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// MCPServer returns the underlying MCP SDK server (for testing).
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

func (s *Server) registerTools() {
	s.server.AddTool(listMoviesTool(), s.handleListMovies)
	s.server.AddTool(searchMoviesTool(), s.handleSearchMovies)
	s.server.AddTool(getMovieDetailsTool(), s.handleGetMovieDetails)
}

func listMoviesTool() *mcpsdk.Tool {
	names := make([]any, 0, 4)
	for _, c := range catalog.Categories() {
		names = append(names, string(c))
	}
	return &mcpsdk.Tool{
		Name:        "list_movies",
		Description: "List one page of a TMDb movie category. Returns the page number, total pages, total results and the movies with their TMDb IDs, titles, release dates and ratings.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"enum":        names,
					"description": "Which list to fetch",
				},
				"page": pageSchema(),
			},
			"required": []any{"category"},
		},
	}
}

func searchMoviesTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "search_movies",
		Description: "Search TMDb movies by keyword. Returns one page of matches in the same shape as list_movies.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The keyword or title to search for",
				},
				"page": pageSchema(),
			},
			"required": []any{"query"},
		},
	}
}

func getMovieDetailsTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "get_movie_details",
		Description: "Get detailed information about a movie by its TMDb ID. Returns runtime, genres, tagline, status and full overview.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tmdb_id": map[string]any{
					"type":        "integer",
					"description": "The TMDb ID of the movie",
				},
			},
			"required": []any{"tmdb_id"},
		},
	}
}

func pageSchema() map[string]any {
	return map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": "1-based page number, defaults to 1",
	}
}

// Tool handlers parse arguments, call the catalog, and return JSON text content.

func (s *Server) handleListMovies(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Movies == nil {
		return toolError("movie catalog not configured"), nil
	}

	raw, err := extractStringFromArgs(req.Params.Arguments, "category")
	if err != nil {
		return toolError(err.Error()), nil
	}
	category, err := catalog.ParseCategory(raw)
	if err != nil {
		return toolError(err.Error()), nil
	}
	page, err := extractPage(req.Params.Arguments)
	if err != nil {
		return toolError(err.Error()), nil
	}

	result, err := listing.FetchCategory(ctx, s.deps.Movies, category, page)
	if err != nil {
		s.logger.Warn("list_movies failed", slog.String("category", string(category)), slog.String("error", err.Error()))
		return toolError(fmt.Sprintf("list %s failed: %v", category, err)), nil
	}
	return toolJSON(result)
}

func (s *Server) handleSearchMovies(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Movies == nil {
		return toolError("movie catalog not configured"), nil
	}

	query, err := extractStringFromArgs(req.Params.Arguments, "query")
	if err != nil {
		return toolError("search_movies requires a 'query' string argument"), nil
	}
	page, err := extractPage(req.Params.Arguments)
	if err != nil {
		return toolError(err.Error()), nil
	}

	result, err := s.deps.Movies.Search(ctx, query, page)
	if err != nil {
		s.logger.Warn("search_movies failed", slog.String("query", query), slog.String("error", err.Error()))
		return toolError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return toolJSON(result)
}

func (s *Server) handleGetMovieDetails(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Details == nil {
		return toolError("movie details provider not configured"), nil
	}

	tmdbID, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}

	details, err := s.deps.Details.GetMovie(ctx, tmdbID)
	if err != nil {
		return toolError(fmt.Sprintf("get movie failed: %v", err)), nil
	}
	return toolJSON(details)
}

// Helper functions.

// toolJSON marshals v to JSON and returns it as text content.
func toolJSON(v any) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil
}

// toolError returns a tool result indicating an error.
func toolError(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

// extractPage returns the optional "page" argument, defaulting to 1.
func extractPage(raw json.RawMessage) (int, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return 0, err
	}
	if _, ok := args["page"]; !ok {
		return 1, nil
	}
	page, err := extractIntFromArgs(raw, "page")
	if err != nil {
		return 0, err
	}
	if page < 1 {
		return 0, fmt.Errorf("page must be at least 1, got %d", page)
	}
	return page, nil
}

// extractIntFromArgs extracts an integer argument from raw JSON arguments.
func extractIntFromArgs(raw json.RawMessage, key string) (int, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return 0, err
	}

	val, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}

	switch v := val.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, val)
	}
}

// extractStringFromArgs extracts a string argument from raw JSON arguments.
func extractStringFromArgs(raw json.RawMessage, key string) (string, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return "", err
	}

	val, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}

	s, ok := val.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return s, nil
}
