// Package server provides the MCP server core implementation, handling protocol
// communication, tool registration, and request routing.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/apierrors"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/breaker"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/config"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/fetchcore"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/resolver"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/search"
)

// Server represents the MCP server instance with all its dependencies.
// It coordinates MCP protocol handling and dispatches the three tool-facade
// operations (docs, search, status) plus their legacy aliases to the
// fetch-process-cache core and the search orchestrator.
type Server struct {
	config       *config.Config
	core         *fetchcore.Core
	orchestrator *search.Orchestrator
	logger       zerolog.Logger
	mcpServer    *server.MCPServer
	transport    TransportStarter
	initialized  bool
}

// NewServer creates a new MCP server instance with the provided
// configuration, fetch-process-cache core, search orchestrator, and logger.
// The server is not started until Start() is called.
func NewServer(cfg *config.Config, core *fetchcore.Core, orchestrator *search.Orchestrator, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if core == nil {
		return nil, fmt.Errorf("fetch core cannot be nil")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("search orchestrator cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport configuration: %w", err)
	}

	mcpServer := server.NewMCPServer(
		"flutter-docs-mcp-server",
		"1.0.0",
	)

	transport, err := NewTransport(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return &Server{
		config:       cfg,
		core:         core,
		orchestrator: orchestrator,
		logger:       logger,
		mcpServer:    mcpServer,
		transport:    transport,
		initialized:  false,
	}, nil
}

// Initialize marks the server ready to serve. Unlike the teacher, there is
// no bulk documentation fetch to run up front: identifiers are resolved and
// fetched lazily, on the first docs() call that needs them, per spec.md
// §4.L's Fetch FSM.
func (s *Server) Initialize(_ context.Context) error {
	if s.initialized {
		return fmt.Errorf("server already initialized")
	}
	s.initialized = true
	return nil
}

// RegisterTools registers the docs/search/status tool surface plus the five
// legacy aliases spec.md §6 requires be accepted and mapped internally.
func (s *Server) RegisterTools() error {
	if !s.initialized {
		return fmt.Errorf("server not initialized, call Initialize() first")
	}

	s.logger.Info().Msg("registering MCP tools")

	s.mcpServer.AddTool(mcp.NewTool(
		"docs",
		mcp.WithDescription("Fetch Flutter/Dart API reference or pub.dev package documentation by identifier."),
		mcp.WithString("identifier",
			mcp.Required(),
			mcp.Description("Identifier such as 'widgets.Container', 'dart:async.Future', or 'pub:http:^1.0.0'"),
		),
		mcp.WithString("topic",
			mcp.Description("Optional section filter: summary, constructors, properties, methods, examples, getting-started, changelog, api, installation"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Maximum tokens to return (default 10000, minimum 500)"),
		),
	), s.handleDocsTool)

	s.mcpServer.AddTool(mcp.NewTool(
		"search",
		mcp.WithDescription("Search across Flutter API classes, Dart API classes, pub.dev packages, and curated concepts."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (keywords or topic)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 10, max 30)"),
		),
	), s.handleSearchTool)

	s.mcpServer.AddTool(mcp.NewTool(
		"status",
		mcp.WithDescription("Report cache occupancy, upstream health, and process uptime."),
	), s.handleStatusTool)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_flutter_docs",
		mcp.WithDescription("Legacy alias for docs(): fetch a Flutter SDK class by name and library."),
		mcp.WithString("class_name", mcp.Required(), mcp.Description("Class name, e.g. Container")),
		mcp.WithString("library", mcp.Description("Library name, e.g. widgets (default: widgets)")),
	), s.handleGetFlutterDocs)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_pub_package_info",
		mcp.WithDescription("Legacy alias for docs(): fetch a pub.dev package's documentation."),
		mcp.WithString("package_name", mcp.Required(), mcp.Description("Package name, e.g. http")),
		mcp.WithString("version", mcp.Description("Optional version constraint")),
	), s.handleGetPubPackageInfo)

	s.mcpServer.AddTool(mcp.NewTool(
		"search_flutter_docs",
		mcp.WithDescription("Legacy alias for search()."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
	), s.handleSearchFlutterDocs)

	s.mcpServer.AddTool(mcp.NewTool(
		"process_flutter_mentions",
		mcp.WithDescription("Extract @flutter_mcp identifier mentions from text and resolve each to documentation."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text containing @flutter_mcp mentions")),
	), s.handleProcessFlutterMentions)

	s.mcpServer.AddTool(mcp.NewTool(
		"health_check",
		mcp.WithDescription("Legacy alias for status()."),
	), s.handleHealthCheck)

	s.logger.Info().Msg("MCP tools registered successfully")
	return nil
}

// Start starts the MCP server and begins listening for client connections.
func (s *Server) Start(ctx context.Context) error {
	if !s.initialized {
		return fmt.Errorf("server not initialized, call Initialize() first")
	}

	s.logger.Info().Str("transport", s.transport.Type()).Msg("starting MCP server")
	if addr := s.config.GetTransportAddress(); addr != "" {
		s.logger.Info().Str("address", addr).Msg("transport address")
	}

	if err := s.transport.Start(ctx, s.mcpServer); err != nil {
		s.logger.Error().Err(err).Str("transport", s.transport.Type()).Msg("MCP server error")
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server and cleans up resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Str("transport", s.transport.Type()).Msg("shutting down server")

	if err := s.transport.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Str("transport", s.transport.Type()).Msg("error during transport shutdown")
		return fmt.Errorf("transport shutdown error: %w", err)
	}

	s.logger.Info().Str("transport", s.transport.Type()).Msg("server shutdown complete")
	return nil
}

// docsEnvelope is the wire shape a successful docs() call returns, per
// spec.md §6.
type docsEnvelope struct {
	Identifier      string   `json:"identifier"`
	Kind            string   `json:"kind"`
	SourceURL       string   `json:"source_url"`
	Source          string   `json:"source"`
	Content         string   `json:"content"`
	TokenCount      int      `json:"token_count"`
	Truncated       bool     `json:"truncated"`
	OriginalTokens  int      `json:"original_tokens,omitempty"`
	TTLRemainingMS  int64    `json:"ttl_remaining_ms"`
	SectionsKept    []string `json:"sections_kept,omitempty"`
	SectionsDropped []string `json:"sections_dropped,omitempty"`
}

func toDocsEnvelope(identifier string, doc model.Document) docsEnvelope {
	kind := ""
	if resolved, err := resolver.FromCanonicalID(doc.CanonicalID); err == nil {
		kind = resolved.Kind.String()
	}
	return docsEnvelope{
		Identifier:      identifier,
		Kind:            kind,
		SourceURL:       doc.SourceURL,
		Source:          doc.Source,
		Content:         doc.Content,
		TokenCount:      doc.TokenCount,
		Truncated:       doc.Truncated,
		OriginalTokens:  doc.OriginalTokens,
		TTLRemainingMS:  doc.TTLRemaining(time.Now().UnixMilli()),
		SectionsKept:    doc.SectionsKept,
		SectionsDropped: doc.SectionsDropped,
	}
}

// errorResult renders err as the §7 error envelope. Non-*apierrors.Error
// values (should not occur past fetchcore's boundary, but handled
// defensively) are wrapped as a generic Network failure.
func errorResult(err error) *mcp.CallToolResult {
	apiErr, ok := err.(*apierrors.Error)
	if !ok {
		apiErr = apierrors.Wrap(apierrors.Network, "unexpected internal error", err)
	}
	envelope := apiErr.ToEnvelope(time.Now().UTC().Format(time.RFC3339))
	body, marshalErr := json.Marshal(envelope)
	if marshalErr != nil {
		return mcp.NewToolResultError(apiErr.Error())
	}
	return mcp.NewToolResultText(string(body))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) fetchDocs(ctx context.Context, identifier string, topic model.Topic, maxTokens int) (*mcp.CallToolResult, error) {
	doc, err := s.core.Docs(ctx, model.DocRequest{Identifier: identifier, Topic: topic, MaxTokens: maxTokens})
	if err != nil {
		s.logger.Warn().Err(err).Str("identifier", identifier).Msg("docs failed")
		return errorResult(err), nil
	}
	return jsonResult(toDocsEnvelope(identifier, doc))
}

// handleDocsTool handles the docs tool invocation.
func (s *Server) handleDocsTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identifier, err := request.RequireString("identifier")
	if err != nil {
		return mcp.NewToolResultError("identifier parameter is required and must be a non-empty string"), nil
	}
	topic := model.Topic(request.GetString("topic", ""))
	maxTokens := request.GetInt("max_tokens", 0)

	return s.fetchDocs(ctx, identifier, topic, maxTokens)
}

// searchResultEnvelope is the wire shape of a single search() hit, per
// spec.md §3: `{id: canonical_id, kind, title, description, relevance,
// doc_size}`. Kept distinct from model.SearchResult (whose Go field names
// don't match the wire's snake_case/id-vs-ID shape) the same way
// docsEnvelope is kept distinct from model.Document.
type searchResultEnvelope struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Relevance   float64       `json:"relevance"`
	DocSize     model.DocSize `json:"doc_size"`
}

func toSearchResultEnvelope(r model.SearchResult) searchResultEnvelope {
	return searchResultEnvelope{
		ID:          r.ID,
		Kind:        r.Kind.String(),
		Title:       r.Title,
		Description: r.Description,
		Relevance:   r.Relevance,
		DocSize:     r.DocSize,
	}
}

// searchEnvelope is the wire shape a search() call returns, per spec.md §6.
type searchEnvelope struct {
	Query         string                 `json:"query"`
	Results       []searchResultEnvelope `json:"results"`
	Partial       bool                   `json:"partial"`
	FailedSources []string               `json:"failed_sources,omitempty"`
	TotalFound    int                    `json:"total_found"`
}

func (s *Server) search(ctx context.Context, query string, limit int) (*mcp.CallToolResult, error) {
	result, err := s.orchestrator.Search(ctx, query, limit)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("search failed")
		return errorResult(apierrors.Wrap(apierrors.Network, "search failed", err)), nil
	}

	s.logger.Info().Str("query", query).Int("results", len(result.Results)).Bool("partial", result.Partial).Msg("search completed")

	results := make([]searchResultEnvelope, len(result.Results))
	for i, r := range result.Results {
		results[i] = toSearchResultEnvelope(r)
	}

	return jsonResult(searchEnvelope{
		Query:         query,
		Results:       results,
		Partial:       result.Partial,
		FailedSources: result.FailedSources,
		TotalFound:    result.TotalFound,
	})
}

// handleSearchTool handles the search tool invocation.
func (s *Server) handleSearchTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required and must be a non-empty string"), nil
	}
	limit := request.GetInt("limit", 10)
	return s.search(ctx, query, limit)
}

// upstreamStatus is one of operational|degraded|down, derived from the
// circuit breaker state for that host.
type upstreamStatus string

const (
	statusOperational upstreamStatus = "operational"
	statusDegraded     upstreamStatus = "degraded"
	statusDown         upstreamStatus = "down"
)

func breakerToStatus(state breaker.State) upstreamStatus {
	switch state {
	case breaker.Open:
		return statusDown
	case breaker.HalfOpen:
		return statusDegraded
	default:
		return statusOperational
	}
}

type cacheStatus struct {
	Entries   int     `json:"entries"`
	SizeBytes int64   `json:"size_bytes"`
	HitRate   float64 `json:"hit_rate"`
}

type upstreamsStatus struct {
	FlutterDocs upstreamStatus `json:"flutter_docs"`
	DartDocs    upstreamStatus `json:"dart_docs"`
	PubDev      upstreamStatus `json:"pub_dev"`
}

type statusEnvelope struct {
	Status    string          `json:"status"`
	Cache     cacheStatus     `json:"cache"`
	Upstreams upstreamsStatus `json:"upstreams"`
	UptimeMS  int64           `json:"uptime_ms"`
}

// handleStatusTool handles the status tool invocation: cache occupancy from
// the cache store, upstream health from the circuit breaker registry, and
// process uptime from the core.
func (s *Server) handleStatusTool(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.core.Cache.Stats(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("status: cache stats failed")
		return errorResult(apierrors.Wrap(apierrors.CacheError, "failed to read cache statistics", err)), nil
	}

	upstreams := upstreamsStatus{
		FlutterDocs: breakerToStatus(s.core.Breakers.State("api.flutter.dev")),
		DartDocs:    breakerToStatus(s.core.Breakers.State("api.dart.dev")),
		PubDev:      breakerToStatus(s.core.Breakers.State("pub.dev")),
	}

	s.logger.Debug().
		Int("entries", stats.Entries).
		Str("size", humanize.Bytes(uint64(stats.TotalBytes))).
		Msg("status: cache occupancy")

	overall := "healthy"
	down, degraded := 0, 0
	for _, u := range []upstreamStatus{upstreams.FlutterDocs, upstreams.DartDocs, upstreams.PubDev} {
		switch u {
		case statusDown:
			down++
		case statusDegraded:
			degraded++
		}
	}
	if down == 3 {
		overall = "unhealthy"
	} else if down > 0 || degraded > 0 {
		overall = "degraded"
	}

	return jsonResult(statusEnvelope{
		Status: overall,
		Cache: cacheStatus{
			Entries:   stats.Entries,
			SizeBytes: stats.TotalBytes,
			HitRate:   stats.HitRateWindow,
		},
		Upstreams: upstreams,
		UptimeMS:  s.core.UptimeMillis(),
	})
}

// handleGetFlutterDocs implements the get_flutter_docs(class_name, library)
// legacy alias: docs("{library}.{class_name}"), per spec.md §6.
func (s *Server) handleGetFlutterDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	className, err := request.RequireString("class_name")
	if err != nil {
		return mcp.NewToolResultError("class_name parameter is required and must be a non-empty string"), nil
	}
	library := request.GetString("library", "widgets")
	identifier := library + "." + className
	return s.fetchDocs(ctx, identifier, "", 0)
}

// handleGetPubPackageInfo implements the get_pub_package_info(package_name,
// version?) legacy alias: docs("pub:{name}[:{version}]"), per spec.md §6.
func (s *Server) handleGetPubPackageInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	packageName, err := request.RequireString("package_name")
	if err != nil {
		return mcp.NewToolResultError("package_name parameter is required and must be a non-empty string"), nil
	}
	identifier := "pub:" + packageName
	if version := request.GetString("version", ""); version != "" {
		identifier += ":" + version
	}
	return s.fetchDocs(ctx, identifier, "", 0)
}

// handleSearchFlutterDocs implements the search_flutter_docs(query) legacy
// alias: search(query), per spec.md §6.
func (s *Server) handleSearchFlutterDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required and must be a non-empty string"), nil
	}
	return s.search(ctx, query, 10)
}

// mentionPattern matches "@flutter_mcp identifier" tokens, a whitespace-
// separated mention with no braces (spec.md §6's `{id}` is placeholder
// notation, not literal syntax), grounded on original_source/server.py's
// process_flutter_mentions pattern.
var mentionPattern = regexp.MustCompile(`@flutter_mcp\s+([a-zA-Z0-9_.:]+)`)

// handleProcessFlutterMentions implements the process_flutter_mentions(text)
// legacy alias: extract @flutter_mcp id[:ver] tokens, call docs for each
// distinct one, and return a map keyed by the mention token.
func (s *Server) handleProcessFlutterMentions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text parameter is required and must be a non-empty string"), nil
	}

	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	results := make(map[string]interface{})
	seen := make(map[string]bool)

	for _, m := range matches {
		identifier := strings.TrimSpace(m[1])
		if identifier == "" || seen[identifier] {
			continue
		}
		seen[identifier] = true

		doc, err := s.core.Docs(ctx, model.DocRequest{Identifier: identifier})
		if err != nil {
			s.logger.Warn().Err(err).Str("identifier", identifier).Msg("process_flutter_mentions: mention resolution failed")
			apiErr, ok := err.(*apierrors.Error)
			if !ok {
				apiErr = apierrors.Wrap(apierrors.Network, "unexpected internal error", err)
			}
			results[identifier] = apiErr.ToEnvelope(time.Now().UTC().Format(time.RFC3339))
			continue
		}
		results[identifier] = toDocsEnvelope(identifier, doc)
	}

	return jsonResult(results)
}

// handleHealthCheck implements the health_check() legacy alias: status().
func (s *Server) handleHealthCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleStatusTool(ctx, request)
}
