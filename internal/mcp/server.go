package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/medcontext-mcp/internal/assistant"
	"github.com/dshills/medcontext-mcp/internal/metrics"
	"github.com/dshills/medcontext-mcp/internal/searcher"
	"github.com/dshills/medcontext-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "medcontext-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// StatusSource reports index statistics
type StatusSource interface {
	GetStatus(ctx context.Context) (*storage.Status, error)
}

// BuildMonitor reports whether an index build is running
type BuildMonitor interface {
	InProgress() bool
}

// Deps are the application components exposed as tools
type Deps struct {
	Assistant *assistant.Assistant
	Searcher  *searcher.Searcher
	Status    StatusSource
	Builds    BuildMonitor // optional
	Metrics   *metrics.Metrics
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	assistant *assistant.Assistant
	searcher  *searcher.Searcher
	status    StatusSource
	builds    BuildMonitor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance with every tool registered
func NewServer(d Deps) *Server {
	s := &Server{
		assistant: d.Assistant,
		searcher:  d.Searcher,
		status:    d.Status,
		builds:    d.Builds,
		metrics:   d.Metrics,
		logger:    slog.Default().With("component", "mcp"),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(s.endSession)

	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
	)
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is canceled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	// stdout carries the protocol, diagnostics go through slog on stderr
	stdio.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.addTool(askTool(), s.handleAsk)
	s.addTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.addTool(matchSymptomsTool(), s.handleMatchSymptoms)
	s.addTool(compareDrugsTool(), s.handleCompareDrugs)
	s.addTool(listConditionsTool(), s.handleListConditions)
	s.addTool(drugsForConditionTool(), s.handleDrugsForCondition)
	s.addTool(getStatusTool(), s.handleGetStatus)
	s.addTool(suggestDrugsTool(), s.handleSuggestDrugs)
	s.addTool(resetSessionTool(), s.handleResetSession)
}

// endSession drops the conversation context of a disconnected client
func (s *Server) endSession(ctx context.Context, cs server.ClientSession) {
	id := cs.SessionID()
	if id == "" {
		return
	}
	if err := s.assistant.ForgetSession(ctx, id); err != nil {
		s.logger.Warn("failed to forget session", "session", id, "err", err)
		return
	}
	s.logger.Debug("session ended", "session", id)
}

// addTool registers handler and counts its outcomes
func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, s.instrument(tool.Name, handler))
}

func (s *Server) instrument(name string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := handler(ctx, request)
		if err == nil && result != nil && result.IsError {
			s.metrics.ObserveToolCall(name, errToolResult)
		} else {
			s.metrics.ObserveToolCall(name, err)
		}
		if err != nil {
			s.logger.Warn("tool call failed", "tool", name, "err", err)
		}
		return result, err
	}
}
