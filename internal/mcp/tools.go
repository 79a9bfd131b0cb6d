package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/medcontext-mcp/internal/assistant"
	"github.com/dshills/medcontext-mcp/internal/searcher"
	"github.com/dshills/medcontext-mcp/internal/session"
	"github.com/dshills/medcontext-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // An index build is running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

var errToolResult = errors.New("tool returned an error result")

// handleAsk handles the ask tool invocation
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}
	if s.indexing() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "index build in progress, try again shortly", nil)
	}

	sessionID := sessionIDFrom(ctx, args)
	ans, err := s.assistant.Ask(ctx, sessionID, query)
	if err != nil {
		return toolFailure(err)
	}

	response := map[string]interface{}{
		"route":          string(ans.Route),
		"answer":         ans.Text,
		"session_id":     sessionID,
		"resolved_query": ans.ResolvedQuery,
	}
	if ans.Drug != "" {
		response["drug"] = ans.Drug
	}
	if ans.Resolved {
		response["interpreted_as"] = ans.Drug
	}
	if len(ans.Documents) > 0 {
		response["sources"] = formatResults(ans.Documents)
	}
	if len(ans.Candidates) > 0 {
		response["candidates"] = formatCandidates(ans.Candidates)
	}
	if len(ans.FollowUps) > 0 {
		response["follow_ups"] = ans.FollowUps
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "limit", searcher.DefaultKDense+searcher.DefaultKSparse)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := searcher.SearchMode(getStringDefault(args, "mode", string(searcher.SearchModeHybrid)))
	switch mode {
	case searcher.SearchModeHybrid, searcher.SearchModeDense, searcher.SearchModeSparse:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []string{"hybrid", "dense", "sparse"},
		})
	}

	drug := strings.ToLower(strings.TrimSpace(getStringDefault(args, "drug", "")))
	if drug != "" && mode != searcher.SearchModeDense {
		return nil, newMCPError(ErrorCodeInvalidParams, "drug filter requires dense mode", map[string]interface{}{
			"param": "drug",
			"mode":  mode,
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query: query,
		Limit: limit,
		Mode:  mode,
		Drug:  drug,
	})
	if err != nil {
		return toolFailure(err)
	}

	response := map[string]interface{}{
		"mode":          string(resp.SearchMode),
		"total_results": resp.TotalResults,
		"duration_ms":   resp.Duration.Milliseconds(),
		"results":       formatResults(resp.Results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleMatchSymptoms handles the match_symptoms tool invocation
func (s *Server) handleMatchSymptoms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	topK := getIntDefault(args, "top_k", 0)
	if topK < 0 || topK > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_k must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	candidates := s.assistant.MatchSymptoms(query, topK)
	response := map[string]interface{}{
		"candidates": formatCandidates(candidates),
		"markdown":   assistant.FormatCandidates(candidates),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCompareDrugs handles the compare_drugs tool invocation
func (s *Server) handleCompareDrugs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	drugA := strings.TrimSpace(getStringDefault(args, "drug_a", ""))
	drugB := strings.TrimSpace(getStringDefault(args, "drug_b", ""))
	if drugA == "" || drugB == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "drug_a and drug_b are required", map[string]interface{}{
			"param":  "drug_a, drug_b",
			"reason": "missing or empty",
		})
	}
	if s.indexing() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "index build in progress, try again shortly", nil)
	}

	reply, err := s.assistant.Compare(ctx, drugA, drugB)
	if err != nil {
		return toolFailure(err)
	}

	response := map[string]interface{}{
		"comparison": reply.Text,
		"sources":    formatResults(reply.Documents),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSuggestDrugs handles the suggest_drugs tool invocation
func (s *Server) handleSuggestDrugs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	symptoms := getStringDefault(args, "symptoms", "")
	if strings.TrimSpace(symptoms) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "symptoms parameter is required and cannot be empty", map[string]interface{}{
			"param":  "symptoms",
			"reason": "missing or empty",
		})
	}
	if s.indexing() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "index build in progress, try again shortly", nil)
	}

	reply, err := s.assistant.Suggest(ctx, symptoms)
	if err != nil {
		return toolFailure(err)
	}

	response := map[string]interface{}{
		"suggestions": reply.Text,
		"sources":     formatResults(reply.Documents),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleResetSession handles the reset_session tool invocation
func (s *Server) handleResetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	id := sessionIDFrom(ctx, args)
	if err := s.assistant.ForgetSession(ctx, id); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to reset session", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"session_id": id,
		"reset":      true,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListConditions handles the list_conditions tool invocation
func (s *Server) handleListConditions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conditions := s.assistant.Conditions()
	response := map[string]interface{}{
		"count":      len(conditions),
		"conditions": conditions,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDrugsForCondition handles the drugs_for_condition tool invocation
func (s *Server) handleDrugsForCondition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	condition := strings.TrimSpace(getStringDefault(args, "condition", ""))
	if condition == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "condition parameter is required", map[string]interface{}{
			"param":  "condition",
			"reason": "missing or empty",
		})
	}

	drugs := s.assistant.DrugsForCondition(condition)
	if drugs == nil {
		drugs = []string{}
	}
	response := map[string]interface{}{
		"condition": condition,
		"drugs":     drugs,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.status.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	indices := make([]map[string]interface{}, 0, len(status.States))
	for _, st := range status.States {
		entry := map[string]interface{}{
			"name":      st.Name,
			"documents": st.Documents,
			"built_at":  st.BuiltAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if st.Model != "" {
			entry["model"] = st.Model
		}
		indices = append(indices, entry)
	}

	response := map[string]interface{}{
		"indexed":              len(status.States) > 0,
		"indexing_in_progress": s.indexing(),
		"indices":              indices,
		"statistics": map[string]interface{}{
			"full_documents":    status.FullDocuments,
			"compact_documents": status.CompactDocuments,
			"embeddings":        status.Embeddings,
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_index_built":      status.Health.FTSIndexBuilt,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func (s *Server) indexing() bool {
	return s.builds != nil && s.builds.InProgress()
}

// requireQuery extracts a non-blank query argument
func requireQuery(args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	return query, nil
}

// sessionIDFrom prefers an explicit session_id argument, then the MCP
// client session
func sessionIDFrom(ctx context.Context, args map[string]interface{}) string {
	if id := strings.TrimSpace(getStringDefault(args, "session_id", "")); id != "" {
		return id
	}
	if cs := server.ClientSessionFromContext(ctx); cs != nil && cs.SessionID() != "" {
		return cs.SessionID()
	}
	return session.DefaultID
}

// toolFailure maps pipeline errors. Upstream outages become tool error
// results the client can show; everything else is a protocol error.
func toolFailure(err error) (*mcp.CallToolResult, error) {
	switch {
	case types.IsUpstream(err):
		return mcp.NewToolResultError(fmt.Sprintf("service unavailable: %v", err)), nil
	case errors.Is(err, types.ErrEmptyQuery):
		return nil, newMCPError(ErrorCodeEmptyQuery, err.Error(), nil)
	case errors.Is(err, assistant.ErrMissingDrug):
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	default:
		return nil, newMCPError(ErrorCodeInternalError, "request failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func formatResults(results []types.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		entry := map[string]interface{}{
			"rank":      r.Rank,
			"drug_name": r.Document.Metadata.DrugName,
			"content":   r.Document.Content,
			"score":     r.Score,
		}
		if r.Source != "" {
			entry["source"] = r.Source
		}
		out = append(out, entry)
	}
	return out
}

func formatCandidates(candidates []types.ScoredCandidate) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, map[string]interface{}{
			"drug_name":         c.DrugName,
			"medical_condition": c.MedicalCondition,
			"symptom":           c.Symptom,
			"score":             c.Score,
		})
	}
	return out
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
