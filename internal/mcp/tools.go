package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dopemux/codesearch/internal/hybrid"
	"github.com/dopemux/codesearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32001 // Query parameter is empty
	ErrorCodeNotIndexed    = -32002 // Workspace not indexed yet
)

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	profileName := getStringDefault(args, "profile", "implementation")
	switch profileName {
	case "implementation", "debugging", "exploration":
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid profile", map[string]interface{}{
			"param":   "profile",
			"value":   profileName,
			"allowed": []string{"implementation", "debugging", "exploration"},
		})
	}
	profile := types.ProfileByName(profileName)

	filter := map[string]string{}
	if lang := getStringDefault(args, "language", ""); lang != "" {
		filter["language"] = lang
	}
	if path := getStringDefault(args, "file_path", ""); path != "" {
		filter["file_path"] = path
	}
	if len(filter) == 0 {
		filter = nil
	}

	resp, err := s.searcher.Search(ctx, hybrid.Query{
		Text:         query,
		TopK:         limit,
		Profile:      profile,
		Filter:       filter,
		DenseWeight:  getFloatDefault(args, "dense_weight", s.cfg.Search.DenseWeight),
		SparseWeight: getFloatDefault(args, "sparse_weight", s.cfg.Search.SparseWeight),
		RRFK:         s.cfg.Search.RRFK,
		UseCache:     true,
		CacheTTL:     s.cfg.Search.CacheTTL,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = map[string]interface{}{
			"rank":          i + 1,
			"score":         r.Score,
			"source":        string(r.Source),
			"file_path":     r.Document.FilePath,
			"function_name": r.Document.FunctionName,
			"language":      r.Document.Language,
			"start_line":    r.Document.StartLine,
			"end_line":      r.Document.EndLine,
			"context":       r.Document.ContextSnippet,
			"code":          r.Document.RawCode,
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":          query,
		"total_results":  resp.TotalResults,
		"duration_ms":    resp.Duration.Milliseconds(),
		"cache_hit":      resp.CacheHit,
		"dense_results":  resp.DenseResults,
		"sparse_results": resp.SparseResults,
		"results":        results,
	})), nil
}

// handleIndexWorkspace handles the index_workspace tool invocation
func (s *Server) handleIndexWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	progress, err := s.pipeline.IndexWorkspace(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"indexed":          true,
		"total_files":      progress.TotalFiles,
		"processed_files":  progress.ProcessedFiles,
		"indexed_chunks":   progress.IndexedChunks,
		"errors":           progress.Errors,
		"percent_complete": progress.PercentageComplete(),
		"total_cost_usd":   progress.TotalCostUSD,
	})), nil
}

// handleIndexFile handles the index_file tool invocation
func (s *Server) handleIndexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.cfg.Workspace.Path, path)
	}

	chunks, err := s.pipeline.IndexSingleFile(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "re-index failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"indexed": true,
		"file":    path,
		"chunks":  chunks,
	})), nil
}

// handleGetCostSummary handles the get_cost_summary tool invocation
func (s *Server) handleGetCostSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	costs := s.pipeline.Costs()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"context_generation_usd": costs.ContextGeneration.CostUSD,
		"embeddings_usd":         costs.Embeddings.CostUSD,
		"total_usd":              costs.TotalCostUSD,
	})), nil
}

// handleGetIndexInfo handles the get_index_info tool invocation
func (s *Server) handleGetIndexInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := s.dense.Info()
	progress := s.pipeline.Progress()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"collection": map[string]interface{}{
			"name":          info.Name,
			"vectors_count": info.VectorsCount,
			"status":        info.Status,
		},
		"progress": map[string]interface{}{
			"total_files":      progress.TotalFiles,
			"processed_files":  progress.ProcessedFiles,
			"indexed_chunks":   progress.IndexedChunks,
			"errors":           progress.Errors,
			"percent_complete": progress.PercentageComplete(),
		},
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
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

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
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
