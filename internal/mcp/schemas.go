package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed workspace with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"profile": map[string]interface{}{
					"type":        "string",
					"description": "Search profile tuning the per-field vector weights",
					"enum":        []string{"implementation", "debugging", "exploration"},
					"default":     "implementation",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one language (e.g. go, python)",
				},
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one workspace-relative file path",
				},
				"dense_weight": map[string]interface{}{
					"type":        "number",
					"description": "Fusion weight for vector retrieval",
					"default":     0.7,
				},
				"sparse_weight": map[string]interface{}{
					"type":        "number",
					"description": "Fusion weight for keyword retrieval",
					"default":     0.3,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexWorkspaceTool returns the tool definition for index_workspace
func indexWorkspaceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_workspace",
		Description: "Index the configured workspace to make it searchable",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexFileTool returns the tool definition for index_file
func indexFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_file",
		Description: "Re-index a single file after it changed on disk",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative or absolute path of the file",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getCostSummaryTool returns the tool definition for get_cost_summary
func getCostSummaryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_cost_summary",
		Description: "Report accumulated context-generation and embedding spend",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getIndexInfoTool returns the tool definition for get_index_info
func getIndexInfoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_index_info",
		Description: "Query index size and indexing progress",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
