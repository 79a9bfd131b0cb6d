package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	ToolAsk               = "ask"
	ToolSearchDocuments   = "search_documents"
	ToolMatchSymptoms     = "match_symptoms"
	ToolCompareDrugs      = "compare_drugs"
	ToolListConditions    = "list_conditions"
	ToolDrugsForCondition = "drugs_for_condition"
	ToolGetStatus         = "get_status"
	ToolSuggestDrugs      = "suggest_drugs"
	ToolResetSession      = "reset_session"
)

// askTool returns the tool definition for ask
func askTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolAsk,
		Description: "Answer a natural-language question about drugs, side effects or symptoms. Follow-up questions may refer to the last mentioned drug as \"it\" within the same session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The question, e.g. \"What is sumatriptan used for?\"",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation id. Defaults to the MCP client session.",
				},
			},
			Required: []string{"query"},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSearchDocuments,
		Description: "Retrieve drug information passages without generating an answer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "hybrid (dense then keyword, de-duplicated), dense (semantic only) or sparse (BM25 only)",
					"enum":        []string{"hybrid", "dense", "sparse"},
					"default":     "hybrid",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of passages to return (1-50)",
					"default":     4,
					"minimum":     1,
					"maximum":     50,
				},
				"drug": map[string]interface{}{
					"type":        "string",
					"description": "Restrict dense results to this drug name",
				},
			},
			Required: []string{"query"},
		},
	}
}

// matchSymptomsTool returns the tool definition for match_symptoms
func matchSymptomsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolMatchSymptoms,
		Description: "Rank drugs for symptoms by similarity to their medical conditions. Separate symptoms with \" and \".",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Symptom description, e.g. \"headache and nausea\"",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Candidates per symptom (1-50)",
					"default":     3,
					"minimum":     1,
					"maximum":     50,
				},
			},
			Required: []string{"query"},
		},
	}
}

// compareDrugsTool returns the tool definition for compare_drugs
func compareDrugsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolCompareDrugs,
		Description: "Compare uses, side effects and warnings of two drugs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"drug_a": map[string]interface{}{
					"type":        "string",
					"description": "First drug name",
				},
				"drug_b": map[string]interface{}{
					"type":        "string",
					"description": "Second drug name",
				},
			},
			Required: []string{"drug_a", "drug_b"},
		},
	}
}

// listConditionsTool returns the tool definition for list_conditions
func listConditionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolListConditions,
		Description: "List every medical condition in the drug database",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// drugsForConditionTool returns the tool definition for drugs_for_condition
func drugsForConditionTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolDrugsForCondition,
		Description: "List the drugs indicated for a medical condition",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"condition": map[string]interface{}{
					"type":        "string",
					"description": "Medical condition as returned by list_conditions",
				},
			},
			Required: []string{"condition"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetStatus,
		Description: "Report index statistics and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// suggestDrugsTool returns the tool definition for suggest_drugs
func suggestDrugsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSuggestDrugs,
		Description: "Suggest medications for a free-text symptom description, with a short explanation for each",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"symptoms": map[string]interface{}{
					"type":        "string",
					"description": "Symptom description, e.g. \"throbbing headache with light sensitivity\"",
				},
			},
			Required: []string{"symptoms"},
		},
	}
}

// resetSessionTool returns the tool definition for reset_session
func resetSessionTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolResetSession,
		Description: "Forget the last mentioned drug of a conversation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation id. Defaults to the MCP client session.",
				},
			},
		},
	}
}
