package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func init() {
	Register("search_knowledge", func() Tool { return &searchKnowledgeTool{} })
}

type searchKnowledgeTool struct{}

func (searchKnowledgeTool) Name() string { return "search_knowledge" }

func (searchKnowledgeTool) Description() string {
	return "Search existing sql and knowledge about the active database. " +
		"Use whenever the user asks a question about their data, to look for existing " +
		"query patterns, or to understand metrics and terminology the user references."
}

func (searchKnowledgeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "The keyword search query to execute"
			}
		},
		"required": ["query"]
	}`)
}

func (searchKnowledgeTool) Execute(ctx context.Context, deps *Deps, call Call) (string, error) {
	if deps == nil {
		return "", fmt.Errorf("search_knowledge: no deps")
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(call.Input, &args); err != nil {
		return errorJSON(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return errorJSON("No query provided."), nil
	}
	if deps.KnowledgeManager == nil || deps.DatabaseName == "" {
		return errorJSON("Knowledge context is unavailable for this session. " +
			"Set an active database first."), nil
	}

	entries, err := deps.KnowledgeManager.Search(ctx, deps.DatabaseName, args.Query, 10)
	if err != nil {
		return errorJSON(fmt.Sprintf("Error searching knowledge: %v", err)), nil
	}

	results := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		results = append(results, map[string]string{
			"id":          entry.ID,
			"name":        entry.Name,
			"description": entry.Description,
			"sql":         entry.SQL,
			"source":      entry.Source,
		})
	}
	return mustJSON(map[string]any{
		"total_results": len(results),
		"results":       results,
	}), nil
}

func (searchKnowledgeTool) DisplaySpec() *DisplaySpec {
	return &DisplaySpec{
		Name: "Search Knowledge",
		Executing: ExecutingConfig{
			Message:  "Searching knowledge base",
			Icon:     "🔎",
			ShowArgs: []string{"query"},
		},
		Result: ResultConfig{
			Format:     "table",
			Title:      "Knowledge Matches ({total_results} total)",
			Items:      "results",
			ErrorField: "error",
			Table: &TableConfig{
				Columns: []ColumnDef{
					{Field: "name", Header: "Name", Style: "column.name"},
					{Field: "description", Header: "Description", Style: "column.type"},
					{Field: "sql", Header: "SQL", Style: "muted"},
					{Field: "source", Header: "Source", Style: "info"},
				},
				MaxRows: 20,
			},
		},
	}
}
