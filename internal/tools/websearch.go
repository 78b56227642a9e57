package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"brightwell/internal/tools/external"
)

const webSearchSchema = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"minLength": 1,
			"description": "The search query"
		},
		"max_results": {
			"type": "integer",
			"minimum": 1,
			"maximum": 10,
			"description": "Maximum number of results to return (default 5)"
		},
		"topic": {
			"type": "string",
			"enum": ["general", "news", "finance"],
			"description": "Search topic category"
		}
	},
	"required": ["query"],
	"additionalProperties": false
}`

// WebSearchTool queries an external search API and returns ranked results.
type WebSearchTool struct {
	client external.SearchClient
	config *Config
	logger *slog.Logger
}

// NewWebSearchTool creates a web search tool backed by the given client.
func NewWebSearchTool(client external.SearchClient, config *Config, logger *slog.Logger) *WebSearchTool {
	if config == nil {
		config = DefaultConfig()
	}
	return &WebSearchTool{
		client: client,
		config: config,
		logger: logger.With(slog.String("tool", "web_search")),
	}
}

func (t *WebSearchTool) Spec() Spec {
	return Spec{
		Name:        "web_search",
		Description: "Search the web for current information. Returns a ranked list of results with titles, URLs and snippets.",
		InputSchema: json.RawMessage(webSearchSchema),
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, inv *Invocation) Result {
	query := stringArg(inv.Args, "query")

	limit := intArg(inv.Args, "max_results", t.config.WebSearchDefaultLimit)
	if limit > t.config.WebSearchMaxLimit {
		limit = t.config.WebSearchMaxLimit
	}

	opts := external.SearchOptions{
		MaxResults: limit,
		Topic:      stringArg(inv.Args, "topic"),
	}

	resp, err := t.client.Search(ctx, query, opts)
	if err != nil {
		t.logger.WarnContext(ctx, "search failed", slog.String("query", query), slog.Any("error", err))
		return Fail("web search failed", err.Error())
	}

	results := make([]map[string]any, len(resp.Results))
	for i, r := range resp.Results {
		entry := map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"snippet": r.Snippet,
		}
		if r.PublishedAt != nil {
			entry["published_at"] = r.PublishedAt.Format("2006-01-02")
		}
		results[i] = entry
	}

	// Zero hits is a successful search, not a failure.
	return Ok(fmt.Sprintf("found %d results for %q", len(results), query), map[string]any{
		"query":   query,
		"results": results,
	})
}
