package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

const fetchPageSchema = `{
	"type": "object",
	"properties": {
		"url": {
			"type": "string",
			"minLength": 1,
			"description": "The http(s) URL of the page to fetch"
		}
	},
	"required": ["url"],
	"additionalProperties": false
}`

// FetchPageTool retrieves a web page and returns its content as markdown,
// truncated to a configured character budget.
type FetchPageTool struct {
	httpClient *http.Client
	converter  *md.Converter
	config     *Config
	logger     *slog.Logger
}

// NewFetchPageTool creates a page fetch tool.
func NewFetchPageTool(config *Config, logger *slog.Logger) *FetchPageTool {
	if config == nil {
		config = DefaultConfig()
	}
	return &FetchPageTool{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		converter:  md.NewConverter("", true, nil),
		config:     config,
		logger:     logger.With(slog.String("tool", "fetch_page")),
	}
}

func (t *FetchPageTool) Spec() Spec {
	return Spec{
		Name:        "fetch_page",
		Description: "Fetch a web page by URL and return its readable content as markdown. Use after web_search to read a promising result in full.",
		InputSchema: json.RawMessage(fetchPageSchema),
	}
}

func (t *FetchPageTool) Execute(ctx context.Context, inv *Invocation) Result {
	rawURL := stringArg(inv.Args, "url")

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Fail("invalid url", fmt.Sprintf("%q is not an absolute http(s) URL", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", parsed.String(), nil)
	if err != nil {
		return Fail("failed to build request", err.Error())
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("User-Agent", "brightwell-assistant/1.0")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.WarnContext(ctx, "fetch failed", slog.String("url", rawURL), slog.Any("error", err))
		return Fail("failed to fetch page", err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Fail("page returned an error status", fmt.Sprintf("GET %s: %s", rawURL, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.config.FetchMaxBodyBytes))
	if err != nil {
		return Fail("failed to read page body", err.Error())
	}

	content := t.render(resp.Header.Get("Content-Type"), body)
	truncated := false
	if utf8.RuneCountInString(content) > t.config.FetchMaxChars {
		content = truncateRunes(content, t.config.FetchMaxChars)
		truncated = true
	}

	return Ok(fmt.Sprintf("fetched %s", rawURL), map[string]any{
		"url":       rawURL,
		"content":   content,
		"truncated": truncated,
	})
}

// render converts HTML to markdown; non-HTML bodies pass through as text.
func (t *FetchPageTool) render(contentType string, body []byte) string {
	if strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml") {
		markdown, err := t.converter.ConvertString(string(body))
		if err == nil {
			return strings.TrimSpace(markdown)
		}
	}
	return strings.TrimSpace(string(body))
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "\n\n[content truncated]"
}
