package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchPageTool(t *testing.T) {
	ctx := context.Background()

	t.Run("html renders as markdown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<html><body><h1>Programs</h1><p>We teach <strong>reading</strong>.</p></body></html>`))
		}))
		defer srv.Close()

		tool := NewFetchPageTool(nil, discardLogger())
		result := tool.Execute(ctx, &Invocation{Args: map[string]any{"url": srv.URL}})
		if !result.OK {
			t.Fatalf("expected success, got %s", result.Detail)
		}

		content, _ := result.Payload["content"].(string)
		if !strings.Contains(content, "# Programs") {
			t.Errorf("expected markdown heading, got %q", content)
		}
		if strings.Contains(content, "<h1>") {
			t.Error("content still contains raw HTML")
		}
	})

	t.Run("non-2xx status fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		tool := NewFetchPageTool(nil, discardLogger())
		result := tool.Execute(ctx, &Invocation{Args: map[string]any{"url": srv.URL}})
		if result.OK {
			t.Fatal("expected failure for 404")
		}
	})

	t.Run("content is truncated to the character budget", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(strings.Repeat("a", 100)))
		}))
		defer srv.Close()

		cfg := DefaultConfig()
		cfg.FetchMaxChars = 10
		tool := NewFetchPageTool(cfg, discardLogger())

		result := tool.Execute(ctx, &Invocation{Args: map[string]any{"url": srv.URL}})
		if !result.OK {
			t.Fatalf("expected success, got %s", result.Detail)
		}
		if result.Payload["truncated"] != true {
			t.Error("expected truncated flag")
		}
		content, _ := result.Payload["content"].(string)
		if !strings.HasPrefix(content, strings.Repeat("a", 10)) {
			t.Errorf("unexpected truncation: %q", content)
		}
	})

	t.Run("rejects non-http urls", func(t *testing.T) {
		tool := NewFetchPageTool(nil, discardLogger())
		for _, bad := range []string{"ftp://example.org", "not a url", "/relative"} {
			result := tool.Execute(ctx, &Invocation{Args: map[string]any{"url": bad}})
			if result.OK {
				t.Errorf("%q: expected failure", bad)
			}
		}
	})
}
