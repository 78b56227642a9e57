// Package external holds thin HTTP clients for the third-party backends the
// tools call out to: web search and media generation.
package external

import (
	"context"
	"time"
)

// SearchClient defines the interface for external search APIs.
type SearchClient interface {
	// Search performs a web search and returns results.
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
}

// SearchOptions configures search behavior.
type SearchOptions struct {
	MaxResults int
	Topic      string // "general", "news", or "finance"
}

// SearchResponse contains search results from the external API.
type SearchResponse struct {
	Results   []SearchResult
	Query     string
	Timestamp time.Time
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string
	URL         string
	Snippet     string
	PublishedAt *time.Time
	Score       float64
}

// ImageBackend generates an image for a prompt and returns the encoded bytes
// plus their media type. The generation model itself is a black box.
type ImageBackend interface {
	GenerateImage(ctx context.Context, prompt, size string) ([]byte, string, error)
}

// SpeechBackend synthesizes speech for a text and returns the encoded audio
// plus its media type.
type SpeechBackend interface {
	SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, string, error)
}
