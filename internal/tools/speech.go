package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"brightwell/internal/storage"
	"brightwell/internal/tools/external"
)

const generateSpeechSchema = `{
	"type": "object",
	"properties": {
		"text": {
			"type": "string",
			"minLength": 1,
			"description": "The text to speak"
		},
		"voice": {
			"type": "string",
			"enum": ["alloy", "verse", "sage"],
			"description": "Voice to use (default alloy)"
		}
	},
	"required": ["text"],
	"additionalProperties": false
}`

// GenerateSpeechTool synthesizes speech for a text, uploads the audio to
// blob storage, and returns the public URL.
type GenerateSpeechTool struct {
	backend external.SpeechBackend
	store   storage.BlobStore
	config  *Config
	logger  *slog.Logger
}

// NewGenerateSpeechTool creates a speech synthesis tool.
func NewGenerateSpeechTool(backend external.SpeechBackend, store storage.BlobStore, config *Config, logger *slog.Logger) *GenerateSpeechTool {
	if config == nil {
		config = DefaultConfig()
	}
	return &GenerateSpeechTool{
		backend: backend,
		store:   store,
		config:  config,
		logger:  logger.With(slog.String("tool", "generate_speech")),
	}
}

func (t *GenerateSpeechTool) Spec() Spec {
	return Spec{
		Name:        "generate_speech",
		Description: "Convert text to spoken audio. Returns a URL the client can play inline.",
		InputSchema: json.RawMessage(generateSpeechSchema),
	}
}

func (t *GenerateSpeechTool) Execute(ctx context.Context, inv *Invocation) Result {
	text := stringArg(inv.Args, "text")

	voice := stringArg(inv.Args, "voice")
	if voice == "" {
		voice = t.config.Voices[0]
	}
	if !slices.Contains(t.config.Voices, voice) {
		return Fail("unsupported voice", fmt.Sprintf("voice %q is not available", voice))
	}

	inv.Notify("speech-synthesis-started", map[string]any{"voice": voice})

	data, mediaType, err := t.backend.SynthesizeSpeech(ctx, text, voice)
	if err != nil {
		t.logger.WarnContext(ctx, "speech synthesis failed", slog.Any("error", err))
		return Fail("speech synthesis failed", err.Error())
	}

	key := fmt.Sprintf("audio/%s%s", uuid.New(), extensionFor(mediaType))
	url, err := t.store.Put(ctx, key, mediaType, data)
	if err != nil {
		t.logger.WarnContext(ctx, "audio upload failed", slog.String("key", key), slog.Any("error", err))
		return Fail("failed to store generated audio", err.Error())
	}

	inv.Notify("speech-ready", map[string]any{"url": url, "media_type": mediaType})

	return Ok("speech generated", map[string]any{
		"url":        url,
		"media_type": mediaType,
		"voice":      voice,
	})
}
