package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"brightwell/internal/storage"
	"brightwell/internal/tools/external"
)

const generateImageSchema = `{
	"type": "object",
	"properties": {
		"prompt": {
			"type": "string",
			"minLength": 1,
			"description": "Description of the image to generate"
		},
		"size": {
			"type": "string",
			"enum": ["512x512", "1024x1024", "1792x1024"],
			"description": "Output dimensions (default 1024x1024)"
		}
	},
	"required": ["prompt"],
	"additionalProperties": false
}`

// GenerateImageTool generates an image from a prompt, uploads it to blob
// storage, and returns the public URL.
type GenerateImageTool struct {
	backend external.ImageBackend
	store   storage.BlobStore
	config  *Config
	logger  *slog.Logger
}

// NewGenerateImageTool creates an image generation tool.
func NewGenerateImageTool(backend external.ImageBackend, store storage.BlobStore, config *Config, logger *slog.Logger) *GenerateImageTool {
	if config == nil {
		config = DefaultConfig()
	}
	return &GenerateImageTool{
		backend: backend,
		store:   store,
		config:  config,
		logger:  logger.With(slog.String("tool", "generate_image")),
	}
}

func (t *GenerateImageTool) Spec() Spec {
	return Spec{
		Name:        "generate_image",
		Description: "Generate an image from a text prompt. Returns a URL the client can display inline.",
		InputSchema: json.RawMessage(generateImageSchema),
	}
}

func (t *GenerateImageTool) Execute(ctx context.Context, inv *Invocation) Result {
	prompt := stringArg(inv.Args, "prompt")

	size := stringArg(inv.Args, "size")
	if size == "" {
		size = "1024x1024"
	}
	if !slices.Contains(t.config.ImageSizes, size) {
		return Fail("unsupported image size", fmt.Sprintf("size %q is not available", size))
	}

	inv.Notify("image-generation-started", map[string]any{"prompt": prompt, "size": size})

	data, mediaType, err := t.backend.GenerateImage(ctx, prompt, size)
	if err != nil {
		t.logger.WarnContext(ctx, "image generation failed", slog.Any("error", err))
		return Fail("image generation failed", err.Error())
	}

	key := fmt.Sprintf("images/%s%s", uuid.New(), extensionFor(mediaType))
	url, err := t.store.Put(ctx, key, mediaType, data)
	if err != nil {
		t.logger.WarnContext(ctx, "image upload failed", slog.String("key", key), slog.Any("error", err))
		return Fail("failed to store generated image", err.Error())
	}

	// Push the URL over the side channel so the client can render the image
	// before the model finishes narrating the turn.
	inv.Notify("image-ready", map[string]any{"url": url, "media_type": mediaType})

	return Ok("image generated", map[string]any{
		"url":        url,
		"media_type": mediaType,
		"size":       size,
	})
}

func extensionFor(mediaType string) string {
	switch {
	case strings.Contains(mediaType, "png"):
		return ".png"
	case strings.Contains(mediaType, "jpeg"), strings.Contains(mediaType, "jpg"):
		return ".jpg"
	case strings.Contains(mediaType, "webp"):
		return ".webp"
	case strings.Contains(mediaType, "mpeg"), strings.Contains(mediaType, "mp3"):
		return ".mp3"
	case strings.Contains(mediaType, "wav"):
		return ".wav"
	case strings.Contains(mediaType, "ogg"):
		return ".ogg"
	default:
		return ""
	}
}
