package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"brightwell/internal/llm"
)

const (
	titleMaxChars = 80
	titleTimeout  = 10 * time.Second
)

const titleSystemPrompt = `Generate a short title for a conversation that starts with the following user message. At most 8 words, no quotes, no trailing punctuation, same language as the message. Reply with the title only.`

// TitleGenerator produces conversation titles from the first user message.
// Generation is best-effort: any failure falls back to a truncation of the
// message itself so conversation creation never blocks on the model.
type TitleGenerator struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// NewTitleGenerator creates a title generator using the given model.
func NewTitleGenerator(provider llm.Provider, model string, logger *slog.Logger) *TitleGenerator {
	return &TitleGenerator{provider: provider, model: model, logger: logger}
}

// Generate returns a title for a conversation opening with userText.
func (g *TitleGenerator) Generate(ctx context.Context, userText string) string {
	fallback := truncateTitle(userText)
	if g.provider == nil || g.model == "" || strings.TrimSpace(userText) == "" {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	title, err := g.provider.Complete(ctx, llm.Request{
		Model:     g.model,
		System:    titleSystemPrompt,
		Messages:  []llm.Message{{Role: "user", Text: userText}},
		MaxTokens: 64,
	})
	if err != nil {
		g.logger.WarnContext(ctx, "title generation failed, using fallback", slog.Any("error", err))
		return fallback
	}

	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if title == "" {
		return fallback
	}
	return truncateTitle(title)
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "New conversation"
	}
	if utf8.RuneCountInString(s) <= titleMaxChars {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:titleMaxChars-1])) + "…"
}
