package llm

import (
	"context"
	"strings"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// WithReasoningExtraction wraps a provider so that text enclosed in
// <think>...</think> streams as reasoning fragments instead of text.
// Tags may arrive split across any number of deltas; the tag characters
// themselves never reach the caller. Models that emit native reasoning
// fragments pass through untouched.
func WithReasoningExtraction(p Provider) Provider {
	return &reasoningProvider{inner: p}
}

type reasoningProvider struct {
	inner Provider
}

func (r *reasoningProvider) Stream(ctx context.Context, req Request, emit func(Fragment)) (*Completion, error) {
	scanner := newTagScanner()

	comp, err := r.inner.Stream(ctx, req, func(f Fragment) {
		if f.Kind != FragmentText {
			emit(f)
			return
		}
		for _, out := range scanner.feed(f.Text) {
			emit(out)
		}
	})
	if err != nil {
		return nil, err
	}

	for _, out := range scanner.flush() {
		emit(out)
	}

	comp.Text = scanner.text.String()
	if reasoning := scanner.reasoning.String(); reasoning != "" {
		comp.Reasoning = reasoning
	}
	return comp, nil
}

func (r *reasoningProvider) Complete(ctx context.Context, req Request) (string, error) {
	return r.inner.Complete(ctx, req)
}

// tagScanner splits a text stream on think tags. It holds back the longest
// suffix that could be the start of a tag, so a tag split across deltas is
// still recognized.
type tagScanner struct {
	buf       string
	inside    bool
	text      strings.Builder
	reasoning strings.Builder
}

func newTagScanner() *tagScanner {
	return &tagScanner{}
}

func (s *tagScanner) feed(chunk string) []Fragment {
	s.buf += chunk
	var out []Fragment

	for {
		tag := thinkOpenTag
		if s.inside {
			tag = thinkCloseTag
		}

		if idx := strings.Index(s.buf, tag); idx >= 0 {
			out = s.emit(out, s.buf[:idx])
			s.buf = s.buf[idx+len(tag):]
			s.inside = !s.inside
			continue
		}

		keep := partialTagSuffix(s.buf, tag)
		out = s.emit(out, s.buf[:len(s.buf)-keep])
		s.buf = s.buf[len(s.buf)-keep:]
		return out
	}
}

// flush drains whatever remains, including a held-back partial tag.
// An unclosed think block stays reasoning to the end.
func (s *tagScanner) flush() []Fragment {
	out := s.emit(nil, s.buf)
	s.buf = ""
	return out
}

func (s *tagScanner) emit(out []Fragment, text string) []Fragment {
	if text == "" {
		return out
	}
	if s.inside {
		s.reasoning.WriteString(text)
		return append(out, Fragment{Kind: FragmentReasoning, Text: text})
	}
	s.text.WriteString(text)
	return append(out, Fragment{Kind: FragmentText, Text: text})
}

// partialTagSuffix returns the length of the longest proper prefix of tag
// that s ends with.
func partialTagSuffix(s, tag string) int {
	max := len(tag) - 1
	if max > len(s) {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(s, tag[:k]) {
			return k
		}
	}
	return 0
}
