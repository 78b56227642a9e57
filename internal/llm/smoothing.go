package llm

import "strings"

// Smoother regroups raw text and reasoning deltas onto word boundaries so
// clients render whole words instead of token fragments. Non-text fragments
// flush the pending buffer and pass through unchanged, preserving emission
// order. Not safe for concurrent use; one smoother per invocation.
type Smoother struct {
	emit    func(Fragment)
	pending string
	kind    string
}

// NewSmoother wraps emit with word-boundary regrouping.
func NewSmoother(emit func(Fragment)) *Smoother {
	return &Smoother{emit: emit}
}

// Feed accepts the next fragment.
func (s *Smoother) Feed(f Fragment) {
	if f.Kind != FragmentText && f.Kind != FragmentReasoning {
		s.Flush()
		s.emit(f)
		return
	}

	if f.Kind != s.kind {
		s.Flush()
		s.kind = f.Kind
	}
	s.pending += f.Text

	// Emit up to the last whitespace; the trailing partial word waits for
	// the delta that completes it.
	if idx := strings.LastIndexAny(s.pending, " \t\n"); idx >= 0 {
		s.emit(Fragment{Kind: s.kind, Text: s.pending[:idx+1]})
		s.pending = s.pending[idx+1:]
	}
}

// Flush emits whatever is buffered. Call once after the stream ends.
func (s *Smoother) Flush() {
	if s.pending == "" {
		return
	}
	s.emit(Fragment{Kind: s.kind, Text: s.pending})
	s.pending = ""
}
