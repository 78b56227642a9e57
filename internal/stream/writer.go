package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Writer delivers events onto one HTTP response in strict emission order.
// Send is safe for concurrent use: the model loop and tool side-channel
// emitters interleave on the same writer, serialized by the mutex, so the
// client observes events exactly as they were emitted server-side.
//
// A failed write marks the client as gone and cancels the turn context;
// later sends are swallowed so in-flight tools finish undisturbed.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	cancel  context.CancelFunc
	failed  bool
}

// NewWriter prepares an HTTP response for streaming and returns a Writer
// bound to it. Headers are flushed immediately: from this point every
// failure is reported in-band.
func NewWriter(w http.ResponseWriter, cancel context.CancelFunc) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher, cancel: cancel}, nil
}

// NewWriterTo builds a Writer over a plain io.Writer. Used by tests and the
// CLI reducer where no HTTP machinery is involved.
func NewWriterTo(w io.Writer, cancel context.CancelFunc) *Writer {
	if cancel == nil {
		cancel = func() {}
	}
	return &Writer{w: w, cancel: cancel}
}

// Send frames and writes one event, then flushes. Returns the write error,
// if any; callers that cannot act on it may ignore it since the context is
// cancelled on failure anyway.
func (s *Writer) Send(kind string, data interface{}) error {
	frame, err := Format(kind, data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		return fmt.Errorf("client disconnected")
	}

	if _, err := io.WriteString(s.w, frame); err != nil {
		s.failed = true
		s.cancel()
		return fmt.Errorf("write event: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}

	return nil
}

// Failed reports whether the client is gone.
func (s *Writer) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
