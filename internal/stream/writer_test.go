package stream

import (
	"bytes"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestFormat(t *testing.T) {
	frame, err := Format(KindTextDelta, TextDeltaEvent{Delta: "hi"})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	want := "event: text-delta\ndata: {\"delta\":\"hi\"}\n\n"
	if frame != want {
		t.Errorf("frame = %q, want %q", frame, want)
	}
}

func TestWriter_SendsFramesInOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo(&buf, nil)

	_ = w.Send(KindTextDelta, TextDeltaEvent{Delta: "a"})
	_ = w.Send(KindToolCallStart, ToolCallStartEvent{ToolCallID: "c1", ToolName: "web_search"})
	_ = w.Send(KindFinish, FinishEvent{Reason: "stop"})

	out := buf.String()
	first := strings.Index(out, "event: text-delta")
	second := strings.Index(out, "event: tool-call-start")
	third := strings.Index(out, "event: finish")
	if first < 0 || second < 0 || third < 0 || !(first < second && second < third) {
		t.Errorf("events out of order:\n%s", out)
	}
}

func TestWriter_ConcurrentSendsDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo(&buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = w.Send(KindData, DataEvent{Name: fmt.Sprintf("ev-%d", n)})
		}(i)
	}
	wg.Wait()

	// Every frame must be intact: event line, data line, blank line.
	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	if len(frames) != 20 {
		t.Fatalf("got %d frames, want 20", len(frames))
	}
	for _, frame := range frames {
		lines := strings.Split(frame, "\n")
		if len(lines) != 2 || !strings.HasPrefix(lines[0], "event: data") || !strings.HasPrefix(lines[1], "data: ") {
			t.Errorf("torn frame: %q", frame)
		}
	}
}

type failingWriter struct {
	failAfter int
	writes    int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	if f.writes > f.failAfter {
		return 0, errors.New("client gone")
	}
	return len(p), nil
}

func TestWriter_FailureCancelsAndSwallows(t *testing.T) {
	cancelled := false
	fw := &failingWriter{failAfter: 1}
	w := NewWriterTo(fw, func() { cancelled = true })

	if err := w.Send(KindTextDelta, TextDeltaEvent{Delta: "ok"}); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := w.Send(KindTextDelta, TextDeltaEvent{Delta: "boom"}); err == nil {
		t.Fatal("expected write error")
	}
	if !cancelled {
		t.Error("write failure must cancel the turn context")
	}
	if !w.Failed() {
		t.Error("writer should report failed")
	}

	// Later sends are swallowed, not retried against a dead client.
	writesBefore := fw.writes
	_ = w.Send(KindTextDelta, TextDeltaEvent{Delta: "later"})
	if fw.writes != writesBefore {
		t.Error("send after failure still hit the underlying writer")
	}
}

func TestNewWriter_SetsSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec, func() {})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	_ = w.Send(KindFinish, FinishEvent{Reason: "stop"})
	if !strings.Contains(rec.Body.String(), "event: finish") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
