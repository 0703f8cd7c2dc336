package catalyst

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
)

// errWriter fails every write with a fixed error.
type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestWriteSSE(t *testing.T) {
	ev := NewEvent(EventFinalSolution, map[string]any{"solution": "done"}, nil)

	var buf bytes.Buffer
	if err := WriteSSE(&buf, ev); err != nil {
		t.Fatalf("WriteSSE() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "data: ") {
		t.Errorf("output %q does not start with %q", out, "data: ")
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Errorf("output %q does not end with blank line", out)
	}

	var decoded Event
	payload := strings.TrimSuffix(strings.TrimPrefix(out, "data: "), "\n\n")
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.ID != ev.ID {
		t.Errorf("decoded ID = %q, want %q", decoded.ID, ev.ID)
	}
	if decoded.Type != EventFinalSolution {
		t.Errorf("decoded Type = %q, want %q", decoded.Type, EventFinalSolution)
	}
	if decoded.Data["solution"] != "done" {
		t.Errorf("decoded Data[solution] = %v, want %q", decoded.Data["solution"], "done")
	}
}

func TestWriteSSEMarshalError(t *testing.T) {
	// Channels cannot be marshalled to JSON.
	ev := NewEvent(EventToolOutput, map[string]any{"bad": make(chan int)}, nil)

	var buf bytes.Buffer
	err := WriteSSE(&buf, ev)
	if err == nil {
		t.Fatal("expected marshal error, got nil")
	}
	if !strings.Contains(err.Error(), "marshal event") {
		t.Errorf("error = %q, want marshal event mention", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes despite marshal error, want 0", buf.Len())
	}
}

func TestWriteSSEWriteError(t *testing.T) {
	ev := NewEvent(EventToolInput, map[string]any{"tool_name": "calculator"}, nil)

	err := WriteSSE(errWriter{}, ev)
	if err == nil {
		t.Fatal("expected write error, got nil")
	}
	if !strings.Contains(err.Error(), "write event") {
		t.Errorf("error = %q, want write event mention", err)
	}
}

func TestSSEHeaders(t *testing.T) {
	h := make(http.Header)
	SSEHeaders(h)

	want := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for key, val := range want {
		if got := h.Get(key); got != val {
			t.Errorf("header %s = %q, want %q", key, got, val)
		}
	}
}
