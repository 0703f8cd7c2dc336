package catalyst

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WriteSSE writes one event in Server-Sent Events framing: a single
// "data:" line holding the JSON-encoded event, then a blank line.
func WriteSSE(w io.Writer, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	return nil
}

// SSEHeaders sets the response headers for an SSE stream.
func SSEHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
