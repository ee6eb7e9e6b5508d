package stream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush,
// which makes server push impossible.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// SSESink frames events as server-sent `data:` lines over a chunked HTTP
// response and flushes after every write so the client sees progress
// immediately.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares the response for SSE delivery and returns the sink.
// Headers are written immediately.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSESink{w: w, flusher: flusher}, nil
}

// WriteEvent writes one `data: <json>` frame.
func (s *SSESink) WriteEvent(data []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteDone writes the literal stream terminator.
func (s *SSESink) WriteDone() error {
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
