package stream

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Sink is the transport a Session writes to. Implementations frame and
// deliver one serialized event per WriteEvent call; WriteDone delivers the
// stream terminator.
type Sink interface {
	WriteEvent(data []byte) error
	WriteDone() error
}

// Session owns one push stream. It is the only component allowed to write to
// the sink. Emit and Close are safe to call from multiple goroutines: the
// orchestrator multiplexes several producers into one session.
//
// Once closed — explicitly, or implicitly after a transport write failure —
// every subsequent Emit is a silent no-op. Transport failures are absorbed
// here and never propagated to producers.
type Session struct {
	id string

	mu     sync.Mutex
	closed bool
	sink   Sink
}

// NewSession creates a session over the given sink.
func NewSession(sink Sink) *Session {
	return &Session{
		id:   uuid.NewString(),
		sink: sink,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Emit serializes and writes one event. No-op after close. A failed
// transport write marks the session closed; the error is logged, not
// returned.
func (s *Session) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	data, err := Marshal(e)
	if err != nil {
		slog.Warn("Dropping unmarshalable stream event", "session_id", s.id, "error", err)
		return
	}

	if err := s.sink.WriteEvent(data); err != nil {
		// Client disconnected or the write failed. Absorb and go dark.
		slog.Warn("Stream write failed, closing session", "session_id", s.id, "error", err)
		s.closed = true
	}
}

// Close terminates the stream, writing the [DONE] sentinel if the transport
// is still alive. Idempotent: the second and later calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if err := s.sink.WriteDone(); err != nil {
		slog.Warn("Failed to write stream terminator", "session_id", s.id, "error", err)
	}
}

// Fail emits a terminal error event and closes the session. Used for every
// unrecoverable failure so the client never sees a silent hang.
func (s *Session) Fail(msg string) {
	s.Emit(NewError(msg))
	s.Close()
}

// Finish emits the done sentinel and closes the session. Normal-completion
// counterpart to Fail.
func (s *Session) Finish() {
	s.Emit(NewDone())
	s.Close()
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
