package stream

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSink captures frames for assertions. failAfter >= 0 makes the
// (failAfter+1)-th WriteEvent fail, simulating a client disconnect.
type recordSink struct {
	mu        sync.Mutex
	events    [][]byte
	doneCount int
	failAfter int
}

func newRecordSink() *recordSink {
	return &recordSink{failAfter: -1}
}

func (r *recordSink) WriteEvent(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAfter >= 0 && len(r.events) >= r.failAfter {
		return errors.New("broken pipe")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	r.events = append(r.events, cp)
	return nil
}

func (r *recordSink) WriteDone() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAfter >= 0 && len(r.events) >= r.failAfter {
		return errors.New("broken pipe")
	}
	r.doneCount++
	return nil
}

func (r *recordSink) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestSession_EmitAndClose(t *testing.T) {
	sink := newRecordSink()
	sess := NewSession(sink)

	sess.Emit(NewInit("starting"))
	sess.Emit(NewText("hello"))
	sess.Close()

	assert.Equal(t, 2, sink.eventCount())
	assert.Equal(t, 1, sink.doneCount)
	assert.True(t, sess.Closed())
	assert.JSONEq(t, `{"type":"init","info":"starting"}`, string(sink.events[0]))
	assert.JSONEq(t, `{"type":"text","text":"hello"}`, string(sink.events[1]))
}

func TestSession_NoWriteAfterClose(t *testing.T) {
	sink := newRecordSink()
	sess := NewSession(sink)

	sess.Close()

	for i := 0; i < 10; i++ {
		sess.Emit(NewText("dropped"))
	}

	assert.Equal(t, 0, sink.eventCount())
	assert.Equal(t, 1, sink.doneCount)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	sink := newRecordSink()
	sess := NewSession(sink)

	sess.Close()
	sess.Close()
	sess.Close()

	assert.Equal(t, 1, sink.doneCount, "terminator must be written exactly once")
}

func TestSession_TransportFailureAbsorbed(t *testing.T) {
	sink := newRecordSink()
	sink.failAfter = 1
	sess := NewSession(sink)

	sess.Emit(NewText("first"))

	// Second write fails; the session must absorb it and go closed.
	require.NotPanics(t, func() {
		sess.Emit(NewText("second"))
	})
	assert.True(t, sess.Closed())

	// Further emits are no-ops, not retries.
	sess.Emit(NewText("third"))
	assert.Equal(t, 1, sink.eventCount())
}

func TestSession_FailEmitsErrorThenCloses(t *testing.T) {
	sink := newRecordSink()
	sess := NewSession(sink)

	sess.Fail("something broke")

	require.Equal(t, 1, sink.eventCount())
	assert.JSONEq(t, `{"type":"error","error":"something broke"}`, string(sink.events[0]))
	assert.Equal(t, 1, sink.doneCount)
	assert.True(t, sess.Closed())
}

func TestSession_ConcurrentProducers(t *testing.T) {
	sink := newRecordSink()
	sess := NewSession(sink)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sess.Emit(NewText("chunk"))
			}
		}()
	}
	wg.Wait()
	sess.Close()

	assert.Equal(t, 200, sink.eventCount())
	assert.Equal(t, 1, sink.doneCount)
}

func TestMarshal_DraftUpdateFlattensDelta(t *testing.T) {
	ev := NewDraftUpdate("add_tasklist", map[string]any{
		"tasklist": map[string]any{"id": "tl-1", "name": "Backend"},
	})

	data, err := Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"draft_update","action":"add_tasklist","tasklist":{"id":"tl-1","name":"Backend"}}`,
		string(data))
}

func TestMarshal_AllVariants(t *testing.T) {
	events := []Event{
		NewInit("i"),
		NewThinking("t"),
		NewText("x"),
		NewResult("r", true),
		NewVisualization(map[string]any{"kind": "bar"}),
		NewDraftInit(map[string]any{"finalized": false}),
		NewDraftUpdate("add_entry", nil),
		NewDraftComplete("ok"),
		NewError("e"),
		NewDone(),
	}
	for _, ev := range events {
		data, err := Marshal(ev)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"type"`)
	}
}
