package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlhq/prowl/pkg/agent"
	"github.com/prowlhq/prowl/pkg/safety"
	"github.com/prowlhq/prowl/pkg/stream"
)

// memorySink records decoded event frames in emission order.
type memorySink struct {
	mu     sync.Mutex
	events []map[string]any
	done   bool
}

func (m *memorySink) WriteEvent(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	m.events = append(m.events, obj)
	return nil
}

func (m *memorySink) WriteDone() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = true
	return nil
}

func (m *memorySink) all() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.events...)
}

func (m *memorySink) typed(eventType string) []map[string]any {
	var out []map[string]any
	for _, e := range m.all() {
		if e["type"] == eventType {
			out = append(out, e)
		}
	}
	return out
}

// script describes one fake invocation, selected by prompt.
type script struct {
	chunks []string
	delay  time.Duration // pause before each chunk
	err    error
}

type scriptedClient struct {
	scripts map[string]script
}

func (s *scriptedClient) Stream(ctx context.Context, req agent.Request, onChunk agent.ChunkFunc) (string, error) {
	sc := s.scripts[req.Prompt]
	var full string
	for _, c := range sc.chunks {
		if sc.delay > 0 {
			select {
			case <-time.After(sc.delay):
			case <-ctx.Done():
				return full, ctx.Err()
			}
		}
		full += c
		if onChunk != nil {
			onChunk(agent.Chunk{Text: c})
		}
	}
	return full, sc.err
}

func (s *scriptedClient) Complete(ctx context.Context, req agent.Request) (string, error) {
	return s.Stream(ctx, req, nil)
}

func runJoin(t *testing.T, client agent.ModelClient, tasks []*agent.Task) (CombinedResult, *memorySink) {
	t.Helper()
	sink := &memorySink{}
	session := stream.NewSession(sink)
	o := New(client, safety.NewValidator())
	combined := o.Run(context.Background(), tasks, session)
	return combined, sink
}

func TestOrchestrator_JoinCompleteness(t *testing.T) {
	client := &scriptedClient{scripts: map[string]script{
		"fast": {chunks: []string{"quick"}, delay: 5 * time.Millisecond},
		"slow": {chunks: []string{"slow-a ", "slow-b"}, delay: 40 * time.Millisecond},
	}}
	tasks := []*agent.Task{
		agent.NewTask("fast", agent.CapabilityReadOnly, agent.Request{Prompt: "fast"}),
		agent.NewTask("slow", agent.CapabilityReadOnly, agent.Request{Prompt: "slow"}),
	}

	combined, sink := runJoin(t, client, tasks)

	// The combined result only exists after both tasks settled.
	assert.False(t, combined.Failed)
	assert.Equal(t, agent.StatusSuccess, combined.Results["fast"].Status)
	assert.Equal(t, agent.StatusSuccess, combined.Results["slow"].Status)

	// All chunk events precede the final result event.
	events := sink.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "result", last["type"])
	assert.Len(t, sink.typed("text"), 3)

	// Combined text keeps task declaration order regardless of finish order.
	assert.Equal(t, "quick\n\nslow-a slow-b", combined.Text)
	assert.Equal(t, combined.Text, last["text"])
	assert.Equal(t, true, last["final"])
}

func TestOrchestrator_PerTaskChunkOrderPreserved(t *testing.T) {
	client := &scriptedClient{scripts: map[string]script{
		"a": {chunks: []string{"a1|", "a2|", "a3|"}, delay: time.Millisecond},
		"b": {chunks: []string{"b1|", "b2|", "b3|"}, delay: time.Millisecond},
	}}
	tasks := []*agent.Task{
		agent.NewTask("a", agent.CapabilityReadOnly, agent.Request{Prompt: "a"}),
		agent.NewTask("b", agent.CapabilityReadOnly, agent.Request{Prompt: "b"}),
	}

	_, sink := runJoin(t, client, tasks)

	// Interleaving between a and b is unspecified; within each task the
	// chunk sequence must be intact.
	var aSeq, bSeq []string
	for _, e := range sink.typed("text") {
		text := e["text"].(string)
		switch text[0] {
		case 'a':
			aSeq = append(aSeq, text)
		case 'b':
			bSeq = append(bSeq, text)
		}
	}
	assert.Equal(t, []string{"a1|", "a2|", "a3|"}, aSeq)
	assert.Equal(t, []string{"b1|", "b2|", "b3|"}, bSeq)
}

func TestOrchestrator_WaitsForSiblingOfFailedTask(t *testing.T) {
	client := &scriptedClient{scripts: map[string]script{
		"failing": {err: errors.New("upstream timeout")},
		"slow":    {chunks: []string{"still here"}, delay: 30 * time.Millisecond},
	}}
	tasks := []*agent.Task{
		agent.NewTask("failing", agent.CapabilityReadOnly, agent.Request{Prompt: "failing"}),
		agent.NewTask("slow", agent.CapabilityReadOnly, agent.Request{Prompt: "slow"}),
	}

	combined, sink := runJoin(t, client, tasks)

	// The slow sibling ran to completion despite the failure.
	assert.True(t, combined.Failed)
	assert.Equal(t, agent.StatusSuccess, combined.Results["slow"].Status)
	assert.Equal(t, agent.StatusError, combined.Results["failing"].Status)
	assert.Equal(t, "upstream timeout", combined.Results["failing"].Error)

	// Failure surfaces as an error event, not a result.
	assert.Empty(t, sink.typed("result"))
	require.Len(t, sink.typed("error"), 1)
}

func TestOrchestrator_UnsafeOutputSuppressed(t *testing.T) {
	client := &scriptedClient{scripts: map[string]script{
		"sneaky": {chunks: []string{"done: teamwork.tasks.create({...})"}},
	}}
	tasks := []*agent.Task{
		agent.NewTask("sneaky", agent.CapabilityReadOnly, agent.Request{Prompt: "sneaky"}),
	}

	combined, sink := runJoin(t, client, tasks)

	assert.True(t, combined.Unsafe)
	assert.Empty(t, sink.typed("result"), "unsafe content must not reach the client as a result")

	errs := sink.typed("error")
	require.Len(t, errs, 1)
	assert.NotContains(t, errs[0]["error"], "teamwork.tasks.create",
		"the error event must not leak the blocked content")
}

func TestOrchestrator_ThinkingChunksEmitAsThinking(t *testing.T) {
	client := &scriptedClient{scripts: map[string]script{
		"reason": {chunks: []string{"because..."}},
	}}
	task := agent.NewTask("reason", agent.CapabilityReadOnly, agent.Request{Prompt: "reason"})
	task.Thinking = true

	_, sink := runJoin(t, client, []*agent.Task{task})

	require.Len(t, sink.typed("thinking"), 1)
	assert.Empty(t, sink.typed("text"))
}

func TestOrchestrator_RespectsPreWiredCallback(t *testing.T) {
	client := &scriptedClient{scripts: map[string]script{
		"draft": {chunks: []string{"{\"action\":\"x\"}\n"}},
	}}
	task := agent.NewTask("draft", agent.CapabilityReadOnly, agent.Request{Prompt: "draft"})

	var captured []string
	task.OnChunk = func(c agent.Chunk) { captured = append(captured, c.Text) }

	_, sink := runJoin(t, client, []*agent.Task{task})

	assert.Equal(t, []string{"{\"action\":\"x\"}\n"}, captured)
	assert.Empty(t, sink.typed("text"), "pre-wired tasks bypass default chunk emission")
}
