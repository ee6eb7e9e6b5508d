package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts a streaming response: chunks are delivered in order,
// then err (if any) terminates the invocation.
type fakeClient struct {
	chunks []string
	err    error
}

func (f *fakeClient) Stream(_ context.Context, _ Request, onChunk ChunkFunc) (string, error) {
	var full string
	for _, c := range f.chunks {
		full += c
		if onChunk != nil {
			onChunk(Chunk{Text: c})
		}
	}
	return full, f.err
}

func (f *fakeClient) Complete(ctx context.Context, req Request) (string, error) {
	return f.Stream(ctx, req, nil)
}

func TestTask_StreamingRun(t *testing.T) {
	var received []Chunk
	task := NewTask("summary", CapabilityReadOnly, Request{Prompt: "summarize"})
	task.OnChunk = func(c Chunk) { received = append(received, c) }

	task.Run(context.Background(), &fakeClient{chunks: []string{"hello ", "world"}})

	assert.Equal(t, StatusSuccess, task.Status())
	text, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	require.Len(t, received, 2)
	assert.Equal(t, "hello ", received[0].Text)
	assert.Equal(t, "world", received[1].Text)
}

func TestTask_ThinkingFlagPropagates(t *testing.T) {
	var received []Chunk
	task := NewTask("analysis", CapabilityReadOnly, Request{Prompt: "analyze"})
	task.Thinking = true
	task.OnChunk = func(c Chunk) { received = append(received, c) }

	task.Run(context.Background(), &fakeClient{chunks: []string{"reasoning..."}})

	require.Len(t, received, 1)
	assert.True(t, received[0].Thinking)
}

func TestTask_AwaitableRun(t *testing.T) {
	task := NewTask("resolve", CapabilityReadOnly, Request{Prompt: "dates"})

	task.Run(context.Background(), &fakeClient{chunks: []string{"{\"startDate\":\"2024-01-01\"}"}})

	assert.Equal(t, StatusSuccess, task.Status())
	text, err := task.Result()
	require.NoError(t, err)
	assert.Contains(t, text, "startDate")
}

func TestTask_ErrorIsTerminal(t *testing.T) {
	task := NewTask("failing", CapabilityReadOnly, Request{Prompt: "x"})
	task.OnChunk = func(Chunk) {}

	task.Run(context.Background(), &fakeClient{chunks: []string{"partial"}, err: errors.New("upstream timeout")})

	assert.Equal(t, StatusError, task.Status())
	text, err := task.Result()
	assert.Error(t, err)
	assert.Equal(t, "partial", text, "partial output kept for diagnostics")
}

func TestTask_StartsPending(t *testing.T) {
	task := NewTask("idle", CapabilityUnrestricted, Request{})
	assert.Equal(t, StatusPending, task.Status())
}
