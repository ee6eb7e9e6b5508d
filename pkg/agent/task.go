// Package agent wraps a single model invocation as a Task: a declared
// capability set, an optional per-chunk callback, and a terminal status.
// Tasks are created per request, run to completion or failure, and are never
// retried at this layer.
package agent

import (
	"context"
	"sync"
)

// Capability restricts what a task's model invocation may do. A read-only
// task is given no tool or write surface at all — drafting text is its only
// possible effect. Unrestricted is reserved for human-gated flows.
type Capability string

const (
	CapabilityReadOnly     Capability = "read_only"
	CapabilityUnrestricted Capability = "unrestricted"
)

// Status is a task's terminal state.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Chunk is one streamed piece of model output, delivered in production
// order to the task's callback.
type Chunk struct {
	Text     string
	Thinking bool
}

// ChunkFunc receives streamed chunks. Callbacks for one task are invoked
// sequentially; ordering across tasks is unspecified.
type ChunkFunc func(Chunk)

// Request is the model invocation input.
type Request struct {
	System string
	Prompt string
}

// Task is one model invocation.
type Task struct {
	Name       string
	Capability Capability
	Request    Request

	// OnChunk, when set, receives partial output as it is produced and the
	// invocation streams. When nil the invocation is a single awaited call.
	OnChunk ChunkFunc

	// Thinking marks this task's streamed chunks as intermediate reasoning
	// rather than answer text.
	Thinking bool

	mu     sync.Mutex
	status Status
	result string
	err    error
}

// NewTask creates a pending task.
func NewTask(name string, capability Capability, req Request) *Task {
	return &Task{
		Name:       name,
		Capability: capability,
		Request:    req,
		status:     StatusPending,
	}
}

// Run executes the task against the client and records the terminal state.
// Blocks until the invocation settles. Safe to inspect from other goroutines
// once Run returns.
func (t *Task) Run(ctx context.Context, client ModelClient) {
	var (
		text string
		err  error
	)
	if t.OnChunk != nil {
		text, err = client.Stream(ctx, t.Request, func(c Chunk) {
			c.Thinking = t.Thinking
			t.OnChunk(c)
		})
	} else {
		text, err = client.Complete(ctx, t.Request)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.status = StatusError
		t.err = err
		t.result = text // partial output, kept for diagnostics
		return
	}
	t.status = StatusSuccess
	t.result = text
}

// Status returns the task's current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result returns the final text and error of a settled task.
func (t *Task) Result() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}
