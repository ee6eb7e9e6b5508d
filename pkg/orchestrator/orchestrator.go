// Package orchestrator runs a set of agent tasks concurrently against one
// stream session and joins their results.
//
// Policy (kept from the source system, documented as a choice rather than a
// proven requirement): a failed task never cancels a sibling. The join
// always waits for every task to settle, and safety validation runs exactly
// once on the combined text after the barrier.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/prowlhq/prowl/pkg/agent"
	"github.com/prowlhq/prowl/pkg/safety"
	"github.com/prowlhq/prowl/pkg/stream"
)

// TaskResult is one task's terminal value, keyed by task name in the
// combined result.
type TaskResult struct {
	Name   string       `json:"name"`
	Status agent.Status `json:"status"`
	Text   string       `json:"text,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// CombinedResult is the outcome of a join.
type CombinedResult struct {
	// Results holds each task's final value keyed by task name.
	Results map[string]TaskResult

	// Text is the concatenation of all succeeded tasks' final text, in task
	// declaration order.
	Text string

	// Failed is true when any task terminated with an error.
	Failed bool

	// Unsafe is true when the safety validator rejected the combined text.
	// The text was suppressed from the stream in that case.
	Unsafe bool
}

// Orchestrator coordinates parallel task execution over a shared session.
type Orchestrator struct {
	client    agent.ModelClient
	validator *safety.Validator
}

// New creates an orchestrator.
func New(client agent.ModelClient, validator *safety.Validator) *Orchestrator {
	return &Orchestrator{client: client, validator: validator}
}

// Run starts every task concurrently, multiplexes their streamed chunks into
// the session, and blocks until all of them settle. This is the one place
// where independent producers write to the same session: each task's own
// chunk order is preserved, relative interleaving between tasks is not.
//
// After the join the combined text is validated once. Safe → a final result
// event; unsafe or any task failure → an error event, with agent content
// suppressed on the unsafe path. Run does not close the session.
func (o *Orchestrator) Run(ctx context.Context, tasks []*agent.Task, session *stream.Session) CombinedResult {
	for _, t := range tasks {
		if t.OnChunk != nil {
			continue // caller wired its own consumer (e.g. draft accumulation)
		}
		t.OnChunk = func(c agent.Chunk) {
			if c.Thinking {
				session.Emit(stream.NewThinking(c.Text))
			} else {
				session.Emit(stream.NewText(c.Text))
			}
		}
	}

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t *agent.Task) {
			defer wg.Done()
			t.Run(ctx, o.client)
		}(t)
	}
	wg.Wait()

	combined := CombinedResult{Results: make(map[string]TaskResult, len(tasks))}
	var parts []string
	for _, t := range tasks {
		text, err := t.Result()
		tr := TaskResult{Name: t.Name, Status: t.Status(), Text: text}
		if err != nil {
			tr.Error = err.Error()
			tr.Text = "" // partial output is not part of the combined text
			combined.Failed = true
			slog.Warn("Agent task failed", "task", t.Name, "error", err)
		} else if text != "" {
			parts = append(parts, text)
		}
		combined.Results[t.Name] = tr
	}
	combined.Text = strings.Join(parts, "\n\n")

	validation := o.validator.Validate(combined.Text)
	if !validation.Safe {
		combined.Unsafe = true
		slog.Warn("Combined agent output failed safety validation",
			"session_id", session.ID(), "rule", validation.Warning)
		session.Emit(stream.NewError("response blocked by safety validation: " + validation.Warning))
		return combined
	}

	if combined.Failed {
		session.Emit(stream.NewError("one or more agent tasks failed"))
		return combined
	}

	session.Emit(stream.NewResult(combined.Text, true))
	return combined
}
