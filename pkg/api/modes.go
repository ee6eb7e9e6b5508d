package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prowlhq/prowl/pkg/agent"
	"github.com/prowlhq/prowl/pkg/draft"
	"github.com/prowlhq/prowl/pkg/jsonline"
	"github.com/prowlhq/prowl/pkg/orchestrator"
	"github.com/prowlhq/prowl/pkg/safety"
	"github.com/prowlhq/prowl/pkg/stream"
)

// Mode selects how a chat request is served.
type Mode string

const (
	// ModeChat answers with prose from a single agent.
	ModeChat Mode = "chat"
	// ModeAnalyze joins two read-only agents in parallel: a summary pass
	// surfaced as thinking and a detail pass surfaced as answer text.
	ModeAnalyze Mode = "analyze"
	// ModeProjectDraft builds a project draft from structured agent output.
	ModeProjectDraft Mode = "project_draft"
	// ModeTimelogDraft builds a timelog draft from structured agent output.
	ModeTimelogDraft Mode = "timelog_draft"
)

// ParseMode validates a request mode string. Empty selects ModeChat.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeChat, nil
	case ModeChat, ModeAnalyze, ModeProjectDraft, ModeTimelogDraft:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

var errDraftIncomplete = errors.New("draft stream ended before completion")

// router executes one chat request against a live stream session. It owns
// the terminal event contract: every run ends the session with either a
// done sentinel or an error event — never silence.
type router struct {
	orchestrator *orchestrator.Orchestrator
	client       agent.ModelClient
	validator    *safety.Validator
	timeout      time.Duration
}

func newRouter(orch *orchestrator.Orchestrator, client agent.ModelClient, validator *safety.Validator, timeout time.Duration) *router {
	return &router{orchestrator: orch, client: client, validator: validator, timeout: timeout}
}

func (r *router) run(ctx context.Context, mode Mode, prompt string, session *stream.Session) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	switch mode {
	case ModeChat:
		return r.runJoin(ctx, session, []*agent.Task{
			agent.NewTask("chat", agent.CapabilityReadOnly, agent.Request{
				System: chatSystemPrompt,
				Prompt: prompt,
			}),
		})
	case ModeAnalyze:
		summary := agent.NewTask("summary", agent.CapabilityReadOnly, agent.Request{
			System: summarySystemPrompt,
			Prompt: prompt,
		})
		summary.Thinking = true
		detail := agent.NewTask("detail", agent.CapabilityReadOnly, agent.Request{
			System: detailSystemPrompt,
			Prompt: prompt,
		})
		return r.runJoin(ctx, session, []*agent.Task{summary, detail})
	case ModeProjectDraft:
		return r.runDraft(ctx, session, draft.ModeProject, projectDraftSystemPrompt, prompt)
	case ModeTimelogDraft:
		return r.runDraft(ctx, session, draft.ModeTimelog, timelogDraftSystemPrompt, prompt)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// runJoin streams the tasks through the orchestrator. The orchestrator
// emits the terminal result or error event; the router closes the session.
func (r *router) runJoin(ctx context.Context, session *stream.Session, tasks []*agent.Task) error {
	combined := r.orchestrator.Run(ctx, tasks, session)
	switch {
	case combined.Unsafe:
		session.Close()
		return errors.New("response blocked by safety validation")
	case combined.Failed:
		session.Close()
		return errors.New("one or more agent tasks failed")
	default:
		session.Finish()
		return nil
	}
}

// runDraft streams one structured-output task through the line parser into
// a draft accumulator. Draft events reach the client as they are applied;
// the assembled text is safety-validated once after the task settles, the
// same gate the join path applies, and an unsafe match ends the stream
// with an error event instead of done.
func (r *router) runDraft(ctx context.Context, session *stream.Session, mode draft.Mode, system, prompt string) error {
	parser := jsonline.New()
	acc := draft.NewAccumulator(mode, session)

	task := agent.NewTask(string(mode)+"_draft", agent.CapabilityReadOnly, agent.Request{
		System: system,
		Prompt: prompt,
	})
	task.OnChunk = func(c agent.Chunk) {
		for _, obj := range parser.Feed(c.Text) {
			acc.Apply(obj)
		}
	}

	task.Run(ctx, r.client)
	for _, obj := range parser.Flush() {
		acc.Apply(obj)
	}

	text, err := task.Result()
	if err != nil {
		session.Fail("agent task failed")
		return fmt.Errorf("draft agent: %w", err)
	}
	if validation := r.validator.Validate(text); !validation.Safe {
		slog.Warn("Draft agent output failed safety validation",
			"session_id", session.ID(), "rule", validation.Warning)
		session.Fail("response blocked by safety validation: " + validation.Warning)
		return errors.New("response blocked by safety validation")
	}
	if !acc.Finalized() {
		session.Fail(errDraftIncomplete.Error())
		return errDraftIncomplete
	}
	session.Finish()
	return nil
}

const chatSystemPrompt = `You are a project management assistant for a Teamwork workspace.
Answer the user's question in clear prose. You cannot create, update, or
delete anything; if the user asks for a change, explain that changes go
through a reviewed draft.`

const summarySystemPrompt = `You are analyzing a project management question.
Produce a short summary of the relevant facts and considerations. Be terse;
your output is intermediate reasoning shown as thinking, not the answer.`

const detailSystemPrompt = `You are analyzing a project management question.
Produce the full answer with supporting detail. Another pass handles the
summary; do not repeat it.`

const projectDraftSystemPrompt = `You are drafting a project plan. Output ONLY newline-delimited JSON
objects, one per line, no prose and no code fences. Protocol:
{"action":"draft_init"}
{"action":"update_project","project":{"name":...,"description":...,"startDate":"YYYY-MM-DD","endDate":"YYYY-MM-DD"}}
{"action":"add_tasklist","tasklist":{"id":...,"name":...}}
{"action":"add_task","tasklistId":...,"task":{"id":...,"name":...,"description":...,"priority":...,"estimatedMinutes":...}}
{"action":"add_subtasks","taskId":...,"subtasks":[{"id":...,"name":...}]}
{"action":"set_budget","budget":{"type":"hours"|"fiscal","amount":...}}
{"action":"draft_complete","message":...}
draft_init must be the first line and draft_complete the last. Reference
only tasklist and task ids you created earlier in the stream.`

const timelogDraftSystemPrompt = `You are drafting time entries. Output ONLY newline-delimited JSON
objects, one per line, no prose and no code fences. Protocol:
{"action":"draft_init"}
{"action":"add_entry","entry":{"taskId":...,"hours":...,"date":"YYYY-MM-DD","comment":...,"confidence":"high"|"medium"|"low"}}
{"action":"draft_complete","message":...}
draft_init must be the first line and draft_complete the last.`
