// Package submit commits confirmed drafts to the external project API.
// Submission is parent-first and tolerant of partial failure: a failed
// project aborts the whole submission, anything below that is recorded
// per item and never rolled back.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prowlhq/prowl/pkg/draft"
	"github.com/prowlhq/prowl/pkg/teamwork"
)

// API is the slice of the Teamwork client the submission service uses.
type API interface {
	CreateProject(ctx context.Context, req teamwork.CreateProjectRequest) (string, error)
	CreateTasklist(ctx context.Context, projectID, name string) (string, error)
	CreateTask(ctx context.Context, tasklistID string, req teamwork.CreateTaskRequest) (string, error)
	CreateSubtask(ctx context.Context, taskID, name string) (string, error)
	CreateBudget(ctx context.Context, projectID, budgetType string, amount float64) (string, error)
	CreateTimeEntry(ctx context.Context, req teamwork.CreateTimeEntryRequest) (string, error)
	PostComment(ctx context.Context, taskID, body string) error
}

// ItemResult records the outcome of one attempted write.
type ItemResult struct {
	Kind    string `json:"kind"` // project, tasklist, task, subtask, budget, time_entry
	Name    string `json:"name"`
	TaskID  string `json:"taskId,omitempty"` // target task, set for time entries
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`    // created entity ID
	Error   string `json:"error,omitempty"` // failure reason
}

// SubmissionResult is the aggregate outcome of one draft submission.
type SubmissionResult struct {
	Success   bool         `json:"success"` // every attempted item succeeded
	Submitted int          `json:"submitted"`
	Total     int          `json:"total"`
	ProjectID string       `json:"projectId,omitempty"`
	Items     []ItemResult `json:"items"`
}

// Service submits confirmed drafts.
type Service struct {
	api    API
	dryRun bool
	logger *slog.Logger
}

// NewService creates a submission service. With dryRun set, intended
// writes are logged instead of sent and report success per item.
func NewService(api API, dryRun bool) *Service {
	return &Service{
		api:    api,
		dryRun: dryRun,
		logger: slog.Default(),
	}
}

// SubmitProject commits a finalized project draft. The project itself is
// created first; if that fails nothing else is attempted. Below the
// project, items are attempted in document order and a failed parent
// skips its children without stopping its siblings.
func (s *Service) SubmitProject(ctx context.Context, d draft.ProjectDraft) (SubmissionResult, error) {
	if !d.Finalized {
		return SubmissionResult{}, ErrDraftNotFinalized
	}

	result := SubmissionResult{Total: countProjectItems(d)}

	projectID, err := s.createProject(ctx, d.Project)
	if err != nil {
		result.Items = append(result.Items, ItemResult{
			Kind: "project", Name: d.Project.Name, Error: err.Error(),
		})
		s.logger.Warn("Project creation failed, aborting submission",
			"project", d.Project.Name, "error", err)
		return result, nil
	}
	result.ProjectID = projectID
	result.record(ItemResult{Kind: "project", Name: d.Project.Name, Success: true, ID: projectID})

	if d.Budget != nil {
		budgetID, err := s.createBudget(ctx, projectID, *d.Budget)
		result.record(itemResult("budget", d.Budget.Type, budgetID, err))
	}

	for _, tl := range d.Tasklists {
		tasklistID, err := s.createTasklist(ctx, projectID, tl.Name)
		result.record(itemResult("tasklist", tl.Name, tasklistID, err))
		if err != nil {
			result.skipTasks(tl.Tasks, fmt.Sprintf("tasklist %q was not created", tl.Name))
			continue
		}
		for _, task := range tl.Tasks {
			taskID, err := s.createTask(ctx, tasklistID, task)
			result.record(itemResult("task", task.Name, taskID, err))
			if err != nil {
				result.skipSubtasks(task.Subtasks, fmt.Sprintf("task %q was not created", task.Name))
				continue
			}
			for _, sub := range task.Subtasks {
				subID, err := s.createSubtask(ctx, taskID, sub.Name)
				result.record(itemResult("subtask", sub.Name, subID, err))
			}
		}
	}

	result.Success = result.Submitted == result.Total
	return result, nil
}

// SubmitTimelog commits a finalized timelog draft. Entries are independent:
// one rejected entry never blocks the rest.
func (s *Service) SubmitTimelog(ctx context.Context, d draft.TimelogDraft) (SubmissionResult, error) {
	if !d.Finalized {
		return SubmissionResult{}, ErrDraftNotFinalized
	}

	result := SubmissionResult{Total: len(d.Entries)}
	hoursByTask := make(map[string]float64)

	for _, entry := range d.Entries {
		name := fmt.Sprintf("%.2fh on task %s (%s)", entry.Hours, entry.TaskID, entry.Date)
		entryID, err := s.createTimeEntry(ctx, entry)
		item := itemResult("time_entry", name, entryID, err)
		item.TaskID = entry.TaskID
		result.record(item)
		if err == nil {
			hoursByTask[entry.TaskID] += entry.Hours
		}
	}

	result.Success = result.Submitted == result.Total
	s.postTimelogComments(ctx, hoursByTask)
	return result, nil
}

func (s *Service) createProject(ctx context.Context, p draft.ProjectInfo) (string, error) {
	if s.dryRun {
		return s.dryRunID("create project", "name", p.Name), nil
	}
	return s.api.CreateProject(ctx, teamwork.CreateProjectRequest{
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
	})
}

func (s *Service) createBudget(ctx context.Context, projectID string, b draft.Budget) (string, error) {
	if s.dryRun {
		return s.dryRunID("set budget", "type", b.Type), nil
	}
	return s.api.CreateBudget(ctx, projectID, b.Type, b.Amount)
}

func (s *Service) createTasklist(ctx context.Context, projectID, name string) (string, error) {
	if s.dryRun {
		return s.dryRunID("create tasklist", "name", name), nil
	}
	return s.api.CreateTasklist(ctx, projectID, name)
}

func (s *Service) createTask(ctx context.Context, tasklistID string, t draft.Task) (string, error) {
	if s.dryRun {
		return s.dryRunID("create task", "name", t.Name), nil
	}
	return s.api.CreateTask(ctx, tasklistID, teamwork.CreateTaskRequest{
		Name:             t.Name,
		Description:      t.Description,
		Priority:         t.Priority,
		EstimatedMinutes: t.EstimatedMinutes,
	})
}

func (s *Service) createSubtask(ctx context.Context, taskID, name string) (string, error) {
	if s.dryRun {
		return s.dryRunID("create subtask", "name", name), nil
	}
	return s.api.CreateSubtask(ctx, taskID, name)
}

func (s *Service) createTimeEntry(ctx context.Context, e draft.TimeEntry) (string, error) {
	if s.dryRun {
		return s.dryRunID("log time", "taskId", e.TaskID), nil
	}
	return s.api.CreateTimeEntry(ctx, teamwork.CreateTimeEntryRequest{
		TaskID:  e.TaskID,
		Hours:   e.Hours,
		Date:    e.Date,
		Comment: e.Comment,
	})
}

// postTimelogComments leaves a progress comment on each task that received
// time. Comment failures are logged and never affect the result.
func (s *Service) postTimelogComments(ctx context.Context, hoursByTask map[string]float64) {
	if s.dryRun {
		return
	}
	for taskID, hours := range hoursByTask {
		update := teamwork.ProgressUpdate{
			Status: "Complete",
			Body:   fmt.Sprintf("Logged %.2f hours via assistant.", hours),
		}
		if err := s.api.PostComment(ctx, taskID, update.FormatComment(time.Now())); err != nil {
			s.logger.Warn("Failed to post progress comment", "taskId", taskID, "error", err)
		}
	}
}

func (s *Service) dryRunID(action string, args ...any) string {
	s.logger.Info("Dry run: "+action, args...)
	return "dry-run-" + uuid.NewString()
}

func (r *SubmissionResult) record(item ItemResult) {
	r.Items = append(r.Items, item)
	if item.Success {
		r.Submitted++
	}
}

func (r *SubmissionResult) skipTasks(tasks []draft.Task, reason string) {
	for _, t := range tasks {
		r.Items = append(r.Items, ItemResult{Kind: "task", Name: t.Name, Error: reason})
		r.skipSubtasks(t.Subtasks, reason)
	}
}

func (r *SubmissionResult) skipSubtasks(subs []draft.Subtask, reason string) {
	for _, sub := range subs {
		r.Items = append(r.Items, ItemResult{Kind: "subtask", Name: sub.Name, Error: reason})
	}
}

func itemResult(kind, name, id string, err error) ItemResult {
	if err != nil {
		return ItemResult{Kind: kind, Name: name, Error: err.Error()}
	}
	return ItemResult{Kind: kind, Name: name, Success: true, ID: id}
}

func countProjectItems(d draft.ProjectDraft) int {
	total := 1 // the project itself
	if d.Budget != nil {
		total++
	}
	for _, tl := range d.Tasklists {
		total++
		for _, t := range tl.Tasks {
			total += 1 + len(t.Subtasks)
		}
	}
	return total
}
