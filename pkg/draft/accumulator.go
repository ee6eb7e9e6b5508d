package draft

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/prowlhq/prowl/pkg/jsonline"
	"github.com/prowlhq/prowl/pkg/stream"
)

// Mode selects which draft shape an accumulator builds.
type Mode string

const (
	ModeProject Mode = "project"
	ModeTimelog Mode = "timelog"
)

// Update actions, carried in the "action" field of each parsed line.
const (
	ActionDraftInit     = "draft_init"
	ActionAddTasklist   = "add_tasklist"
	ActionAddTask       = "add_task"
	ActionAddSubtasks   = "add_subtasks"
	ActionUpdateProject = "update_project"
	ActionSetBudget     = "set_budget"
	ActionAddEntry      = "add_entry"
	ActionDraftComplete = "draft_complete"
)

// Accumulator is the single owner of a growing draft document. It consumes
// typed update events, mutates the document, and re-emits each applied
// mutation to the stream session as a delta the client can replay.
//
// It has exactly one logical writer — the text stream being parsed — and
// must not be fed from two goroutines.
//
// Edge-case policy: updates referencing a missing parent are dropped with a
// logged warning; anything after draft_complete is dropped; a malformed
// payload drops that one update. Nothing here is fatal to the stream.
type Accumulator struct {
	mode    Mode
	session *stream.Session

	initialized bool
	project     *ProjectDraft
	timelog     *TimelogDraft
}

// NewAccumulator creates an accumulator bound to a session.
func NewAccumulator(mode Mode, session *stream.Session) *Accumulator {
	return &Accumulator{mode: mode, session: session}
}

// Apply consumes one parsed update event.
func (a *Accumulator) Apply(obj jsonline.Object) {
	action, _ := obj["action"].(string)
	if action == "" {
		slog.Warn("Draft update without action, dropping", "session_id", a.session.ID())
		return
	}

	if a.Finalized() {
		slog.Warn("Draft update after finalization, dropping",
			"session_id", a.session.ID(), "action", action)
		return
	}

	if action == ActionDraftInit {
		a.init()
		return
	}
	if !a.initialized {
		slog.Warn("Draft update before draft_init, dropping",
			"session_id", a.session.ID(), "action", action)
		return
	}

	switch action {
	case ActionAddTasklist:
		a.addTasklist(obj)
	case ActionAddTask:
		a.addTask(obj)
	case ActionAddSubtasks:
		a.addSubtasks(obj)
	case ActionUpdateProject:
		a.updateProject(obj)
	case ActionSetBudget:
		a.setBudget(obj)
	case ActionAddEntry:
		a.addEntry(obj)
	case ActionDraftComplete:
		a.complete(obj)
	default:
		slog.Warn("Unknown draft action, dropping",
			"session_id", a.session.ID(), "action", action)
	}
}

// Document returns a read-only snapshot of the current document, or nil
// before draft_init.
func (a *Accumulator) Document() any {
	if !a.initialized {
		return nil
	}
	if a.mode == ModeTimelog {
		return *a.timelog
	}
	return *a.project
}

// Finalized reports whether draft_complete has been applied.
func (a *Accumulator) Finalized() bool {
	switch {
	case !a.initialized:
		return false
	case a.mode == ModeTimelog:
		return a.timelog.Finalized
	default:
		return a.project.Finalized
	}
}

func (a *Accumulator) init() {
	if a.initialized {
		slog.Warn("Duplicate draft_init, dropping", "session_id", a.session.ID())
		return
	}
	a.initialized = true
	if a.mode == ModeTimelog {
		a.timelog = &TimelogDraft{Entries: []TimeEntry{}}
	} else {
		a.project = &ProjectDraft{Tasklists: []Tasklist{}}
	}
	a.session.Emit(stream.NewDraftInit(a.Document()))
}

func (a *Accumulator) addTasklist(obj jsonline.Object) {
	doc := a.projectDoc(ActionAddTasklist)
	if doc == nil {
		return
	}
	var tl Tasklist
	if !decodeField(obj, "tasklist", &tl) {
		a.warnMalformed(ActionAddTasklist)
		return
	}
	if tl.ID == "" {
		tl.ID = uuid.NewString()
	}
	if tl.Tasks == nil {
		tl.Tasks = []Task{}
	}
	doc.Tasklists = append(doc.Tasklists, tl)
	a.emitUpdate(ActionAddTasklist, map[string]any{"tasklist": tl})
}

func (a *Accumulator) addTask(obj jsonline.Object) {
	doc := a.projectDoc(ActionAddTask)
	if doc == nil {
		return
	}
	parentID, _ := obj["tasklistId"].(string)
	var task Task
	if !decodeField(obj, "task", &task) {
		a.warnMalformed(ActionAddTask)
		return
	}
	parent := doc.findTasklist(parentID)
	if parent == nil {
		slog.Warn("Draft task references unknown tasklist, dropping",
			"session_id", a.session.ID(), "tasklist_id", parentID)
		return
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	parent.Tasks = append(parent.Tasks, task)
	a.emitUpdate(ActionAddTask, map[string]any{"tasklistId": parentID, "task": task})
}

func (a *Accumulator) addSubtasks(obj jsonline.Object) {
	doc := a.projectDoc(ActionAddSubtasks)
	if doc == nil {
		return
	}
	parentID, _ := obj["taskId"].(string)
	var subtasks []Subtask
	if !decodeField(obj, "subtasks", &subtasks) || len(subtasks) == 0 {
		a.warnMalformed(ActionAddSubtasks)
		return
	}
	parent := doc.findTask(parentID)
	if parent == nil {
		slog.Warn("Draft subtasks reference unknown task, dropping",
			"session_id", a.session.ID(), "task_id", parentID)
		return
	}
	for i := range subtasks {
		if subtasks[i].ID == "" {
			subtasks[i].ID = uuid.NewString()
		}
	}
	parent.Subtasks = append(parent.Subtasks, subtasks...)
	a.emitUpdate(ActionAddSubtasks, map[string]any{"taskId": parentID, "subtasks": subtasks})
}

func (a *Accumulator) updateProject(obj jsonline.Object) {
	doc := a.projectDoc(ActionUpdateProject)
	if doc == nil {
		return
	}
	var info ProjectInfo
	if !decodeField(obj, "project", &info) {
		a.warnMalformed(ActionUpdateProject)
		return
	}
	// Merge: only fields present in the update overwrite.
	if info.Name != "" {
		doc.Project.Name = info.Name
	}
	if info.Description != "" {
		doc.Project.Description = info.Description
	}
	if info.StartDate != "" {
		doc.Project.StartDate = info.StartDate
	}
	if info.EndDate != "" {
		doc.Project.EndDate = info.EndDate
	}
	a.emitUpdate(ActionUpdateProject, map[string]any{"project": doc.Project})
}

func (a *Accumulator) setBudget(obj jsonline.Object) {
	doc := a.projectDoc(ActionSetBudget)
	if doc == nil {
		return
	}
	var budget Budget
	if !decodeField(obj, "budget", &budget) {
		a.warnMalformed(ActionSetBudget)
		return
	}
	doc.Budget = &budget
	a.emitUpdate(ActionSetBudget, map[string]any{"budget": budget})
}

func (a *Accumulator) addEntry(obj jsonline.Object) {
	if a.mode != ModeTimelog {
		slog.Warn("add_entry outside timelog mode, dropping", "session_id", a.session.ID())
		return
	}
	var entry TimeEntry
	if !decodeField(obj, "entry", &entry) {
		a.warnMalformed(ActionAddEntry)
		return
	}
	a.timelog.Entries = append(a.timelog.Entries, entry)
	a.emitUpdate(ActionAddEntry, map[string]any{"entry": entry})
}

func (a *Accumulator) complete(obj jsonline.Object) {
	if a.mode == ModeTimelog {
		a.timelog.Finalized = true
	} else {
		a.project.Finalized = true
	}
	message, _ := obj["message"].(string)
	a.session.Emit(stream.NewDraftComplete(message))
}

// projectDoc returns the project document, or nil (with a warning) when the
// action does not apply to the current mode.
func (a *Accumulator) projectDoc(action string) *ProjectDraft {
	if a.mode != ModeProject {
		slog.Warn("Project draft action outside project mode, dropping",
			"session_id", a.session.ID(), "action", action)
		return nil
	}
	return a.project
}

func (a *Accumulator) emitUpdate(action string, delta map[string]any) {
	a.session.Emit(stream.NewDraftUpdate(action, delta))
}

func (a *Accumulator) warnMalformed(action string) {
	slog.Warn("Malformed draft update payload, dropping",
		"session_id", a.session.ID(), "action", action)
}

// decodeField round-trips one field of the raw update into a typed value.
func decodeField(obj jsonline.Object, key string, dst any) bool {
	raw, ok := obj[key]
	if !ok {
		return false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}
