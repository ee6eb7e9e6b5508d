// Package draft builds structured, not-yet-committed documents from a
// sequence of typed update events parsed out of a model's output stream.
// A draft is shown to the user for review; nothing here touches external
// state — committing a draft goes through the submission service after an
// explicit confirmation.
package draft

// ProjectInfo is the project header of a project draft.
type ProjectInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

// Subtask is a leaf work item under a task.
type Subtask struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is a work item in a tasklist.
type Task struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Priority         string    `json:"priority,omitempty"`
	EstimatedMinutes int       `json:"estimatedMinutes,omitempty"`
	Subtasks         []Subtask `json:"subtasks,omitempty"`
}

// Tasklist groups tasks within a project.
type Tasklist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// Budget is an optional project budget.
type Budget struct {
	Type   string  `json:"type"` // "hours" or "fiscal"
	Amount float64 `json:"amount"`
}

// ProjectDraft is a structured project proposal built incrementally.
type ProjectDraft struct {
	Project   ProjectInfo `json:"project"`
	Tasklists []Tasklist  `json:"tasklists"`
	Budget    *Budget     `json:"budget,omitempty"`
	Finalized bool        `json:"finalized"`
}

// TimeEntry is one proposed timelog row.
type TimeEntry struct {
	TaskID     string  `json:"taskId"`
	Hours      float64 `json:"hours"`
	Date       string  `json:"date"`
	Comment    string  `json:"comment,omitempty"`
	Confidence string  `json:"confidence,omitempty"` // high, medium, low
}

// TimelogDraft is a batch of proposed time entries built incrementally.
type TimelogDraft struct {
	Entries   []TimeEntry `json:"entries"`
	Finalized bool        `json:"finalized"`
}

// findTasklist returns the tasklist with the given ID, or nil.
func (d *ProjectDraft) findTasklist(id string) *Tasklist {
	for i := range d.Tasklists {
		if d.Tasklists[i].ID == id {
			return &d.Tasklists[i]
		}
	}
	return nil
}

// findTask returns the task with the given ID from any tasklist, or nil.
func (d *ProjectDraft) findTask(id string) *Task {
	for i := range d.Tasklists {
		for j := range d.Tasklists[i].Tasks {
			if d.Tasklists[i].Tasks[j].ID == id {
				return &d.Tasklists[i].Tasks[j]
			}
		}
	}
	return nil
}
