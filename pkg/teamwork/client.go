// Package teamwork provides HTTP access to the Teamwork Projects API for the
// write operations the submission service performs and the reads the server
// exposes. All mutating calls go through this client, never through an agent.
package teamwork

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prowlhq/prowl/pkg/config"
)

// Client provides HTTP access to a Teamwork Projects instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewClient creates an HTTP client for Teamwork operations.
func NewClient(cfg config.TeamworkConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     slog.Default(),
	}
}

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate     string `json:"endDate,omitempty"`
}

// CreateTaskRequest is the payload for creating a task in a tasklist.
type CreateTaskRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	Priority         string `json:"priority,omitempty"`
	EstimatedMinutes int    `json:"estimatedMinutes,omitempty"`
}

// CreateTimeEntryRequest is the payload for logging time against a task.
type CreateTimeEntryRequest struct {
	TaskID  string  `json:"-"`
	Hours   float64 `json:"hours"`
	Date    string  `json:"date"` // YYYY-MM-DD
	Comment string  `json:"description,omitempty"`
}

// ID is an entity identifier. The API serves IDs as JSON numbers in some
// endpoints and strings in others.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*id = ID(s)
	return nil
}

func (id ID) String() string { return string(id) }

// Project is the read shape for a project.
type Project struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Task is the read shape for a task.
type Task struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// CreateProject creates a project and returns its ID.
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (string, error) {
	return c.create(ctx, "/projects/api/v3/projects.json", map[string]any{"project": req}, "project")
}

// CreateTasklist creates a tasklist under a project and returns its ID.
func (c *Client) CreateTasklist(ctx context.Context, projectID, name string) (string, error) {
	path := fmt.Sprintf("/projects/api/v3/projects/%s/tasklists.json", projectID)
	return c.create(ctx, path, map[string]any{"tasklist": map[string]any{"name": name}}, "tasklist")
}

// CreateTask creates a task in a tasklist and returns its ID.
func (c *Client) CreateTask(ctx context.Context, tasklistID string, req CreateTaskRequest) (string, error) {
	path := fmt.Sprintf("/projects/api/v3/tasklists/%s/tasks.json", tasklistID)
	return c.create(ctx, path, map[string]any{"task": req}, "task")
}

// CreateSubtask creates a subtask under a task and returns its ID.
func (c *Client) CreateSubtask(ctx context.Context, taskID, name string) (string, error) {
	path := fmt.Sprintf("/projects/api/v3/tasks/%s/subtasks.json", taskID)
	return c.create(ctx, path, map[string]any{"task": map[string]any{"name": name}}, "task")
}

// CreateBudget sets a budget on a project and returns the budget ID.
// budgetType is "hours" or "fiscal".
func (c *Client) CreateBudget(ctx context.Context, projectID, budgetType string, amount float64) (string, error) {
	path := fmt.Sprintf("/projects/api/v3/projects/%s/budgets.json", projectID)
	payload := map[string]any{
		"budget": map[string]any{"type": budgetType, "amount": amount},
	}
	return c.create(ctx, path, payload, "budget")
}

// CreateTimeEntry logs time against a task and returns the entry ID.
func (c *Client) CreateTimeEntry(ctx context.Context, req CreateTimeEntryRequest) (string, error) {
	path := fmt.Sprintf("/projects/api/v3/tasks/%s/time.json", req.TaskID)
	return c.create(ctx, path, map[string]any{"timelog": req}, "timelog")
}

// PostComment posts a markdown comment on a task.
func (c *Client) PostComment(ctx context.Context, taskID, body string) error {
	path := fmt.Sprintf("/projects/api/v3/tasks/%s/comments.json", taskID)
	payload := map[string]any{
		"comment": map[string]any{"body": body, "contentType": "MARKDOWN"},
	}
	_, err := c.do(ctx, http.MethodPost, path, payload)
	return err
}

// GetProject fetches a single project.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/api/v3/projects/%s.json", projectID), nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Project Project `json:"project"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode project response: %w", err)
	}
	return &envelope.Project, nil
}

// ListTasks lists the tasks of a project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/api/v3/projects/%s/tasks.json", projectID), nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Tasks []Task `json:"tasks"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode tasks response: %w", err)
	}
	return envelope.Tasks, nil
}

// create POSTs a payload and extracts the created entity's ID from the
// response envelope under the given key.
func (c *Client) create(ctx context.Context, path string, payload any, key string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}

	var envelope map[string]struct {
		ID ID `json:"id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	entity, ok := envelope[key]
	if !ok || entity.ID.String() == "" {
		return "", fmt.Errorf("create response missing %q id", key)
	}
	return entity.ID.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Teamwork API call failed",
			"method", method, "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("teamwork API returned HTTP %d for %s %s", resp.StatusCode, method, path)
	}
	return body, nil
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
