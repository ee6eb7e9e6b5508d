package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prowlhq/prowl/pkg/draft"
	"github.com/prowlhq/prowl/pkg/stream"
	"github.com/prowlhq/prowl/pkg/submit"
)

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode"`
}

// Chat serves one streamed chat session over SSE.
func (s *Server) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Prompt == "" {
		err := NewValidationError("prompt", "must not be empty")
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	mode, err := ParseMode(req.Mode)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	sink, err := stream.NewSSESink(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	session := stream.NewSession(sink)
	session.Emit(stream.NewInit(session.ID()))

	ctx := c.Request.Context()
	s.recordSessionStart(ctx, session.ID(), string(mode), req.Prompt)

	runErr := s.router.run(ctx, mode, req.Prompt, session)
	if runErr != nil {
		s.logger.Warn("Chat session ended with error",
			"session_id", session.ID(), "mode", mode, "error", runErr)
		s.recordSessionEnd(session.ID(), runErr.Error())
		return
	}
	s.recordSessionEnd(session.ID(), "")
}

// submitRequest is the shared body shape of the draft submission endpoints.
// Confirm must be true: submission is the only write path and it is gated
// on an explicit user confirmation.
type submitRequest[D any] struct {
	SessionID string `json:"sessionId"`
	Confirm   bool   `json:"confirm"`
	Draft     D      `json:"draft"`
}

// ProjectSummary counts the created entities of a project submission.
type ProjectSummary struct {
	TasklistsCreated int `json:"tasklistsCreated"`
	TasksCreated     int `json:"tasksCreated"`
	SubtasksCreated  int `json:"subtasksCreated"`
}

// ProjectSubmitResponse is the body of a project submission reply.
type ProjectSubmitResponse struct {
	Success   bool                `json:"success"`
	ProjectID string              `json:"projectId,omitempty"`
	Summary   ProjectSummary      `json:"summary"`
	Submitted int                 `json:"submitted"`
	Total     int                 `json:"total"`
	Items     []submit.ItemResult `json:"items"`
}

// TimelogEntryResult is one entry's outcome in a timelog submission reply.
type TimelogEntryResult struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	Error   string `json:"error,omitempty"`
}

// TimelogSubmitResponse is the body of a timelog submission reply.
type TimelogSubmitResponse struct {
	Success   bool                 `json:"success"`
	Submitted int                  `json:"submitted"`
	Total     int                  `json:"total"`
	Results   []TimelogEntryResult `json:"results"`
}

// SubmitProject commits a confirmed project draft.
func (s *Server) SubmitProject(c *gin.Context) {
	req, ok := bindSubmit[draft.ProjectDraft](c)
	if !ok {
		return
	}

	result, err := s.submitter.SubmitProject(c.Request.Context(), req.Draft)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.recordSubmission(c.Request.Context(), req.SessionID, "project", result)

	resp := ProjectSubmitResponse{
		Success:   result.Success,
		ProjectID: result.ProjectID,
		Submitted: result.Submitted,
		Total:     result.Total,
		Items:     result.Items,
	}
	for _, item := range result.Items {
		if !item.Success {
			continue
		}
		switch item.Kind {
		case "tasklist":
			resp.Summary.TasklistsCreated++
		case "task":
			resp.Summary.TasksCreated++
		case "subtask":
			resp.Summary.SubtasksCreated++
		}
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitTimelog commits a confirmed timelog draft.
func (s *Server) SubmitTimelog(c *gin.Context) {
	req, ok := bindSubmit[draft.TimelogDraft](c)
	if !ok {
		return
	}

	result, err := s.submitter.SubmitTimelog(c.Request.Context(), req.Draft)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.recordSubmission(c.Request.Context(), req.SessionID, "timelog", result)

	resp := TimelogSubmitResponse{
		Success:   result.Success,
		Submitted: result.Submitted,
		Total:     result.Total,
		Results:   make([]TimelogEntryResult, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		resp.Results = append(resp.Results, TimelogEntryResult{
			Success: item.Success,
			TaskID:  item.TaskID,
			Error:   item.Error,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// bindSubmit decodes and gates a submission request. A false return means
// the response has already been written.
func bindSubmit[D any](c *gin.Context) (submitRequest[D], bool) {
	var req submitRequest[D]
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return req, false
	}
	if !req.Confirm {
		err := NewValidationError("confirm", "submission requires explicit confirmation")
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

func (s *Server) recordSubmission(ctx context.Context, sessionID, kind string, result submit.SubmissionResult) {
	if s.store == nil {
		return
	}
	if _, err := s.store.RecordSubmission(ctx, sessionID, kind, result); err != nil {
		s.logger.Warn("Failed to record submission", "kind", kind, "error", err)
	}
}

// ListSessions returns recent session history, newest first.
func (s *Server) ListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	sessions, err := s.store.ListSessions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession returns one session with its submission audit trail.
func (s *Server) GetSession(c *gin.Context) {
	id := c.Param("id")

	session, err := s.store.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	submissions, err := s.store.ListSubmissions(c.Request.Context(), id)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session, "submissions": submissions})
}

// Health reports server and database health.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := s.store.Health(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": dbHealth})
}

func (s *Server) recordSessionStart(ctx context.Context, id, mode, prompt string) {
	if s.store == nil {
		return
	}
	if err := s.store.CreateSession(ctx, id, mode, prompt); err != nil {
		s.logger.Warn("Failed to record session start", "session_id", id, "error", err)
	}
}

// recordSessionEnd uses a fresh context: the request context is often
// already cancelled when the client disconnects mid-stream.
func (s *Server) recordSessionEnd(id, errMsg string) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.CompleteSession(ctx, id, errMsg); err != nil {
		s.logger.Warn("Failed to record session end", "session_id", id, "error", err)
	}
}
