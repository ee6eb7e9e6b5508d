// Package api exposes the HTTP surface: the SSE chat endpoint, the gated
// draft submission endpoints, session history, and health.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prowlhq/prowl/pkg/agent"
	"github.com/prowlhq/prowl/pkg/config"
	"github.com/prowlhq/prowl/pkg/draft"
	"github.com/prowlhq/prowl/pkg/orchestrator"
	"github.com/prowlhq/prowl/pkg/safety"
	"github.com/prowlhq/prowl/pkg/store"
	"github.com/prowlhq/prowl/pkg/submit"
)

// SessionStore is the slice of the persistence layer the server uses.
type SessionStore interface {
	CreateSession(ctx context.Context, id, mode, prompt string) error
	CompleteSession(ctx context.Context, id, errMsg string) error
	GetSession(ctx context.Context, id string) (*store.SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]store.SessionRecord, error)
	RecordSubmission(ctx context.Context, sessionID, kind string, result submit.SubmissionResult) (string, error)
	ListSubmissions(ctx context.Context, sessionID string) ([]store.SubmissionRecord, error)
	Health(ctx context.Context) (*store.HealthStatus, error)
}

// Submitter commits confirmed drafts.
type Submitter interface {
	SubmitProject(ctx context.Context, d draft.ProjectDraft) (submit.SubmissionResult, error)
	SubmitTimelog(ctx context.Context, d draft.TimelogDraft) (submit.SubmissionResult, error)
}

// Server is the HTTP API server.
type Server struct {
	router    *router
	store     SessionStore
	submitter Submitter
	logger    *slog.Logger

	httpServer *http.Server
}

// NewServer wires the API server.
func NewServer(cfg *config.Config, client agent.ModelClient, sessions SessionStore, submitter Submitter) *Server {
	validator := safety.NewValidator()
	orch := orchestrator.New(client, validator)
	return &Server{
		router:    newRouter(orch, client, validator, cfg.AgentTimeout),
		store:     sessions,
		submitter: submitter,
		logger:    slog.Default(),
	}
}

// Routes builds the gin engine with all endpoints registered.
func (s *Server) Routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.Health)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/chat", s.Chat)
		v1.POST("/drafts/project/submit", s.SubmitProject)
		v1.POST("/drafts/timelog/submit", s.SubmitTimelog)
		v1.GET("/sessions", s.ListSessions)
		v1.GET("/sessions/:id", s.GetSession)
	}

	return engine
}

// Start serves HTTP on addr. Blocks until the listener stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
