package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prowlhq/prowl/pkg/submit"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Session statuses.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// SessionRecord is one chat session's history row.
type SessionRecord struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	Prompt      string     `json:"prompt"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// SubmissionRecord is one draft submission audit row.
type SubmissionRecord struct {
	ID        string                  `json:"id"`
	SessionID string                  `json:"sessionId,omitempty"`
	Kind      string                  `json:"kind"` // project or timelog
	Result    submit.SubmissionResult `json:"result"`
	CreatedAt time.Time               `json:"createdAt"`
}

// CreateSession inserts a new active session.
func (s *Store) CreateSession(ctx context.Context, id, mode, prompt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, mode, prompt, status) VALUES ($1, $2, $3, $4)`,
		id, mode, prompt, SessionActive,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// CompleteSession marks a session terminal. errMsg empty means success.
func (s *Store) CompleteSession(ctx context.Context, id, errMsg string) error {
	status := SessionCompleted
	var errVal sql.NullString
	if errMsg != "" {
		status = SessionFailed
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = $2, error = $3, completed_at = now() WHERE id = $1`,
		id, status, errVal,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession fetches one session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, mode, prompt, status, COALESCE(error, ''), created_at, completed_at
		 FROM sessions WHERE id = $1`, id)

	var rec SessionRecord
	var completedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.Mode, &rec.Prompt, &rec.Status, &rec.Error, &rec.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return &rec, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, prompt, status, COALESCE(error, ''), created_at, completed_at
		 FROM sessions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]SessionRecord, 0, limit)
	for rows.Next() {
		var rec SessionRecord
		var completedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.Prompt, &rec.Status, &rec.Error, &rec.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// RecordSubmission inserts a submission audit row and returns its ID.
func (s *Store) RecordSubmission(ctx context.Context, sessionID, kind string, result submit.SubmissionResult) (string, error) {
	items, err := json.Marshal(result.Items)
	if err != nil {
		return "", fmt.Errorf("encode submission items: %w", err)
	}

	id := uuid.NewString()
	var sessionVal sql.NullString
	if sessionID != "" {
		sessionVal = sql.NullString{String: sessionID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, session_id, kind, success, submitted, total, items)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, sessionVal, kind, result.Success, result.Submitted, result.Total, items,
	)
	if err != nil {
		return "", fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

// ListSubmissions returns a session's submission audit rows, oldest first.
func (s *Store) ListSubmissions(ctx context.Context, sessionID string) ([]SubmissionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(session_id::text, ''), kind, success, submitted, total, items, created_at
		 FROM submissions WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var records []SubmissionRecord
	for rows.Next() {
		var rec SubmissionRecord
		var items []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Kind,
			&rec.Result.Success, &rec.Result.Submitted, &rec.Result.Total,
			&items, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal(items, &rec.Result.Items); err != nil {
			return nil, fmt.Errorf("decode submission items: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
