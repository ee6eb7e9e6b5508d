package teamwork

import (
	"fmt"
	"strings"
	"time"
)

// ProgressUpdate describes a status change worth surfacing as a task comment.
type ProgressUpdate struct {
	Status    string
	SessionID string
	Body      string
	Error     string
}

var statusEmoji = map[string]string{
	"In Progress": "🔄",
	"Complete":    "✅",
	"Failed":      "❌",
	"Review":      "👁️",
	"Blocked":     "🚫",
}

// FormatComment renders the update as Teamwork comment markdown.
func (u ProgressUpdate) FormatComment(now time.Time) string {
	emoji, ok := statusEmoji[u.Status]
	if !ok {
		emoji = "ℹ️"
	}

	lines := []string{
		fmt.Sprintf("%s **Status Update: %s**", emoji, u.Status),
		fmt.Sprintf("- **Session**: %s", u.SessionID),
		fmt.Sprintf("- **Timestamp**: %s", now.Format(time.RFC3339)),
		"",
		"---",
	}

	switch {
	case u.Error != "":
		lines = append(lines, fmt.Sprintf("**Error**: %s", u.Error))
	case u.Body != "":
		lines = append(lines, u.Body)
	}

	return strings.Join(lines, "\n")
}
