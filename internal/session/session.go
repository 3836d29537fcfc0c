// Package session keeps per-conversation rolling history with idle
// expiry, plus the pending-decision marker used by the low-confidence
// protocol. Two backends exist: an in-process map and Redis.
package session

import (
	"context"
	"time"

	"github.com/hansik-ai/hansik/internal/model"
)

// Message is one conversation turn.
type Message struct {
	Role      string            `json:"role"` // "user" | "assistant"
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PendingDecision marks a session whose last answer was blocked by low
// confidence; the next request must resolve it.
type PendingDecision struct {
	Type          string `json:"type"` // "low_confidence"
	OriginalQuery string `json:"original_query"`
}

// Store is the session backend. Reading a session refreshes its idle
// timer; expired sessions behave as missing.
type Store interface {
	// Create makes a new empty session and returns its id.
	Create(ctx context.Context) (string, error)
	// AddMessage appends a turn, evicting the oldest messages beyond the
	// history cap. Returns model.ErrSessionNotFound for unknown sessions.
	AddMessage(ctx context.Context, id, role, content string) error
	// History returns the retained messages, oldest first.
	History(ctx context.Context, id string) ([]Message, error)
	// ContextSummary renders the last maxTurns turns as "사용자:/어시스턴트:"
	// lines for prompt context. Missing sessions yield "".
	ContextSummary(ctx context.Context, id string, maxTurns int) (string, error)
	// PendingDecision returns the active marker, or nil.
	PendingDecision(ctx context.Context, id string) (*PendingDecision, error)
	// SetPendingDecision stores or (with nil) clears the marker.
	SetPendingDecision(ctx context.Context, id string, d *PendingDecision) error
	// Clear removes the session entirely.
	Clear(ctx context.Context, id string) error
	// Count reports active sessions, for health reporting.
	Count(ctx context.Context) (int, error)
}

// historyCap is messages retained per session: user+assistant per turn.
func historyCap(maxTurns int) int { return 2 * maxTurns }

func summarize(history []Message, maxTurns int) string {
	if len(history) == 0 {
		return ""
	}
	start := len(history) - 2*maxTurns
	if start < 0 {
		start = 0
	}
	out := ""
	for _, m := range history[start:] {
		label := "어시스턴트"
		if m.Role == "user" {
			label = "사용자"
		}
		if out != "" {
			out += "\n"
		}
		out += label + ": " + m.Content
	}
	return out
}

// ChatHistory converts retained messages into the LLM message shape.
func ChatHistory(history []Message) []model.ChatMessage {
	out := make([]model.ChatMessage, len(history))
	for i, m := range history {
		role := m.Role
		if role != "user" {
			role = "assistant"
		}
		out[i] = model.ChatMessage{Role: role, Content: m.Content}
	}
	return out
}
