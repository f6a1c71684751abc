// Package session keeps per-conversation chat history in memory. History
// exists to give the model conversational context; it is not durable and
// restarting the server clears it.
package session

import (
	"sync"
	"time"
)

// Turn is one message in a conversation.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// Timestamp records when the turn was added.
	Timestamp time.Time `json:"timestamp"`
}

// Manager stores conversation turns keyed by session ID. Safe for
// concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string][]Turn
	maxTurns int
}

// NewManager creates a session manager. maxTurns caps how many turns are
// retained per session; older turns are discarded first.
func NewManager(maxTurns int) *Manager {
	if maxTurns <= 0 {
		maxTurns = 50
	}
	return &Manager{
		sessions: make(map[string][]Turn),
		maxTurns: maxTurns,
	}
}

// Add appends a turn to the session, trimming the oldest turns beyond the
// retention cap. An empty session ID is a no-op.
func (m *Manager) Add(sessionID, role, content string) {
	if sessionID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	turns := append(m.sessions[sessionID], Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(turns) > m.maxTurns {
		turns = turns[len(turns)-m.maxTurns:]
	}
	m.sessions[sessionID] = turns
}

// History returns up to limit of the most recent turns for the session,
// oldest first. limit <= 0 returns the full retained history.
func (m *Manager) History(sessionID string, limit int) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.sessions[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear removes all history for the session.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
