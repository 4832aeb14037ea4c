// Package session tracks per-user conversation state: the turn history and
// the referents that make follow-up utterances ("why did these fail?",
// "yes, create it") resolvable.
package session

import (
	"fmt"
	"sync"
	"time"

	"finsight/internal/logging"
	"finsight/internal/types"

	"github.com/google/uuid"
)

// Session is one user's conversation state. All mutation goes through the
// Manager so persistence stays consistent with the in-memory view.
type Session struct {
	ID          string
	UserID      string
	WorkspaceID string
	StartedAt   time.Time

	Turns []types.Turn

	// Conversational referents. LastResultSet holds the invoice ids of the
	// most recent read action so "these" resolves to something concrete.
	LastResultSet   []string
	LastFilterSlots types.Slots
	LastAnalysis    *types.FailureAnalysis

	// PendingTicketOffer is set after the assistant proactively offers to
	// create a ticket. An affirmative next turn accepts the offer.
	PendingTicketOffer bool
}

// TurnCount returns the number of recorded turns.
func (s *Session) TurnCount() int {
	return len(s.Turns)
}

// Persister is the durable backend for sessions. *store.LocalStore satisfies
// it; tests substitute a stub.
type Persister interface {
	EnsureSession(sessionID, userID, workspaceID string) error
	StoreTurn(sessionID string, turnNumber int, turn types.Turn) error
}

// Manager owns the live sessions. One session per user id; switching users
// in the UI switches sessions without losing either conversation.
type Manager struct {
	mu       sync.RWMutex
	store    Persister
	sessions map[string]*Session // keyed by user id
}

// NewManager creates a session manager. store may be nil, in which case
// sessions are memory-only.
func NewManager(store Persister) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, creating it on first use.
func (m *Manager) Get(user types.User) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[user.ID]; ok {
		return s, nil
	}

	s := &Session{
		ID:          fmt.Sprintf("sess_%s", uuid.NewString()[:8]),
		UserID:      user.ID,
		WorkspaceID: user.WorkspaceID,
		StartedAt:   time.Now(),
	}
	if m.store != nil {
		if err := m.store.EnsureSession(s.ID, s.UserID, s.WorkspaceID); err != nil {
			return nil, fmt.Errorf("failed to persist session: %w", err)
		}
	}
	m.sessions[user.ID] = s
	logging.Session("Created session %s for user %s", s.ID, user.ID)
	return s, nil
}

// Append records a completed turn, in memory and durably. Exactly one turn
// is appended per processed utterance regardless of outcome.
func (m *Manager) Append(s *Session, turn types.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.Turns = append(s.Turns, turn)

	if m.store != nil {
		if err := m.store.StoreTurn(s.ID, len(s.Turns), turn); err != nil {
			// The in-memory record stands; persistence failure is logged,
			// not surfaced as a turn failure.
			logging.Get(logging.CategorySession).Error("Failed to persist turn %d of %s: %v", len(s.Turns), s.ID, err)
		}
	}

	logging.SessionDebug("Session %s turn %d: %s", s.ID, len(s.Turns), turn.Summary())
	return nil
}

// RecordResultSet updates the conversational referents after a read action.
func (m *Manager) RecordResultSet(s *Session, invoiceIDs []string, slots types.Slots) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastResultSet = invoiceIDs
	s.LastFilterSlots = slots
	s.LastAnalysis = nil
	s.PendingTicketOffer = false
}

// RecordAnalysis stores a failure analysis and marks the ticket offer open.
func (m *Manager) RecordAnalysis(s *Session, analysis *types.FailureAnalysis, offerTicket bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastAnalysis = analysis
	s.PendingTicketOffer = offerTicket
}

// ClearTicketOffer withdraws a pending ticket offer (the user moved on).
func (m *Manager) ClearTicketOffer(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.PendingTicketOffer = false
}

// ContextSummary renders a short description of the session state for the
// UI's context panel.
func (m *Manager) ContextSummary(s *Session) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(s.Turns) == 0 {
		return "No conversation yet."
	}
	summary := fmt.Sprintf("%d turns", len(s.Turns))
	if len(s.LastResultSet) > 0 {
		summary += fmt.Sprintf(", last result: %d invoices", len(s.LastResultSet))
	}
	if s.PendingTicketOffer {
		summary += ", ticket offer pending"
	}
	return summary
}
