// Package store persists sessions, turns, and tickets in SQLite so a chat
// session survives a restart. The in-memory dataset remains the read model;
// this store is the durable write model behind it.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finsight/internal/logging"
	"finsight/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// LocalStore is a SQLite-backed store. A single connection with WAL keeps
// writer contention trivial at this scale.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Initializing LocalStore at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("LocalStore ready")
	return s, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS session_turns (
			session_id TEXT NOT NULL,
			turn_number INTEGER NOT NULL,
			utterance TEXT NOT NULL,
			action TEXT,
			result TEXT NOT NULL,
			response TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, turn_number)
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			created_by TEXT NOT NULL,
			status TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON session_turns(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_workspace ON tickets(workspace_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// EnsureSession records a session row if one does not exist yet.
func (s *LocalStore) EnsureSession(sessionID, userID, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, user_id, workspace_id) VALUES (?, ?, ?)`,
		sessionID, userID, workspaceID,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to ensure session %s: %v", sessionID, err)
		return err
	}
	return nil
}

// StoreTurn records a conversation turn. INSERT OR IGNORE keeps a retried
// turn number idempotent.
func (s *LocalStore) StoreTurn(sessionID string, turnNumber int, turn types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Storing turn: session=%s turn=%d result=%s", sessionID, turnNumber, turn.Result)

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO session_turns (session_id, turn_number, utterance, action, result, response)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, turnNumber, turn.Utterance, string(turn.Action), string(turn.Result), turn.Response,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store turn: session=%s turn=%d: %v", sessionID, turnNumber, err)
		return err
	}
	return nil
}

// SessionTurns retrieves a session's turns in chronological order.
func (s *LocalStore) SessionTurns(sessionID string, limit int) ([]types.Turn, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SessionTurns")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT utterance, action, result, response, created_at
		 FROM session_turns
		 WHERE session_id = ?
		 ORDER BY turn_number ASC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to query turns for %s: %v", sessionID, err)
		return nil, err
	}
	defer rows.Close()

	var turns []types.Turn
	for rows.Next() {
		var t types.Turn
		var action, result string
		var createdAt time.Time
		if err := rows.Scan(&t.Utterance, &action, &result, &t.Response, &createdAt); err != nil {
			continue
		}
		t.Action = types.ActionKind(action)
		t.Result = types.ResultKind(result)
		t.Timestamp = createdAt
		turns = append(turns, t)
	}

	logging.StoreDebug("Retrieved %d turns for session=%s", len(turns), sessionID)
	return turns, rows.Err()
}

// SaveTicket persists a ticket. The full record is stored as JSON alongside
// the columns used for lookups.
func (s *LocalStore) SaveTicket(t types.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode ticket %s: %w", t.ID, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO tickets (id, workspace_id, created_by, status, payload) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, payload = excluded.payload`,
		t.ID, t.WorkspaceID, t.CreatedBy, string(t.Status), string(payload),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to save ticket %s: %v", t.ID, err)
		return err
	}

	logging.Store("Saved ticket %s (%s)", t.ID, t.Status)
	return nil
}

// Tickets returns persisted tickets, oldest first. An empty workspaceID
// returns every workspace; boot uses that to rehydrate the dataset.
func (s *LocalStore) Tickets(workspaceID string) ([]types.Ticket, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Tickets")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT payload FROM tickets WHERE workspace_id = ? ORDER BY created_at ASC`
	args := []interface{}{workspaceID}
	if workspaceID == "" {
		query = `SELECT payload FROM tickets ORDER BY created_at ASC`
		args = nil
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []types.Ticket
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var t types.Ticket
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping undecodable ticket row: %v", err)
			continue
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// LatestSessionID returns the most recently created session for a user, or
// "" when the user has none.
func (s *LocalStore) LatestSessionID(userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRow(
		`SELECT id FROM sessions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		userID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// TicketCount returns the number of persisted tickets across all workspaces,
// for the status display.
func (s *LocalStore) TicketCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tickets`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
