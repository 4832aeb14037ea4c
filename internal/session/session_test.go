package session

import (
	"errors"
	"testing"

	"finsight/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersister struct {
	sessions map[string]string
	turns    map[string][]types.Turn
	failTurn bool
}

func newFakePersister() *fakePersister {
	return &fakePersister{
		sessions: make(map[string]string),
		turns:    make(map[string][]types.Turn),
	}
}

func (f *fakePersister) EnsureSession(sessionID, userID, workspaceID string) error {
	f.sessions[sessionID] = userID
	return nil
}

func (f *fakePersister) StoreTurn(sessionID string, turnNumber int, turn types.Turn) error {
	if f.failTurn {
		return errors.New("disk full")
	}
	f.turns[sessionID] = append(f.turns[sessionID], turn)
	return nil
}

var analyst = types.User{ID: "user_001", Name: "Priya Sharma", Role: types.RoleFinancialAnalyst, WorkspaceID: "ws_001"}

func TestGetCreatesOncePerUser(t *testing.T) {
	p := newFakePersister()
	m := NewManager(p)

	s1, err := m.Get(analyst)
	require.NoError(t, err)
	s2, err := m.Get(analyst)
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Len(t, p.sessions, 1)
	assert.Equal(t, "ws_001", s1.WorkspaceID)
}

func TestGetSeparateSessionsPerUser(t *testing.T) {
	m := NewManager(nil)

	viewer := types.User{ID: "user_003", Role: types.RoleReportViewer, WorkspaceID: "ws_001"}
	s1, err := m.Get(analyst)
	require.NoError(t, err)
	s2, err := m.Get(viewer)
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID, s2.ID)
}

func TestAppendRecordsAndPersists(t *testing.T) {
	p := newFakePersister()
	m := NewManager(p)
	s, err := m.Get(analyst)
	require.NoError(t, err)

	require.NoError(t, m.Append(s, types.Turn{
		Utterance: "Show me failed invoices",
		Action:    types.ActionFilterInvoices,
		Result:    types.ResultOK,
		Response:  "Found 2.",
	}))

	assert.Equal(t, 1, s.TurnCount())
	assert.Len(t, p.turns[s.ID], 1)
	assert.False(t, s.Turns[0].Timestamp.IsZero())
}

func TestAppendSurvivesPersistenceFailure(t *testing.T) {
	p := newFakePersister()
	p.failTurn = true
	m := NewManager(p)
	s, err := m.Get(analyst)
	require.NoError(t, err)

	// Persistence failure must not fail the turn.
	require.NoError(t, m.Append(s, types.Turn{Utterance: "hi", Result: types.ResultOK}))
	assert.Equal(t, 1, s.TurnCount())
}

func TestRecordResultSetResetsReferents(t *testing.T) {
	m := NewManager(nil)
	s, err := m.Get(analyst)
	require.NoError(t, err)

	m.RecordAnalysis(s, &types.FailureAnalysis{TotalInvoices: 2}, true)
	require.True(t, s.PendingTicketOffer)

	slots := types.Slots{Vendor: "IndiSky"}
	m.RecordResultSet(s, []string{"inv_001", "inv_002"}, slots)

	assert.Equal(t, []string{"inv_001", "inv_002"}, s.LastResultSet)
	assert.Equal(t, "IndiSky", s.LastFilterSlots.Vendor)
	assert.Nil(t, s.LastAnalysis, "a new result set clears the previous analysis")
	assert.False(t, s.PendingTicketOffer, "a new result set withdraws the ticket offer")
}

func TestContextSummary(t *testing.T) {
	m := NewManager(nil)
	s, err := m.Get(analyst)
	require.NoError(t, err)

	assert.Equal(t, "No conversation yet.", m.ContextSummary(s))

	require.NoError(t, m.Append(s, types.Turn{Utterance: "hi", Result: types.ResultOK}))
	m.RecordResultSet(s, []string{"inv_001"}, types.Slots{})
	m.RecordAnalysis(s, &types.FailureAnalysis{}, true)

	summary := m.ContextSummary(s)
	assert.Contains(t, summary, "1 turns")
	assert.Contains(t, summary, "1 invoices")
	assert.Contains(t, summary, "ticket offer pending")
}
