package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeSampleData(t, dir)

	s, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, s.Invoices(), 3)

	w, err := NewWatcher(s)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Drop one invoice from the file and wait for the debounced reload.
	updated := `{"invoices": [
		{"id": "inv_001", "invoice_number": "IS-2024-001", "vendor": "IndiSky", "amount": 125000, "currency": "INR", "status": "failed", "failure_reason": "missing_gstin", "date": "2024-08-05", "workspace_id": "ws_001"}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoices.json"), []byte(updated), 0644))

	require.Eventually(t, func() bool {
		return len(s.Invoices()) == 1
	}, 5*time.Second, 50*time.Millisecond, "watcher should reload the dataset after a write")

	assert.GreaterOrEqual(t, w.Stats().Reloads, 1)
}

func TestWatcherIgnoresNonJSON(t *testing.T) {
	dir := t.TempDir()
	writeSampleData(t, dir)

	s, err := Load(dir)
	require.NoError(t, err)

	w, err := NewWatcher(s)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0644))
	time.Sleep(800 * time.Millisecond)

	assert.Equal(t, 0, w.Stats().EventsSeen)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeSampleData(t, dir)
	s, err := Load(dir)
	require.NoError(t, err)

	w, err := NewWatcher(s)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsWatching())

	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
}
