package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/engine"
)

func TestAppendEvents_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	wf := Workflow{Feature: "orders", Tenant: "acme"}

	err := s.AppendEvents(ctx, wf, "run-1", "hash-1", []engine.Event{
		event(1, engine.EventTransition, "Pending", "Confirmed"),
		event(2, engine.EventTransition, "Confirmed", "Delivered"),
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM transitions WHERE feature = ? AND tenant = ?", "orders", "acme",
	).Scan(&count))
	assert.Equal(t, 2, count)

	var runID, specHash, kind string
	require.NoError(t, s.db.QueryRow(
		"SELECT run_id, spec_hash, kind FROM transitions WHERE seq = 2",
	).Scan(&runID, &specHash, &kind))
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, "hash-1", specHash)
	assert.Equal(t, "transition", kind)
}

func TestAppendEvents_Empty(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.AppendEvents(context.Background(), Workflow{Feature: "orders"}, "r", "h", nil))
}

func TestAppendEvents_ConflictIsAtomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	wf := Workflow{Feature: "orders"}

	require.NoError(t, s.AppendEvents(ctx, wf, "run-1", "h", []engine.Event{
		event(1, engine.EventTransition, "Pending", "Confirmed"),
	}))

	// A second writer that loaded the same starting point reuses seq 1.
	err := s.AppendEvents(ctx, wf, "run-2", "h", []engine.Event{
		event(2, engine.EventTransition, "Confirmed", "Delivered"),
		event(1, engine.EventTransition, "Pending", "Confirmed"),
	})
	require.ErrorIs(t, err, ErrConflict)

	history, err := s.History(ctx, wf)
	require.NoError(t, err)
	require.Len(t, history, 1, "failed batch must not leave partial rows")
	assert.Equal(t, "run-1", history[0].RunID)
}

func TestAppendEvents_RejectsOtherFeature(t *testing.T) {
	s := createTestStore(t)

	err := s.AppendEvents(context.Background(), Workflow{Feature: "payment"}, "r", "h", []engine.Event{
		event(1, engine.EventTransition, "Pending", "Confirmed"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `event for feature "orders"`)
}

func TestSaveScan_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.SaveScan(ctx, createTestReport("/a"))
	require.NoError(t, err)
	id2, err := s.SaveScan(ctx, createTestReport("/b"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	var seq1, seq2 int64
	require.NoError(t, s.db.QueryRow("SELECT seq FROM scans WHERE id = ?", id1).Scan(&seq1))
	require.NoError(t, s.db.QueryRow("SELECT seq FROM scans WHERE id = ?", id2).Scan(&seq2))
	assert.Equal(t, int64(1), seq1)
	assert.Equal(t, int64(2), seq2)
}

func TestSaveScan_StoresCanonicalReport(t *testing.T) {
	s := createTestStore(t)
	r := createTestReport("/a")

	id, err := s.SaveScan(context.Background(), r)
	require.NoError(t, err)

	var stored string
	var findings int
	require.NoError(t, s.db.QueryRow("SELECT report, findings FROM scans WHERE id = ?", id).Scan(&stored, &findings))
	want, err := marshalReport(r)
	require.NoError(t, err)
	assert.Equal(t, want, stored)
	assert.Equal(t, 1, findings)
}
