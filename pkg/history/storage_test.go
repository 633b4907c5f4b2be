package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsd-bridge/pkg/types"
)

func testRun(id string, direction types.Direction, startedAt time.Time) *types.Run {
	return &types.Run{
		ID:        id,
		Direction: direction,
		Account:   "0x2222222222222222222222222222222222222222",
		Amount:    "100",
		Status:    types.StatusSucceeded,
		StartedAt: startedAt,
	}
}

func TestRecordAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	storage, err := NewStorage(path)
	require.NoError(t, err)
	assert.Zero(t, storage.Count())

	run := testRun("run-1", types.DirectionSupply, time.Now())
	require.NoError(t, storage.Record(run))

	// A fresh instance reads the same journal back.
	reloaded, err := NewStorage(path)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Count())

	got, err := reloaded.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, types.DirectionSupply, got.Direction)
	assert.Equal(t, "100", got.Amount)
}

func TestRecordOverwritesSameID(t *testing.T) {
	storage, err := NewStorage(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	run := testRun("run-1", types.DirectionSupply, time.Now())
	run.Status = types.StatusPolling
	require.NoError(t, storage.Record(run))

	run.Status = types.StatusSucceeded
	require.NoError(t, storage.Record(run))

	require.Equal(t, 1, storage.Count())
	got, err := storage.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSucceeded, got.Status)
}

func TestRecordRejectsMissingID(t *testing.T) {
	storage, err := NewStorage(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	assert.Error(t, storage.Record(&types.Run{}))
}

func TestGetUnknownRun(t *testing.T) {
	storage, err := NewStorage(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	_, err = storage.Get("nope")
	assert.Error(t, err)
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	storage, err := NewStorage(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	base := time.Now()
	require.NoError(t, storage.Record(testRun("old", types.DirectionSupply, base.Add(-time.Hour))))
	require.NoError(t, storage.Record(testRun("new", types.DirectionWithdraw, base)))
	require.NoError(t, storage.Record(testRun("mid", types.DirectionSupply, base.Add(-time.Minute))))

	runs := storage.List()
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Equal(t, "old", runs[2].ID)
}

func TestListByDirection(t *testing.T) {
	storage, err := NewStorage(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	require.NoError(t, storage.Record(testRun("s1", types.DirectionSupply, time.Now())))
	require.NoError(t, storage.Record(testRun("w1", types.DirectionWithdraw, time.Now())))

	supplies := storage.ListByDirection(types.DirectionSupply)
	require.Len(t, supplies, 1)
	assert.Equal(t, "s1", supplies[0].ID)
}

func TestCorruptJournalFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStorage(path)
	assert.Error(t, err)
}
