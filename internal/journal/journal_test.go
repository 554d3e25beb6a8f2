package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoflux/autoflux/internal/diagnostics"
	"github.com/autoflux/autoflux/internal/supervisor"
	"github.com/autoflux/autoflux/internal/timeutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"), clock, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := MigrateVersion(s.db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestRecordWritesCycleAndReports(t *testing.T) {
	s := openTestStore(t)

	reports := []diagnostics.Report{
		{
			ID:        uuid.New(),
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Component: diagnostics.ComponentControl,
			Level:     diagnostics.LevelCritical,
			Message:   "steering unresponsive",
			Detail:    map[string]any{"actuator_errors": 1},
		},
	}
	outcome := supervisor.CycleOutcome{Kind: supervisor.OutcomeEmergencyTriggered, Reason: "steering unresponsive"}
	require.NoError(t, s.Record(7, outcome, reports))

	var cycle uint64
	var kind, reason, runID string
	row := s.db.QueryRow(`SELECT cycle, outcome, reason, run_id FROM cycles`)
	require.NoError(t, row.Scan(&cycle, &kind, &reason, &runID))
	assert.Equal(t, uint64(7), cycle)
	assert.Equal(t, "emergency_triggered", kind)
	assert.Equal(t, "steering unresponsive", reason)
	assert.Equal(t, s.RunID().String(), runID)

	var component, level, detail string
	row = s.db.QueryRow(`SELECT component, level, detail FROM reports WHERE cycle = 7`)
	require.NoError(t, row.Scan(&component, &level, &detail))
	assert.Equal(t, "control", component)
	assert.Equal(t, "critical", level)
	assert.JSONEq(t, `{"actuator_errors": 1}`, detail)
}

func TestRecordManyCycles(t *testing.T) {
	s := openTestStore(t)

	for i := uint64(1); i <= 25; i++ {
		require.NoError(t, s.Record(i, supervisor.CycleOutcome{Kind: supervisor.OutcomeOk}, nil))
	}

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM cycles`).Scan(&n))
	assert.Equal(t, 25, n)
}

func TestReopenSharesDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	first, err := Open(path, clock, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Record(1, supervisor.CycleOutcome{Kind: supervisor.OutcomeOk}, nil))
	firstRun := first.RunID()
	require.NoError(t, first.Close())

	second, err := Open(path, clock, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck

	assert.NotEqual(t, firstRun, second.RunID(), "each run gets a fresh run ID")
	require.NoError(t, second.Record(1, supervisor.CycleOutcome{Kind: supervisor.OutcomeOk}, nil))

	var n int
	require.NoError(t, second.db.QueryRow(`SELECT COUNT(DISTINCT run_id) FROM cycles`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestMigrateDown(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, MigrateDown(s.db))
	version, dirty, err := MigrateVersion(s.db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Zero(t, version)
}
