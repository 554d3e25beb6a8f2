// Package journal persists per-cycle outcomes and diagnostic reports to
// sqlite. It is a write-only flight recorder: the control loop never reads
// it back, and a broken journal never stops the vehicle.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/autoflux/autoflux/internal/diagnostics"
	"github.com/autoflux/autoflux/internal/supervisor"
	"github.com/autoflux/autoflux/internal/timeutil"
)

// Store records cycles for one run. Each Open gets a fresh run ID so
// multiple runs share a database file without ambiguity.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
	runID uuid.UUID
	log   zerolog.Logger
}

// Open opens (creating if needed) the journal database at path and applies
// pending migrations.
func Open(path string, clock timeutil.Clock, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// modernc sqlite allows one writer; the recorder is the only user.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal pragmas: %w", err)
	}

	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:    db,
		clock: clock,
		runID: uuid.New(),
		log:   log,
	}
	log.Info().Str("path", path).Str("run_id", s.runID.String()).Msg("journal opened")
	return s, nil
}

// RunID returns this run's identifier.
func (s *Store) RunID() uuid.UUID { return s.runID }

// Record writes one cycle and its diagnostic reports in a single
// transaction.
func (s *Store) Record(cycle uint64, outcome supervisor.CycleOutcome, reports []diagnostics.Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.clock.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(
		`INSERT INTO cycles (run_id, cycle, outcome, reason, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID.String(), cycle, outcome.Kind.String(), outcome.Reason, now,
	)
	if err != nil {
		return fmt.Errorf("journal insert cycle: %w", err)
	}

	for _, r := range reports {
		detail := ""
		if len(r.Detail) > 0 {
			b, err := json.Marshal(r.Detail)
			if err != nil {
				return fmt.Errorf("journal encode report detail: %w", err)
			}
			detail = string(b)
		}
		_, err = tx.Exec(
			`INSERT INTO reports (id, run_id, cycle, component, level, message, detail, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(), s.runID.String(), cycle,
			r.Component.String(), r.Level.String(), r.Message, detail,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("journal insert report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
