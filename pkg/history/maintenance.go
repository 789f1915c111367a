package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/aurorax/pkg/db"
)

// MigrationStatus reports the schema migrations of the journal.
func (s *Store) MigrationStatus() (*db.MigrationStatus, error) {
	return db.NewMigrationManager(s.db).GetMigrationStatus()
}

// Prune deletes entries submitted before cutoff together with their cached
// results and returns how many entries were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				s.log.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	ts := formatTime(cutoff)
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE request_id IN
		(SELECT request_id FROM jobs WHERE submitted_at < ?)`, ts); err != nil {
		return 0, fmt.Errorf("pruning cached results: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE submitted_at < ?", ts)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	committed = true
	s.log.Debugf("pruned %d entries older than %s", n, ts)
	return n, nil
}

// Optimize refreshes planner statistics and truncates the WAL.
func (s *Store) Optimize(ctx context.Context) error {
	for _, stmt := range []string{"PRAGMA optimize", "PRAGMA wal_checkpoint(TRUNCATE)"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// Vacuum rebuilds the database file, reclaiming space freed by Prune.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Check runs SQLite's integrity check and returns its problems, if any.
func (s *Store) Check(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var problems []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		if msg != "ok" {
			problems = append(problems, msg)
		}
	}
	return problems, rows.Err()
}
