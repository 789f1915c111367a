// Package history keeps a local journal of submitted search requests and
// a compressed cache of the results they returned.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/rubiojr/aurorax/pkg/db"
	"github.com/rubiojr/aurorax/pkg/log"
)

var ErrNotFound = errors.New("history: request not found")

// Entry is the journal row for one search request.
type Entry struct {
	RequestID       string
	Domain          string
	RequestURL      string
	Query           json.RawMessage
	State           string
	ResultCount     int64
	FileSize        int64
	QueryDurationMs int64
	LastLog         string
	SubmittedAt     time.Time
	UpdatedAt       time.Time
	Cached          bool
}

// Store is a SQLite backed journal.
type Store struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	log     *log.Logger
}

// Open opens (creating if needed) the journal at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := sqldb.Exec(pragma); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}

	if err := db.InitializeDatabase(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Store{
		db:      sqldb,
		encoder: encoder,
		decoder: decoder,
		log:     log.ForService("history"),
	}, nil
}

func (s *Store) Close() error {
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		s.log.Warnf("closing zstd encoder: %v", err)
	}
	return s.db.Close()
}

// Record inserts e or updates the existing row with the same request id.
// The original submission time of an existing row is kept.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RequestID == "" {
		return errors.New("history: entry has no request id")
	}
	now := time.Now().UTC()
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (request_id, domain, request_url, query, state, result_count,
			file_size, query_duration_ms, last_log, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			domain = excluded.domain,
			request_url = excluded.request_url,
			query = CASE WHEN excluded.query = '' THEN jobs.query ELSE excluded.query END,
			state = excluded.state,
			result_count = excluded.result_count,
			file_size = excluded.file_size,
			query_duration_ms = excluded.query_duration_ms,
			last_log = excluded.last_log,
			updated_at = excluded.updated_at`,
		e.RequestID, e.Domain, e.RequestURL, string(e.Query), e.State, e.ResultCount,
		e.FileSize, e.QueryDurationMs, e.LastLog,
		formatTime(e.SubmittedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.RequestID, err)
	}
	s.log.Debugf("recorded %s (%s)", e.RequestID, e.State)
	return nil
}

const entryColumns = `j.request_id, j.domain, j.request_url, j.query, j.state, j.result_count,
	j.file_size, j.query_duration_ms, j.last_log, j.submitted_at, j.updated_at,
	r.request_id IS NOT NULL`

func (s *Store) Get(ctx context.Context, requestID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+`
		FROM jobs j LEFT JOIN results r ON r.request_id = j.request_id
		WHERE j.request_id = ?`, requestID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", requestID, err)
	}
	return e, nil
}

// ListOptions narrow List. Zero values mean no filter.
type ListOptions struct {
	Domain string
	State  string
	Limit  int
}

// List returns journal entries, newest submission first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM jobs j LEFT JOIN results r ON r.request_id = j.request_id
		WHERE (? = '' OR j.domain = ?) AND (? = '' OR j.state = ?)
		ORDER BY j.submitted_at DESC`
	args := []any{opts.Domain, opts.Domain, opts.State, opts.State}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.log.Warnf("failed to close rows: %v", err)
		}
	}()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Delete removes the entry and any cached results.
func (s *Store) Delete(ctx context.Context, requestID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				s.log.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM results WHERE request_id = ?", requestID); err != nil {
		return fmt.Errorf("deleting cached results: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE request_id = ?", requestID)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", requestID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	committed = true
	return nil
}

// SaveResults compresses payload and stores it against an existing entry.
func (s *Store) SaveResults(ctx context.Context, requestID string, payload []byte) error {
	compressed := s.encoder.EncodeAll(payload, make([]byte, 0, len(payload)/2))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (request_id, encoding, raw_size, payload, stored_at)
		SELECT ?, 'zstd', ?, ?, ? WHERE EXISTS (SELECT 1 FROM jobs WHERE request_id = ?)
		ON CONFLICT(request_id) DO UPDATE SET
			raw_size = excluded.raw_size,
			payload = excluded.payload,
			stored_at = excluded.stored_at`,
		requestID, len(payload), compressed, formatTime(time.Now()), requestID)
	if err != nil {
		return fmt.Errorf("caching results for %s: %w", requestID, err)
	}
	s.log.Debugf("cached %s: %d bytes (%d compressed)", requestID, len(payload), len(compressed))
	return nil
}

// LoadResults returns the decompressed payload cached for requestID.
func (s *Store) LoadResults(ctx context.Context, requestID string) ([]byte, error) {
	var encoding string
	var rawSize int
	var compressed []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT encoding, raw_size, payload FROM results WHERE request_id = ?", requestID).
		Scan(&encoding, &rawSize, &compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading cached results: %w", err)
	}

	switch encoding {
	case "zstd":
		out, err := s.decoder.DecodeAll(compressed, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("decompressing results for %s: %w", requestID, err)
		}
		return out, nil
	case "identity":
		return compressed, nil
	default:
		return nil, fmt.Errorf("unsupported result encoding %q", encoding)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var query, submitted, updated string
	if err := row.Scan(&e.RequestID, &e.Domain, &e.RequestURL, &query, &e.State,
		&e.ResultCount, &e.FileSize, &e.QueryDurationMs, &e.LastLog,
		&submitted, &updated, &e.Cached); err != nil {
		return nil, err
	}
	if query != "" {
		e.Query = json.RawMessage(query)
	}
	e.SubmittedAt = parseTime(submitted)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
