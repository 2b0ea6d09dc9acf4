package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/predman/projsim/internal/constants"
	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteCatalog implements RunCatalog on a SQLite database.
type SQLiteCatalog struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteCatalog opens (creating if needed) the catalog at path.
func OpenSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Batch workers record concurrently; a single connection serializes them.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db, dbPath: path}, nil
}

// Path returns the database file path.
func (s *SQLiteCatalog) Path() string {
	return s.dbPath
}

// BeginBatch inserts b under a fresh UUID.
func (s *SQLiteCatalog) BeginBatch(ctx context.Context, b Batch) (string, error) {
	id := uuid.NewString()
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, split, dir, seed, requested, started_at, failed)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		id, string(b.Split), b.Dir, int64(b.Seed), b.Requested, formatTime(b.StartedAt))
	if err != nil {
		return "", fmt.Errorf("failed to insert batch: %w", err)
	}
	return id, nil
}

// RecordRun upserts the outcome of one instance.
func (s *SQLiteCatalog) RecordRun(ctx context.Context, r Run) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (batch_id, idx, seed, stream, params, label, rows, truncated, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BatchID, r.Index, int64(r.Seed), int64(r.Stream), string(params),
		r.Label, r.Rows, boolToInt(r.Truncated), string(r.Status), nullString(r.Error))
	if err != nil {
		return fmt.Errorf("failed to record run %d: %w", r.Index, err)
	}
	return nil
}

// FinishBatch stamps the finish time and failure count.
func (s *SQLiteCatalog) FinishBatch(ctx context.Context, batchID string, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET finished_at = ?, failed = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), failed, batchID)
	if err != nil {
		return fmt.Errorf("failed to finish batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return nil
}

// Runs returns the runs of a batch ordered by index.
func (s *SQLiteCatalog) Runs(ctx context.Context, batchID string) ([]Run, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE id = ?`, batchID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up batch: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, seed, stream, params, label, rows, truncated, status, error
		FROM runs WHERE batch_id = ? ORDER BY idx`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			seed      int64
			stream    int64
			params    string
			label     sql.NullInt64
			nrows     sql.NullInt64
			truncated int
			status    string
			errText   sql.NullString
		)
		if err := rows.Scan(&r.Index, &seed, &stream, &params, &label, &nrows, &truncated, &status, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params of run %d: %w", r.Index, err)
		}
		r.BatchID = batchID
		r.Seed = uint64(seed)
		r.Stream = uint64(stream)
		r.Label = int(label.Int64)
		r.Rows = int(nrows.Int64)
		r.Truncated = truncated != 0
		r.Status = RunStatus(status)
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

const batchColumns = `id, split, dir, seed, requested, started_at, finished_at, failed`

// Batch returns one batch by ID.
func (s *SQLiteCatalog) Batch(ctx context.Context, batchID string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, batchID)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}
	return b, nil
}

// LatestBatch returns the most recently started batch for split.
func (s *SQLiteCatalog) LatestBatch(ctx context.Context, split constants.Split) (*Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+`
		FROM batches WHERE split = ?
		ORDER BY started_at DESC, rowid DESC LIMIT 1`, string(split))
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no %s batch: %w", split, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest batch: %w", err)
	}
	return b, nil
}

func scanBatch(row *sql.Row) (*Batch, error) {
	var (
		b         Batch
		splitText string
		seed      int64
		started   string
		finished  sql.NullString
	)
	if err := row.Scan(&b.ID, &splitText, &b.Dir, &seed, &b.Requested, &started, &finished, &b.Failed); err != nil {
		return nil, err
	}

	b.Split = constants.Split(splitText)
	b.Seed = uint64(seed)
	var err error
	if b.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, err
		}
		b.FinishedAt = &t
	}
	return &b, nil
}

// Check runs the SQLite integrity and foreign key checks.
func (s *SQLiteCatalog) Check(ctx context.Context) error {
	return ValidateIntegrity(ctx, s.db)
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
