// Package postgres stores analysis results in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned by Get for an unknown result ID.
var ErrNotFound = domain.ErrResultNotFound

const schema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	id           TEXT PRIMARY KEY,
	job_id       TEXT NOT NULL,
	kind         TEXT NOT NULL,
	payload      JSONB NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analysis_results_job_id_idx ON analysis_results (job_id);
`

const upsertResult = `
INSERT INTO analysis_results (id, job_id, kind, payload, processed_at)
VALUES (:id, :job_id, :kind, :payload, :processed_at)
ON CONFLICT (id) DO UPDATE SET
	job_id = EXCLUDED.job_id,
	kind = EXCLUDED.kind,
	payload = EXCLUDED.payload,
	processed_at = EXCLUDED.processed_at
`

// Record is one stored result. Payload is the result JSON; it is a string
// because lib/pq sends []byte parameters as bytea.
type Record struct {
	ID          string    `db:"id"`
	JobID       string    `db:"job_id"`
	Kind        string    `db:"kind"`
	Payload     string    `db:"payload"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Store writes results to the analysis_results table.
// It implements pipeline.BatchLoader.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// EnsureSchema creates the results table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadBatch upserts the results in one transaction, so replayed jobs
// overwrite their previous result.
func (s *Store) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]Record, len(events))
	for i, event := range events {
		rec, err := recordFromEvent(event)
		if err != nil {
			return err
		}
		records[i] = rec
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, upsertResult)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return fmt.Errorf("upsert result %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	s.logger.Debug("results stored", "count", len(records))
	return nil
}

// Get returns the stored result with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec,
		`SELECT id, job_id, kind, payload, processed_at FROM analysis_results WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get result %s: %w", id, err)
	}
	return rec, nil
}

// Result returns the stored result JSON with the given ID.
func (s *Store) Result(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return []byte(rec.Payload), nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// recordFromEvent takes the row columns from the serialized result's key and headers.
func recordFromEvent(event domain.OutputEvent) (Record, error) {
	if len(event.Key) == 0 {
		return Record{}, errors.New("result has no id")
	}
	processedAt, err := time.Parse(time.RFC3339, event.Headers[domain.HeaderProcessedAt])
	if err != nil {
		return Record{}, fmt.Errorf("result %s: invalid %s header: %w", event.Key, domain.HeaderProcessedAt, err)
	}
	return Record{
		ID:          string(event.Key),
		JobID:       event.Headers[domain.HeaderJobID],
		Kind:        event.Headers[domain.HeaderJobKind],
		Payload:     string(event.Value),
		ProcessedAt: processedAt,
	}, nil
}
