package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/eventlog-pretsa/pkg/models"
)

// Store persists sanitization run summaries for audit: what parameters
// were used, how many cases were cut out or synthesized, and the
// resulting distance — the engine itself never touches a database.
type Store struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("connected to PostgreSQL audit store")
	return &Store{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying pool for subsystems that share the same
// connection, e.g. internal/compare's report store.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// InitSchema loads and executes the schema.sql file.
func (s *Store) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}

	log.Println("sanitization audit schema initialized")
	return nil
}

// SaveRun persists one sanitization run's summary and the set of case_ids
// that were cut out during pruning, inside a single transaction.
func (s *Store) SaveRun(ctx context.Context, summary models.RunSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var runID int64
	insertRunSQL := `
		INSERT INTO sanitization_runs
			(run_id, k, t, mode, dp_enabled, epsilon, distance, event_count, case_count, synthetic_cases)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;
	`
	err = tx.QueryRow(ctx, insertRunSQL,
		summary.RunID, summary.K, summary.T, summary.Mode, summary.DPEnabled, summary.Epsilon,
		summary.Distance, summary.EventCount, summary.CaseCount, summary.SyntheticCase,
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("failed to insert sanitization_runs: %w", err)
	}

	if len(summary.CutOutCases) > 0 {
		insertCutOutSQL := `INSERT INTO cut_out_cases (run_id, case_id) VALUES ($1, $2);`
		for _, caseID := range summary.CutOutCases {
			if _, err := tx.Exec(ctx, insertCutOutSQL, runID, caseID); err != nil {
				return fmt.Errorf("failed to insert cut_out_cases: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// ListRuns returns the most recently persisted run summaries, newest
// first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	dataSQL := `
		SELECT run_id, k, t, mode, dp_enabled, epsilon, distance, event_count, case_count, synthetic_cases
		FROM sanitization_runs
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, dataSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var r models.RunSummary
		if err := rows.Scan(&r.RunID, &r.K, &r.T, &r.Mode, &r.DPEnabled, &r.Epsilon,
			&r.Distance, &r.EventCount, &r.CaseCount, &r.SyntheticCase); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	return runs, nil
}
