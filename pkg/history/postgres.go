package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/types"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRecorder implements Recorder using PostgreSQL
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder connects to dsn and creates the schema if needed
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &PostgresRecorder{db: db}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return r, nil
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	schema, err := migrationsFS.ReadFile("migrations/001_outcomes.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Record inserts an outcome, filling in ID and timestamp when unset
func (r *PostgresRecorder) Record(ctx context.Context, o types.Outcome) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}

	query := `
		INSERT INTO remediation_outcomes (
			id, action, target, verdict, success, timed_out, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		o.ID, string(o.Action), o.Target, string(o.Verdict),
		o.Success, o.TimedOut, o.Error, o.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// Recent returns the newest outcomes first
func (r *PostgresRecorder) Recent(ctx context.Context, limit int) ([]types.Outcome, error) {
	if limit <= 0 {
		limit = DefaultCapacity
	}

	query := `
		SELECT id, action, target, verdict, success, timed_out, error, created_at
		FROM remediation_outcomes
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []types.Outcome
	for rows.Next() {
		var o types.Outcome
		var action, verdict string
		if err := rows.Scan(&o.ID, &action, &o.Target, &verdict, &o.Success, &o.TimedOut, &o.Error, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Action = types.ActionKind(action)
		o.Verdict = types.Verdict(verdict)
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

// Close closes the database connection
func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
