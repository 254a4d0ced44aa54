package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{path: cfg.Path}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded migration files.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateExecution inserts a new execution record.
func (s *SQLiteStore) CreateExecution(ctx context.Context, exec *Execution) error {
	query := `
		INSERT INTO executions (name, request_id, request_type, stack_id, build_id, status, build_status, error, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if exec.StartedAt.IsZero() {
		exec.StartedAt = now
	}
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = now
	}
	if exec.UpdatedAt.IsZero() {
		exec.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, query,
		exec.Name,
		exec.RequestID,
		exec.RequestType,
		exec.StackID,
		exec.BuildID,
		exec.Status,
		exec.BuildStatus,
		exec.Error,
		exec.StartedAt,
		exec.CompletedAt,
		exec.CreatedAt,
		exec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

// GetExecution retrieves an execution by name.
func (s *SQLiteStore) GetExecution(ctx context.Context, name string) (*Execution, error) {
	query := `
		SELECT name, request_id, request_type, stack_id, build_id, status, build_status, error, started_at, completed_at, created_at, updated_at
		FROM executions
		WHERE name = ?
	`

	exec := &Execution{}
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&exec.Name,
		&exec.RequestID,
		&exec.RequestType,
		&exec.StackID,
		&exec.BuildID,
		&exec.Status,
		&exec.BuildStatus,
		&exec.Error,
		&exec.StartedAt,
		&exec.CompletedAt,
		&exec.CreatedAt,
		&exec.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	return exec, nil
}

// UpdateExecution updates the status fields of an execution. CompletedAt is
// stamped when the status is terminal.
func (s *SQLiteStore) UpdateExecution(ctx context.Context, name string, status ExecutionStatus, buildID, buildStatus, errMsg *string) error {
	query := `
		UPDATE executions
		SET status = ?,
		    build_id = COALESCE(?, build_id),
		    build_status = COALESCE(?, build_status),
		    error = COALESCE(?, error),
		    completed_at = ?,
		    updated_at = ?
		WHERE name = ?
	`

	now := time.Now().UTC()
	var completedAt *time.Time
	if status == ExecutionStatusSucceeded || status == ExecutionStatusFailed {
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, buildID, buildStatus, errMsg, completedAt, now, name)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("execution not found: %s", name)
	}

	return nil
}

// ListExecutions returns executions ordered by most recent first.
func (s *SQLiteStore) ListExecutions(ctx context.Context, limit, offset int) ([]*Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT name, request_id, request_type, stack_id, build_id, status, build_status, error, started_at, completed_at, created_at, updated_at
		FROM executions
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		exec := &Execution{}
		if err := rows.Scan(
			&exec.Name,
			&exec.RequestID,
			&exec.RequestType,
			&exec.StackID,
			&exec.BuildID,
			&exec.Status,
			&exec.BuildStatus,
			&exec.Error,
			&exec.StartedAt,
			&exec.CompletedAt,
			&exec.CreatedAt,
			&exec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return executions, nil
}

// AppendEvent appends an event to the journal.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (execution_name, request_id, level, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, query,
		event.ExecutionName,
		event.RequestID,
		event.Level,
		event.Message,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}

	return nil
}

// GetEvents retrieves events for a request, oldest first.
func (s *SQLiteStore) GetEvents(ctx context.Context, requestID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, execution_name, request_id, level, message, timestamp
		FROM events
		WHERE request_id = ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, requestID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		if err := rows.Scan(
			&event.ID,
			&event.ExecutionName,
			&event.RequestID,
			&event.Level,
			&event.Message,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
