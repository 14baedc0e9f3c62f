package journal

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"

	"github.com/danpasecinic/taskwarden/internal/types"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresJournal is a PostgreSQL implementation of Journal
type PostgresJournal struct {
	db *sql.DB
}

// NewPostgresJournal connects to the database and applies pending migrations
func NewPostgresJournal(connectionString string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	j := &PostgresJournal{db: db}

	if err := j.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return j, nil
}

// Close closes the database connection
func (j *PostgresJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// runMigrations applies database schema using goose
func (j *PostgresJournal) runMigrations() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(j.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Append inserts a failure record
func (j *PostgresJournal) Append(rec types.FailureRecord) error {
	query := `
		INSERT INTO failures (task_id, name, reason, occurred_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := j.db.Exec(query, int64(rec.TaskID), rec.Name, string(rec.Reason), rec.Time)
	if err != nil {
		return fmt.Errorf("failed to insert failure: %w", err)
	}

	return nil
}

// List returns up to limit records, newest first
func (j *PostgresJournal) List(limit int) ([]types.FailureRecord, error) {
	query := `
		SELECT task_id, name, reason, occurred_at
		FROM failures
		ORDER BY occurred_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = j.db.Query(query+" LIMIT $1", limit)
	} else {
		rows, err = j.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []types.FailureRecord
	for rows.Next() {
		var (
			rec    types.FailureRecord
			taskID int64
			reason string
		)
		if err := rows.Scan(&taskID, &rec.Name, &reason, &rec.Time); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		rec.TaskID = types.TaskID(taskID)
		rec.Reason = types.FailureReason(reason)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failures: %w", err)
	}

	return records, nil
}
