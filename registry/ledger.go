package registry

import (
	"context"
	"fmt"
	"os/user"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgx behavior the ledger needs. *pgxpool.Pool,
// *pgx.Conn and pgx.Tx all satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Record is one ledger row of schema_migrations.
type Record struct {
	ID            int
	Version       string
	Name          string
	ExecutedAt    time.Time
	ExecutionTime time.Duration
	ExecutedBy    string
	Status        string
	ErrorMessage  string
	Checksum      string
}

// ActivityLog is one migration_logs row.
type ActivityLog struct {
	ID        int
	Timestamp time.Time
	Level     string
	Message   string
	User      string
	Details   string
	Version   string
}

// EnsureLedger creates the applied-migrations ledger and the activity log
// table when missing.
func EnsureLedger(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id SERIAL PRIMARY KEY,
		version TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT now(),
		execution_time INTERVAL,
		executed_by TEXT,
		status TEXT DEFAULT 'success',
		error_message TEXT,
		checksum TEXT
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %v", err)
	}

	_, err = db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS migration_logs (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP DEFAULT now(),
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		user_name TEXT,
		details TEXT,
		version TEXT
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration_logs table: %v", err)
	}

	return nil
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

// LogActivity appends a durable activity entry; failures to log never fail
// the migration itself.
func LogActivity(ctx context.Context, db DB, level, message, version, details string) {
	_, _ = db.Exec(ctx, `
		INSERT INTO migration_logs (level, message, user_name, version, details)
		VALUES ($1, $2, $3, $4, $5)
	`, level, message, currentUser(), version, details)
}

// AppliedVersions returns the set of successfully applied unit versions.
func AppliedVersions(ctx context.Context, db DB) (map[string]bool, error) {
	rows, err := db.Query(ctx, `SELECT version FROM schema_migrations WHERE status = 'success';`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %v", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %v", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// FailedRecords returns ledger rows left in failed state by earlier runs.
func FailedRecords(ctx context.Context, db DB) ([]Record, error) {
	rows, err := db.Query(ctx, `SELECT version, name, error_message FROM schema_migrations WHERE status = 'failed';`)
	if err != nil {
		return nil, fmt.Errorf("query failed migrations: %v", err)
	}
	defer rows.Close()

	var failed []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Version, &r.Name, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan failed migration: %v", err)
		}
		failed = append(failed, r)
	}
	return failed, rows.Err()
}

// RecordOutcome upserts the ledger row for a unit. A re-run of a previously
// failed unit overwrites the failed row on success.
func RecordOutcome(ctx context.Context, db DB, u Unit, execTime time.Duration, status, errorMessage string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, execution_time, executed_by, status, error_message, checksum)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		ON CONFLICT (version) DO UPDATE SET
			name = EXCLUDED.name,
			applied_at = now(),
			execution_time = EXCLUDED.execution_time,
			executed_by = EXCLUDED.executed_by,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			checksum = EXCLUDED.checksum
	`, u.Version, u.Name, execTime, currentUser(), status, errorMessage, u.Checksum())
	if err != nil {
		return fmt.Errorf("recording migration %s: %v", u.Version, err)
	}
	return nil
}

// History returns ledger rows, newest first.
func History(ctx context.Context, db DB, limit int) ([]Record, error) {
	query := `
		SELECT id, version, name, applied_at, execution_time, executed_by,
		       status, COALESCE(error_message, ''), COALESCE(checksum, '')
		FROM schema_migrations
		ORDER BY applied_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query migration history: %v", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var execTime *time.Duration
		if err := rows.Scan(&r.ID, &r.Version, &r.Name, &r.ExecutedAt, &execTime,
			&r.ExecutedBy, &r.Status, &r.ErrorMessage, &r.Checksum); err != nil {
			return nil, fmt.Errorf("scan migration record: %v", err)
		}
		if execTime != nil {
			r.ExecutionTime = *execTime
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Logs returns activity entries, newest first.
func Logs(ctx context.Context, db DB, limit int) ([]ActivityLog, error) {
	query := `
		SELECT id, timestamp, level, message, COALESCE(user_name, ''),
		       COALESCE(details, ''), COALESCE(version, '')
		FROM migration_logs
		ORDER BY timestamp DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query migration logs: %v", err)
	}
	defer rows.Close()

	var logs []ActivityLog
	for rows.Next() {
		var l ActivityLog
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.User, &l.Details, &l.Version); err != nil {
			return nil, fmt.Errorf("scan migration log: %v", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
