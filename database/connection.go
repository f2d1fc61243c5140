package database

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/callact/kbmigrate/utils"
)

// advisoryLockKey identifies this tool's migration lock. Every kbmigrate
// process against the same database contends on the same key.
const advisoryLockKey int64 = 0x6b626d6967 // "kbmig"

var (
	pool     *pgxpool.Pool
	poolOnce sync.Once
	poolErr  error
)

// GetPool returns a singleton connection pool for the application
func GetPool() (*pgxpool.Pool, error) {
	poolOnce.Do(func() {
		utils.LoadEnv()
		connStr := os.Getenv("DATABASE_URL")
		if connStr == "" {
			poolErr = fmt.Errorf("DATABASE_URL not set in environment")
			return
		}

		ctx := context.Background()
		pool, poolErr = pgxpool.New(ctx, connStr)
		if poolErr != nil {
			poolErr = fmt.Errorf("unable to create connection pool: %v", poolErr)
			return
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			poolErr = fmt.Errorf("unable to ping database: %v", err)
			return
		}
	})

	return pool, poolErr
}

// AcquireMigrationLock takes the session-level advisory lock that guards the
// whole migration run. The returned connection must stay open until
// ReleaseMigrationLock; the lock is tied to its session.
func AcquireMigrationLock(ctx context.Context) (*pgxpool.Conn, error) {
	p, err := GetPool()
	if err != nil {
		return nil, err
	}

	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to acquire connection: %v", err)
	}

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1);`, advisoryLockKey); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire migration advisory lock: %v", err)
	}

	return conn, nil
}

// ReleaseMigrationLock unlocks the advisory lock and returns the connection
// to the pool.
func ReleaseMigrationLock(ctx context.Context, conn *pgxpool.Conn) {
	if conn == nil {
		return
	}
	_, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock($1);`, advisoryLockKey)
	conn.Release()
}

// ClosePool closes the connection pool (should be called on application shutdown)
func ClosePool() {
	if pool != nil {
		pool.Close()
	}
}
