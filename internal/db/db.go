// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

//go:embed seed.sql
var seedSQL string

var DB *sql.DB

// Init opens the shared connection pool without pinging it. Callers check
// reachability with WaitForDB so they can serve before the database answers.
func Init(dsn string) error {
	conn, err := Open(dsn)
	if err != nil {
		return err
	}
	DB = conn
	return nil
}

// Open returns a configured pool without touching the network.
func Open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)
	return conn, nil
}

// WaitForDB pings conn every delay until it answers or ctx ends.
// A database outage never stops the health endpoint of either process.
func WaitForDB(ctx context.Context, conn *sql.DB, delay time.Duration, log *zap.Logger) error {
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			log.Info("✅ Connected to database")
			return nil
		}
		log.Warn("⚠️ database not reachable, retrying", zap.Error(err), zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Seed inserts the reference candidates, endorsers, endorsements and
// categorized feeds. Rows that already exist by name, pair or URL are skipped.
func Seed(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, seedSQL); err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}
	return nil
}
