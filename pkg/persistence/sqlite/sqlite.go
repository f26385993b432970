// Package sqlite provides embedded SQLite persistence for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nova-hud/nova/pkg/persistence/sqlbase"
)

const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Persistence implements the persistence layer for SQLite.
type Persistence struct {
	*sqlbase.Store
}

// NewPersistence opens the database file named by databaseURL (sqlite://path
// or a bare path) and brings the schema up to date.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	database, err := sql.Open("sqlite", path+separator+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite serialises writers; a single connection avoids SQLITE_BUSY under load.
	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{Store: sqlbase.NewStore(database, logger)}, nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE missions (
				id TEXT PRIMARY KEY,
				label TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT 1,
				document TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX idx_missions_enabled ON missions(enabled);

			CREATE TABLE runs (
				id TEXT PRIMARY KEY,
				mission_id TEXT NOT NULL,
				run_key TEXT NOT NULL,
				status TEXT NOT NULL,
				attempt INTEGER NOT NULL DEFAULT 1,
				started_at TIMESTAMP NOT NULL,
				document TEXT NOT NULL
			);

			CREATE INDEX idx_runs_mission_started ON runs(mission_id, started_at DESC);
			CREATE INDEX idx_runs_run_key ON runs(run_key);
		`,
	}
}
