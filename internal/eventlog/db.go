// Package eventlog is the relational persistence layer: matches, their
// append-only event logs, and judging records, backed by SQLite via bun and
// modernc.org/sqlite so arenad needs no cgo and no external database.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"

	"github.com/wbarena/arena/internal/logger"
)

// Config configures the SQLite-backed event log database.
type Config struct {
	Path  string // file path, or ":memory:" for ephemeral/test use
	Debug bool
}

// NewDB opens (creating if necessary) the SQLite database at cfg.Path and
// registers the event log's models with bun.
func NewDB(cfg Config) (*bun.DB, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = "arena.db"
	}
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog: failed to open sqlite db: %w", err)
	}
	sqldb.SetMaxOpenConns(1) // sqlite is single-writer; serialize through one connection

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("eventlog: failed to ping sqlite db: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("eventlog: migration failed: %w", err)
	}

	logger.Info("eventlog database ready", "path", dsn)
	return db, nil
}

func migrate(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*MatchModel)(nil),
		(*EventModel)(nil),
		(*JudgingScoreModel)(nil),
		(*BlindMappingModel)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
