// Package sqlite persists bar history and the signal journal in a local
// SQLite database opened in WAL mode.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"hama-scanner/internal/logger"
)

// Store owns the database handle shared by BarStore and Journal.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; readers share the same connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	l := logger.Component("sqlite")
	l.Info().Str("path", path).Msg("opened database")
	return &Store{db: db, log: l}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL,
			PRIMARY KEY (symbol, timeframe, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id           TEXT    PRIMARY KEY,
			symbol       TEXT    NOT NULL,
			market_type  TEXT    NOT NULL,
			direction    TEXT    NOT NULL,
			price        REAL    NOT NULL,
			candle_close REAL    NOT NULL,
			ma_value     REAL    NOT NULL,
			bar_ts       INTEGER NOT NULL,
			description  TEXT,
			created_at   INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON signals (symbol, bar_ts);
	`)
	return err
}
