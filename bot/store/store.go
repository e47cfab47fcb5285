// Package store persists webhook mappings, webhook secrets, and user OAuth
// tokens in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database shared by all bot features.
type Store struct {
	db *sql.DB
}

// NewStore opens (and creates if needed) the database under dataDir and
// ensures required tables exist.
func NewStore(ctx context.Context, dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "asanabot.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS webhook_mappings (
			resource_id  TEXT PRIMARY KEY,
			webhook_id   TEXT NOT NULL,
			room_id      TEXT NOT NULL,
			created_by   TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL,
			auto_created INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mappings_webhook_id ON webhook_mappings (webhook_id);`,
		`CREATE TABLE IF NOT EXISTS webhook_secrets (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			webhook_id TEXT NOT NULL DEFAULT '',
			secret     TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_secrets_webhook_id ON webhook_secrets (webhook_id);`,
		`CREATE TABLE IF NOT EXISTS user_tokens (
			user_id       TEXT PRIMARY KEY,
			access_token  TEXT NOT NULL,
			token_type    TEXT NOT NULL DEFAULT 'bearer',
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at    DATETIME,
			updated_at    DATETIME NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
