package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"dmcore/internal/store"
)

// Open opens a SQLite database with the given DSN. The pool is limited to one
// connection: SQLite allows a single writer, and ":memory:" databases are
// per connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL for the messaging schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// One row per conversation; sets and maps are JSON documents
		`CREATE TABLE IF NOT EXISTS conversations (
			id                  TEXT PRIMARY KEY,
			pair_key            TEXT NOT NULL UNIQUE,
			participant_a       TEXT NOT NULL,
			participant_b       TEXT NOT NULL,
			participant_details TEXT NOT NULL DEFAULT '{}',
			last_message        TEXT DEFAULT NULL,
			last_message_ts     INTEGER NOT NULL DEFAULT 0,
			unread_by           TEXT NOT NULL DEFAULT '[]',
			hidden_for          TEXT NOT NULL DEFAULT '[]',
			created_at          INTEGER NOT NULL
		);`,
		// Append-only message log
		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id       TEXT NOT NULL,
			sender_name     TEXT NOT NULL DEFAULT '',
			text            TEXT NOT NULL DEFAULT '',
			ts              INTEGER NOT NULL,
			is_deleted      BOOLEAN NOT NULL DEFAULT 0,
			reply_to        TEXT DEFAULT NULL,
			reactions       TEXT NOT NULL DEFAULT '{}',
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id           TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			picture_url  TEXT NOT NULL DEFAULT '',
			is_online    BOOLEAN NOT NULL DEFAULT 0,
			last_seen    INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			blocker_id TEXT NOT NULL,
			blocked_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (blocker_id, blocked_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_a ON conversations(participant_a, last_message_ts DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_b ON conversations(participant_b, last_message_ts DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_ts ON messages(conversation_id, ts DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_blocked ON blocks(blocked_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

// NewStore builds the conversation store for a SQLite handle.
func NewStore(db *sql.DB, codec store.Codec) *store.Store {
	return store.New(db, store.SQLite, codec)
}

func NewProfileRepo(db *sql.DB) *store.ProfileRepo {
	return store.NewProfileRepo(db, store.SQLite)
}

func NewBlockRepo(db *sql.DB) *store.BlockRepo {
	return store.NewBlockRepo(db, store.SQLite)
}
