package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"dmcore/internal/store"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the messaging schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Conversations: one document per participant pair
		`CREATE TABLE IF NOT EXISTS conversations (
			id                  TEXT        PRIMARY KEY,
			pair_key            TEXT        NOT NULL UNIQUE,
			participant_a       TEXT        NOT NULL,
			participant_b       TEXT        NOT NULL,
			participant_details TEXT        NOT NULL DEFAULT '{}',
			last_message        TEXT,
			last_message_ts     BIGINT      NOT NULL DEFAULT 0,
			unread_by           TEXT        NOT NULL DEFAULT '[]',
			hidden_for          TEXT        NOT NULL DEFAULT '[]',
			created_at          BIGINT      NOT NULL
		)`,

		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT     PRIMARY KEY,
			conversation_id TEXT     NOT NULL REFERENCES conversations(id),
			sender_id       TEXT     NOT NULL,
			sender_name     TEXT     NOT NULL DEFAULT '',
			text            TEXT     NOT NULL DEFAULT '',
			ts              BIGINT   NOT NULL,
			is_deleted      BOOLEAN  NOT NULL DEFAULT FALSE,
			reply_to        TEXT,
			reactions       TEXT     NOT NULL DEFAULT '{}'
		)`,

		// Profile snapshots (external collaborator data)
		`CREATE TABLE IF NOT EXISTS profiles (
			id           TEXT     PRIMARY KEY,
			display_name TEXT     NOT NULL DEFAULT '',
			picture_url  TEXT     NOT NULL DEFAULT '',
			is_online    BOOLEAN  NOT NULL DEFAULT FALSE,
			last_seen    BIGINT   NOT NULL DEFAULT 0
		)`,

		// Directed block relation (external collaborator data)
		`CREATE TABLE IF NOT EXISTS blocks (
			blocker_id TEXT   NOT NULL,
			blocked_id TEXT   NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (blocker_id, blocked_id)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_conversations_a ON conversations(participant_a, last_message_ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_b ON conversations(participant_b, last_message_ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_ts ON messages(conversation_id, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_blocked ON blocks(blocked_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

// NewStore builds the conversation store for a PostgreSQL handle.
func NewStore(db *sql.DB, codec store.Codec) *store.Store {
	return store.New(db, store.Postgres, codec)
}

func NewProfileRepo(db *sql.DB) *store.ProfileRepo {
	return store.NewProfileRepo(db, store.Postgres)
}

func NewBlockRepo(db *sql.DB) *store.BlockRepo {
	return store.NewBlockRepo(db, store.Postgres)
}
