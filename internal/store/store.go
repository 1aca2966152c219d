// Package store implements the conversation document store on top of
// database/sql. The sqlite and postgres packages provide the driver, the
// schema and the dialect.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dmcore/internal/domain"
)

// Codec seals text columns at rest. A nil Codec stores plaintext.
type Codec interface {
	Encrypt(plain string) (string, error)
	Decrypt(enc string) (string, error)
}

// Dialect captures the SQL differences between the supported engines.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
	// LockSuffix is appended to SELECTs issued inside a transaction.
	LockSuffix string
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", Numbered: true, LockSuffix: " FOR UPDATE"}
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQL-backed conversation repository.
type Store struct {
	db      *sql.DB
	dialect Dialect
	codec   Codec
}

var _ domain.ConversationRepository = (*Store)(nil)

func New(db *sql.DB, dialect Dialect, codec Codec) *Store {
	return &Store{db: db, dialect: dialect, codec: codec}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) reader() *view {
	return &view{s: s, q: s.db}
}

// WithTx runs fn inside a database transaction. Errors returned by fn roll
// the transaction back and are returned unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.ConversationTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(&view{s: s, q: tx, lock: s.dialect.LockSuffix}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return transient("commit", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	return s.reader().GetConversation(ctx, id)
}

func (s *Store) FindConversationByPair(ctx context.Context, a, b string) (*domain.Conversation, error) {
	return s.reader().FindConversationByPair(ctx, a, b)
}

func (s *Store) ListConversationsForUser(ctx context.Context, uid string) ([]*domain.Conversation, error) {
	return s.reader().listConversationsForUser(ctx, uid)
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	return s.reader().listMessages(ctx, conversationID, limit)
}

func (s *Store) GetMessage(ctx context.Context, conversationID, messageID string) (*domain.Message, error) {
	return s.reader().GetMessage(ctx, conversationID, messageID)
}

func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransient, err)
}

func (s *Store) seal(plain string) (string, error) {
	if s.codec == nil || plain == "" {
		return plain, nil
	}
	return s.codec.Encrypt(plain)
}

// open falls back to the raw value so rows written before encryption was
// enabled stay readable.
func (s *Store) open(enc string) string {
	if s.codec == nil || enc == "" {
		return enc
	}
	plain, err := s.codec.Decrypt(enc)
	if err != nil {
		return enc
	}
	return plain
}

func (s *Store) sealJSON(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	enc, err := s.seal(string(b))
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: enc, Valid: true}, nil
}

func (s *Store) openJSON(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.open(col.String)), v)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return transient(op, err)
}
