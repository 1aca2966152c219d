package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dmcore/internal/domain"
)

// view runs queries against the pool or, inside WithTx, against a
// transaction with row locks.
type view struct {
	s    *Store
	q    queryer
	lock string
}

var _ domain.ConversationTx = (*view)(nil)

const conversationColumns = `id, participant_a, participant_b, participant_details, last_message,
	last_message_ts, unread_by, hidden_for, created_at`

const messageColumns = `id, conversation_id, sender_id, sender_name, text, ts, is_deleted, reply_to, reactions`

type scanner interface {
	Scan(dest ...any) error
}

func (v *view) rebind(q string) string {
	return v.s.dialect.Rebind(q)
}

func (v *view) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := v.q.QueryRowContext(ctx, v.rebind(`
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = ?`+v.lock), id)
	c, err := v.scanConversation(row)
	if err != nil {
		return nil, notFoundOr("get conversation", err)
	}
	return c, nil
}

func (v *view) FindConversationByPair(ctx context.Context, a, b string) (*domain.Conversation, error) {
	row := v.q.QueryRowContext(ctx, v.rebind(`
		SELECT `+conversationColumns+`
		FROM conversations WHERE pair_key = ?`+v.lock), domain.PairKey(a, b))
	c, err := v.scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, transient("find conversation by pair", err)
	}
	return c, nil
}

func (v *view) InsertConversation(ctx context.Context, c *domain.Conversation) error {
	details, unread, hidden, last, err := v.encodeConversation(c)
	if err != nil {
		return err
	}
	res, err := v.q.ExecContext(ctx, v.rebind(`
		INSERT INTO conversations
			(id, pair_key, participant_a, participant_b, participant_details, last_message,
			 last_message_ts, unread_by, hidden_for, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pair_key) DO NOTHING
	`), c.ID, domain.PairKey(c.Participants[0], c.Participants[1]),
		c.Participants[0], c.Participants[1], details, last,
		toMicros(c.LastMessageAt), unread, hidden, toMicros(c.CreatedAt),
	)
	if err != nil {
		return transient("insert conversation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transient("insert conversation", err)
	}
	if n == 0 {
		return fmt.Errorf("insert conversation: %w", domain.ErrConflict)
	}
	return nil
}

func (v *view) UpdateConversation(ctx context.Context, c *domain.Conversation) error {
	details, unread, hidden, last, err := v.encodeConversation(c)
	if err != nil {
		return err
	}
	res, err := v.q.ExecContext(ctx, v.rebind(`
		UPDATE conversations
		SET participant_details = ?, last_message = ?, last_message_ts = ?, unread_by = ?, hidden_for = ?
		WHERE id = ?
	`), details, last, toMicros(c.LastMessageAt), unread, hidden, c.ID)
	if err != nil {
		return transient("update conversation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transient("update conversation", err)
	}
	if n == 0 {
		return fmt.Errorf("update conversation: %w", domain.ErrNotFound)
	}
	return nil
}

func (v *view) GetMessage(ctx context.Context, conversationID, messageID string) (*domain.Message, error) {
	row := v.q.QueryRowContext(ctx, v.rebind(`
		SELECT `+messageColumns+`
		FROM messages WHERE id = ? AND conversation_id = ?`+v.lock), messageID, conversationID)
	m, err := v.scanMessage(row)
	if err != nil {
		return nil, notFoundOr("get message", err)
	}
	return m, nil
}

func (v *view) LatestVisibleMessage(ctx context.Context, conversationID string) (*domain.Message, error) {
	row := v.q.QueryRowContext(ctx, v.rebind(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND is_deleted = ?
		ORDER BY ts DESC
		LIMIT 1
	`), conversationID, false)
	m, err := v.scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, transient("latest visible message", err)
	}
	return m, nil
}

func (v *view) InsertMessage(ctx context.Context, m *domain.Message) error {
	text, err := v.s.seal(m.Text)
	if err != nil {
		return fmt.Errorf("seal message text: %w", err)
	}
	var replyTo sql.NullString
	if m.ReplyTo != nil {
		if replyTo, err = v.s.sealJSON(m.ReplyTo); err != nil {
			return fmt.Errorf("seal reply snapshot: %w", err)
		}
	}
	reactions, err := encodeJSON(nonNilReactions(m.Reactions))
	if err != nil {
		return err
	}
	if _, err := v.q.ExecContext(ctx, v.rebind(`
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), m.ID, m.ConversationID, m.SenderID, m.SenderName, text,
		toMicros(m.Timestamp), m.IsDeleted, replyTo, reactions,
	); err != nil {
		return transient("insert message", err)
	}
	return nil
}

// UpdateMessage writes the mutable fields of a message: text, deletion flag
// and reactions. Position and reply snapshot never change.
func (v *view) UpdateMessage(ctx context.Context, m *domain.Message) error {
	text, err := v.s.seal(m.Text)
	if err != nil {
		return fmt.Errorf("seal message text: %w", err)
	}
	reactions, err := encodeJSON(nonNilReactions(m.Reactions))
	if err != nil {
		return err
	}
	res, err := v.q.ExecContext(ctx, v.rebind(`
		UPDATE messages SET text = ?, is_deleted = ?, reactions = ?
		WHERE id = ? AND conversation_id = ?
	`), text, m.IsDeleted, reactions, m.ID, m.ConversationID)
	if err != nil {
		return transient("update message", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transient("update message", err)
	}
	if n == 0 {
		return fmt.Errorf("update message: %w", domain.ErrNotFound)
	}
	return nil
}

func (v *view) listConversationsForUser(ctx context.Context, uid string) ([]*domain.Conversation, error) {
	rs, err := v.q.QueryContext(ctx, v.rebind(`
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE (participant_a = ? OR participant_b = ?) AND last_message_ts > 0
		ORDER BY last_message_ts DESC
	`), uid, uid)
	if err != nil {
		return nil, transient("list conversations", err)
	}
	defer rs.Close()

	var res []*domain.Conversation
	for rs.Next() {
		c, err := v.scanConversation(rs)
		if err != nil {
			return nil, transient("scan conversation", err)
		}
		res = append(res, c)
	}
	if err := rs.Err(); err != nil {
		return nil, transient("list conversations", err)
	}
	return res, nil
}

func (v *view) listMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	rs, err := v.q.QueryContext(ctx, v.rebind(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY ts DESC
		LIMIT ?
	`), conversationID, limit)
	if err != nil {
		return nil, transient("list messages", err)
	}
	defer rs.Close()

	var msgs []*domain.Message
	for rs.Next() {
		m, err := v.scanMessage(rs)
		if err != nil {
			return nil, transient("scan message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rs.Err(); err != nil {
		return nil, transient("list messages", err)
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (v *view) encodeConversation(c *domain.Conversation) (details, unread, hidden string, last sql.NullString, err error) {
	d := c.ParticipantDetails
	if d == nil {
		d = map[string]domain.ParticipantDetail{}
	}
	if details, err = encodeJSON(d); err != nil {
		return
	}
	if unread, err = encodeJSON(c.UnreadBy.Clone()); err != nil {
		return
	}
	if hidden, err = encodeJSON(c.HiddenFor.Clone()); err != nil {
		return
	}
	if c.LastMessage != nil {
		if last, err = v.s.sealJSON(c.LastMessage); err != nil {
			err = fmt.Errorf("seal last message: %w", err)
		}
	}
	return
}

func (v *view) scanConversation(row scanner) (*domain.Conversation, error) {
	var (
		c                       domain.Conversation
		details, unread, hidden string
		last                    sql.NullString
		lastTS, createdAt       int64
	)
	if err := row.Scan(
		&c.ID,
		&c.Participants[0],
		&c.Participants[1],
		&details,
		&last,
		&lastTS,
		&unread,
		&hidden,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON(details, &c.ParticipantDetails); err != nil {
		return nil, fmt.Errorf("decode participant details: %w", err)
	}
	if err := decodeJSON(unread, &c.UnreadBy); err != nil {
		return nil, fmt.Errorf("decode unread_by: %w", err)
	}
	if err := decodeJSON(hidden, &c.HiddenFor); err != nil {
		return nil, fmt.Errorf("decode hidden_for: %w", err)
	}
	if last.Valid {
		lm := &domain.LastMessage{}
		if err := v.s.openJSON(last, lm); err != nil {
			return nil, fmt.Errorf("decode last message: %w", err)
		}
		c.LastMessage = lm
	}
	if c.ParticipantDetails == nil {
		c.ParticipantDetails = map[string]domain.ParticipantDetail{}
	}
	if c.UnreadBy == nil {
		c.UnreadBy = domain.UserSet{}
	}
	if c.HiddenFor == nil {
		c.HiddenFor = domain.UserSet{}
	}
	c.LastMessageAt = fromMicros(lastTS)
	c.CreatedAt = fromMicros(createdAt)
	return &c, nil
}

func (v *view) scanMessage(row scanner) (*domain.Message, error) {
	var (
		m         domain.Message
		text      string
		ts        int64
		replyTo   sql.NullString
		reactions string
	)
	if err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.SenderName,
		&text,
		&ts,
		&m.IsDeleted,
		&replyTo,
		&reactions,
	); err != nil {
		return nil, err
	}
	m.Text = v.s.open(text)
	m.Timestamp = fromMicros(ts)
	if replyTo.Valid {
		r := &domain.ReplySnapshot{}
		if err := v.s.openJSON(replyTo, r); err != nil {
			return nil, fmt.Errorf("decode reply snapshot: %w", err)
		}
		m.ReplyTo = r
	}
	if err := decodeJSON(reactions, &m.Reactions); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	m.Reactions = nonNilReactions(m.Reactions)
	return &m, nil
}

func decodeJSON(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func nonNilReactions(r domain.Reactions) domain.Reactions {
	if r == nil {
		return domain.Reactions{}
	}
	return r
}
