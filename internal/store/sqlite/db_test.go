package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmcore/internal/domain"
	"dmcore/internal/security"
	"dmcore/internal/store"
	"dmcore/internal/store/sqlite"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	return db
}

func newConversation(id, a, b string) *domain.Conversation {
	return &domain.Conversation{
		ID:           id,
		Participants: [2]string{a, b},
		ParticipantDetails: map[string]domain.ParticipantDetail{
			a: {Name: a},
			b: {Name: b},
		},
		UnreadBy:  domain.UserSet{},
		HiddenFor: domain.UserSet{},
		CreatedAt: t0,
	}
}

func newMessage(id, conv, sender string, at time.Duration) *domain.Message {
	return &domain.Message{
		ID:             id,
		ConversationID: conv,
		SenderID:       sender,
		SenderName:     sender,
		Text:           "text " + id,
		Timestamp:      t0.Add(at),
		Reactions:      domain.Reactions{},
	}
}

// seed stores one conversation between alice and bob holding msgs.
func seed(t *testing.T, s *store.Store, msgs ...*domain.Message) *domain.Conversation {
	t.Helper()
	conv := newConversation("c1", "alice", "bob")
	err := s.WithTx(context.Background(), func(tx domain.ConversationTx) error {
		for _, m := range msgs {
			conv.LastMessage = &domain.LastMessage{MessageID: m.ID, Text: m.Text, SenderID: m.SenderID, At: m.Timestamp}
			conv.LastMessageAt = m.Timestamp
		}
		conv.UnreadBy.Add("bob")
		if err := tx.InsertConversation(context.Background(), conv); err != nil {
			return err
		}
		for _, m := range msgs {
			if err := tx.InsertMessage(context.Background(), m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return conv
}

func TestConversationRoundTrip(t *testing.T) {
	s := sqlite.NewStore(openDB(t), nil)
	ctx := context.Background()
	seed(t, s, newMessage("m1", "c1", "alice", time.Second))

	got, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"alice", "bob"}, got.Participants)
	assert.Equal(t, domain.UserSet{"bob"}, got.UnreadBy)
	assert.Empty(t, got.HiddenFor)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "m1", got.LastMessage.MessageID)
	assert.True(t, got.LastMessageAt.Equal(t0.Add(time.Second)))
	assert.Equal(t, "bob", got.ParticipantDetails["bob"].Name)

	byPair, err := s.FindConversationByPair(ctx, "bob", "alice")
	require.NoError(t, err)
	require.NotNil(t, byPair)
	assert.Equal(t, "c1", byPair.ID)

	none, err := s.FindConversationByPair(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInsertConversationConflictsOnPair(t *testing.T) {
	s := sqlite.NewStore(openDB(t), nil)
	seed(t, s)

	err := s.WithTx(context.Background(), func(tx domain.ConversationTx) error {
		return tx.InsertConversation(context.Background(), newConversation("c2", "bob", "alice"))
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestListConversationsSkipsEmpty(t *testing.T) {
	s := sqlite.NewStore(openDB(t), nil)
	ctx := context.Background()
	seed(t, s, newMessage("m1", "c1", "alice", time.Second))

	err := s.WithTx(ctx, func(tx domain.ConversationTx) error {
		return tx.InsertConversation(ctx, newConversation("c2", "alice", "carol"))
	})
	require.NoError(t, err)

	convs, err := s.ListConversationsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)

	convs, err = s.ListConversationsForUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestListMessagesNewestPageOldestFirst(t *testing.T) {
	s := sqlite.NewStore(openDB(t), nil)
	ctx := context.Background()
	seed(t, s,
		newMessage("m1", "c1", "alice", 1*time.Second),
		newMessage("m2", "c1", "bob", 2*time.Second),
		newMessage("m3", "c1", "alice", 3*time.Second),
	)

	msgs, err := s.ListMessages(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Equal(t, "m3", msgs[1].ID)
	assert.NotNil(t, msgs[0].Reactions)
}

func TestUpdateMessageAndLatestVisible(t *testing.T) {
	s := sqlite.NewStore(openDB(t), nil)
	ctx := context.Background()
	m1 := newMessage("m1", "c1", "alice", 1*time.Second)
	m2 := newMessage("m2", "c1", "bob", 2*time.Second)
	m2.ReplyTo = m1.Snapshot()
	seed(t, s, m1, m2)

	err := s.WithTx(ctx, func(tx domain.ConversationTx) error {
		m, err := tx.GetMessage(ctx, "c1", "m2")
		if err != nil {
			return err
		}
		m.IsDeleted, m.Text, m.Reactions = true, "", domain.Reactions{}
		if err := tx.UpdateMessage(ctx, m); err != nil {
			return err
		}
		latest, err := tx.LatestVisibleMessage(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "m1", latest.ID)
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetMessage(ctx, "c1", "m2")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Empty(t, got.Text)
	require.NotNil(t, got.ReplyTo, "the reply snapshot survives deletion")
	assert.Equal(t, "m1", got.ReplyTo.ID)

	err = s.WithTx(ctx, func(tx domain.ConversationTx) error {
		return tx.UpdateMessage(ctx, newMessage("ghost", "c1", "alice", 0))
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReactionsPersist(t *testing.T) {
	s := sqlite.NewStore(openDB(t), nil)
	ctx := context.Background()
	seed(t, s, newMessage("m1", "c1", "alice", time.Second))

	err := s.WithTx(ctx, func(tx domain.ConversationTx) error {
		m, err := tx.GetMessage(ctx, "c1", "m1")
		if err != nil {
			return err
		}
		m.Reactions.Toggle("👍", "bob")
		m.Reactions.Toggle("👍", "alice")
		return tx.UpdateMessage(ctx, m)
	})
	require.NoError(t, err)

	got, err := s.GetMessage(ctx, "c1", "m1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "alice"}, got.Reactions["👍"])
}

func TestTextIsSealedAtRest(t *testing.T) {
	db := openDB(t)
	enc, err := security.NewEncryptor([]byte("at-rest"))
	require.NoError(t, err)
	s := sqlite.NewStore(db, enc)
	ctx := context.Background()
	seed(t, s, newMessage("m1", "c1", "alice", time.Second))

	var raw string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT text FROM messages WHERE id = ?`, "m1").Scan(&raw))
	assert.NotEqual(t, "text m1", raw)

	got, err := s.GetMessage(ctx, "c1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "text m1", got.Text)

	conv, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "text m1", conv.LastMessage.Text)
}

func TestBlocksAreSymmetric(t *testing.T) {
	blocks := sqlite.NewBlockRepo(openDB(t))
	ctx := context.Background()

	require.NoError(t, blocks.Block(ctx, "alice", "bob"))
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		blocked, err := blocks.IsBlocked(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked, "%s -> %s", pair[0], pair[1])
	}

	require.NoError(t, blocks.Unblock(ctx, "alice", "bob"))
	blocked, err := blocks.IsBlocked(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestProfileOnlineStatus(t *testing.T) {
	profiles := sqlite.NewProfileRepo(openDB(t))
	ctx := context.Background()

	_, err := profiles.GetProfile(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, profiles.Upsert(ctx, &domain.Profile{ID: "alice", DisplayName: "Alice"}))
	require.NoError(t, profiles.SetOnlineStatus(ctx, "alice", true, t0))

	p, err := profiles.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, p.Online)
	assert.True(t, p.LastSeen.Equal(t0))

	require.NoError(t, profiles.Upsert(ctx, &domain.Profile{ID: "alice", DisplayName: "Alicia"}))
	p, err = profiles.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", p.DisplayName)
	assert.True(t, p.Online, "upsert leaves presence alone")
}
