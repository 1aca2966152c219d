package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dmcore/internal/domain"
	"dmcore/internal/logging"
	"dmcore/internal/service"
)

func TestSendCreatesConversation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "  hi  ")
	assert.True(t, res.Created)

	conv := e.conversation(t, res.ConversationID)
	assert.Equal(t, [2]string{"alice", "bob"}, conv.Participants)
	assert.Equal(t, domain.UserSet{"bob"}, conv.UnreadBy)
	assert.Empty(t, conv.HiddenFor)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "hi", conv.LastMessage.Text)
	assert.Equal(t, res.MessageID, conv.LastMessage.MessageID)
	assert.True(t, conv.LastMessageAt.Equal(res.Timestamp))
	assert.Equal(t, "Alice", conv.ParticipantDetails["alice"].Name)
	assert.Equal(t, "a.png", conv.ParticipantDetails["alice"].PictureURL)

	msg := e.message(t, res.ConversationID, res.MessageID)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "Alice", msg.SenderName)
	assert.Empty(t, msg.Reactions)

	// the reverse direction reuses the pair's conversation
	again, err := e.gw.Send(ctx, "bob", service.SendInput{RecipientID: "alice", Text: "hey"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.ConversationID, again.ConversationID)
}

func TestSendUnreadSymmetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "one")
	_, err := e.gw.Send(ctx, "bob", service.SendInput{ConversationID: res.ConversationID, Text: "two"})
	require.NoError(t, err)

	conv := e.conversation(t, res.ConversationID)
	assert.Equal(t, domain.UserSet{"alice"}, conv.UnreadBy, "sender never marks itself unread")

	_, err = e.gw.Send(ctx, "alice", service.SendInput{ConversationID: res.ConversationID, Text: "three"})
	require.NoError(t, err)
	conv = e.conversation(t, res.ConversationID)
	assert.Equal(t, domain.UserSet{"bob"}, conv.UnreadBy)
}

func TestSendClearsSenderReadAndHiddenState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "bob", "alice", "ping")
	require.NoError(t, e.gw.HideConversation(ctx, "alice", res.ConversationID))
	conv := e.conversation(t, res.ConversationID)
	require.True(t, conv.UnreadBy.Contains("alice"))
	require.True(t, conv.HiddenFor.Contains("alice"))

	// replying implies the sender has read the thread and wants it back
	_, err := e.gw.Send(ctx, "alice", service.SendInput{ConversationID: res.ConversationID, Text: "pong"})
	require.NoError(t, err)
	conv = e.conversation(t, res.ConversationID)
	assert.Equal(t, domain.UserSet{"bob"}, conv.UnreadBy)
	assert.Empty(t, conv.HiddenFor)
	assert.Equal(t, []string{res.ConversationID}, inboxIDs(t, e.dir, "alice"))
}

func TestSendValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := map[string]service.SendInput{
		"Empty":       {RecipientID: "bob", Text: ""},
		"Whitespace":  {RecipientID: "bob", Text: " \n\t "},
		"TooLong":     {RecipientID: "bob", Text: strings.Repeat("x", 21)},
		"Self":        {RecipientID: "alice", Text: "me"},
		"NoRecipient": {Text: "hello"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.gw.Send(ctx, "alice", in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := e.gw.Send(ctx, "alice", service.SendInput{RecipientID: "bob", Text: strings.Repeat("é", 20)})
	assert.NoError(t, err, "limit counts characters, not bytes")
}

func TestSendPermissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "hi")

	_, err := e.gw.Send(ctx, "mallory", service.SendInput{ConversationID: res.ConversationID, Text: "psst"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = e.gw.Send(ctx, "alice", service.SendInput{ConversationID: res.ConversationID, RecipientID: "carol", Text: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSendUnknownConversation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.gw.Send(ctx, "alice", service.SendInput{ConversationID: "missing", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	res, err := e.gw.Send(ctx, "alice", service.SendInput{ConversationID: "missing", RecipientID: "bob", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestBlockDeniesSendAndHidesConversation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "hi")
	require.NoError(t, e.blocks.Block(ctx, "alice", "bob"))

	_, err := e.gw.Send(ctx, "bob", service.SendInput{ConversationID: res.ConversationID, Text: "why"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = e.gw.Send(ctx, "alice", service.SendInput{RecipientID: "bob", Text: "bye"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied, "the blocker cannot send either")

	assert.Empty(t, inboxIDs(t, e.dir, "alice"))
	assert.Empty(t, inboxIDs(t, e.dir, "bob"))

	// the record itself is untouched
	conv := e.conversation(t, res.ConversationID)
	assert.Equal(t, "hi", conv.LastMessage.Text)

	require.NoError(t, e.blocks.Unblock(ctx, "alice", "bob"))
	assert.Equal(t, []string{res.ConversationID}, inboxIDs(t, e.dir, "alice"))
}

func TestSendBlockLookupFailureIsTransient(t *testing.T) {
	blocks := new(MockBlocks)
	blocks.On("IsBlocked", mock.Anything, "alice", "bob").Return(false, errors.New("connection refused"))
	e := newEnv(t, withBlocks(blocks))

	_, err := e.gw.Send(context.Background(), "alice", service.SendInput{RecipientID: "bob", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.True(t, domain.Retryable(err))
	e.notifier.AssertNotCalled(t, "MessageSent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "hi")

	require.NoError(t, e.gw.MarkRead(ctx, "bob", res.ConversationID))
	once := e.conversation(t, res.ConversationID)
	require.NoError(t, e.gw.MarkRead(ctx, "bob", res.ConversationID))
	twice := e.conversation(t, res.ConversationID)

	assert.Empty(t, once.UnreadBy)
	assert.Equal(t, once, twice)

	// marking read when nothing is unread is fine too
	require.NoError(t, e.gw.MarkRead(ctx, "alice", res.ConversationID))

	assert.ErrorIs(t, e.gw.MarkRead(ctx, "mallory", res.ConversationID), domain.ErrPermissionDenied)
	assert.ErrorIs(t, e.gw.MarkRead(ctx, "bob", "missing"), domain.ErrNotFound)
}

func TestReactToggleLaw(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "hi")
	_, err := e.gw.React(ctx, "bob", res.ConversationID, res.MessageID, "👍")
	require.NoError(t, err)
	before := e.message(t, res.ConversationID, res.MessageID).Reactions

	r, err := e.gw.React(ctx, "alice", res.ConversationID, res.MessageID, "❤️")
	require.NoError(t, err)
	assert.Equal(t, domain.UserSet{"alice"}, r["❤️"])

	r, err = e.gw.React(ctx, "alice", res.ConversationID, res.MessageID, "❤️")
	require.NoError(t, err)
	_, present := r["❤️"]
	assert.False(t, present, "empty emoji keys are removed")

	after := e.message(t, res.ConversationID, res.MessageID).Reactions
	assert.Equal(t, before, after)
}

func TestReactErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "hi")

	_, err := e.gw.React(ctx, "mallory", res.ConversationID, res.MessageID, "👍")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = e.gw.React(ctx, "bob", res.ConversationID, "missing", "👍")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.gw.React(ctx, "bob", res.ConversationID, res.MessageID, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = e.gw.React(ctx, "bob", res.ConversationID, res.MessageID, strings.Repeat("a", 33))
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, e.gw.DeleteMessage(ctx, "alice", res.ConversationID, res.MessageID))
	_, err = e.gw.React(ctx, "bob", res.ConversationID, res.MessageID, "👍")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentReactionsKeepEveryUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "hi")

	var wg sync.WaitGroup
	for _, uid := range []string{"alice", "bob"} {
		for _, emoji := range []string{"👍", "🔥", "😂"} {
			wg.Add(1)
			go func(uid, emoji string) {
				defer wg.Done()
				// an odd number of toggles leaves the user in the set
				for i := 0; i < 3; i++ {
					_, err := e.gw.React(ctx, uid, res.ConversationID, res.MessageID, emoji)
					assert.NoError(t, err)
				}
			}(uid, emoji)
		}
	}
	wg.Wait()

	got := e.message(t, res.ConversationID, res.MessageID).Reactions
	require.Len(t, got, 3)
	for _, emoji := range []string{"👍", "🔥", "😂"} {
		assert.ElementsMatch(t, []string{"alice", "bob"}, got[emoji], emoji)
	}
}

func TestDeletePreservesStructure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := e.send(t, "alice", "bob", "first")
	reply, err := e.gw.Send(ctx, "bob", service.SendInput{
		ConversationID: first.ConversationID,
		Text:           "re: first",
		ReplyToID:      first.MessageID,
	})
	require.NoError(t, err)
	_, err = e.gw.React(ctx, "bob", first.ConversationID, first.MessageID, "👍")
	require.NoError(t, err)

	before, err := e.store.ListMessages(ctx, first.ConversationID, 10)
	require.NoError(t, err)

	err = e.gw.DeleteMessage(ctx, "bob", first.ConversationID, first.MessageID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied, "only the author deletes")

	require.NoError(t, e.gw.DeleteMessage(ctx, "alice", first.ConversationID, first.MessageID))
	require.NoError(t, e.gw.DeleteMessage(ctx, "alice", first.ConversationID, first.MessageID), "second delete is acknowledged")

	after, err := e.store.ListMessages(ctx, first.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.True(t, before[i].Timestamp.Equal(after[i].Timestamp))
	}

	deleted := after[0]
	assert.True(t, deleted.IsDeleted)
	assert.Empty(t, deleted.Text)
	assert.Empty(t, deleted.Reactions)

	require.NotNil(t, after[1].ReplyTo)
	assert.Equal(t, reply.MessageID, after[1].ID)
	assert.Equal(t, "first", after[1].ReplyTo.Text, "reply keeps its snapshot")
	assert.Equal(t, "alice", after[1].ReplyTo.SenderID)
	assert.Equal(t, "Alice", after[1].ReplyTo.SenderName)

	_, err = e.gw.Send(ctx, "bob", service.SendInput{
		ConversationID: first.ConversationID,
		Text:           "re: deleted",
		ReplyToID:      first.MessageID,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteLastMessageRecomputesSummary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := e.send(t, "alice", "bob", "first")
	second := e.send(t, "alice", "bob", "second")
	lastAt := e.conversation(t, first.ConversationID).LastMessageAt

	require.NoError(t, e.gw.DeleteMessage(ctx, "alice", first.ConversationID, second.MessageID))
	conv := e.conversation(t, first.ConversationID)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, first.MessageID, conv.LastMessage.MessageID)
	assert.Equal(t, "first", conv.LastMessage.Text)
	assert.True(t, conv.LastMessageAt.Equal(lastAt), "ordering key is kept")

	require.NoError(t, e.gw.DeleteMessage(ctx, "alice", first.ConversationID, first.MessageID))
	conv = e.conversation(t, first.ConversationID)
	assert.Nil(t, conv.LastMessage)
	assert.Equal(t, []string{conv.ID}, inboxIDs(t, e.dir, "bob"))

	// a new message is still ordered after everything before it
	third := e.send(t, "alice", "bob", "third")
	assert.True(t, third.Timestamp.After(lastAt))
}

func TestSendReplyToMissingMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.gw.Send(ctx, "alice", service.SendInput{RecipientID: "bob", Text: "hi", ReplyToID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	c, err := e.store.FindConversationByPair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, inboxIDs(t, e.dir, "alice"), "a failed first send leaves no empty conversation")
}

func TestTimestampsAreMonotonic(t *testing.T) {
	e := newEnv(t)
	e.clock.step = 0 // frozen clock
	ctx := context.Background()

	first := e.send(t, "alice", "bob", "0")
	sub := e.broker.Subscribe(domain.ConversationTopic(first.ConversationID))
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			_, err := e.gw.Send(ctx, from, service.SendInput{RecipientID: to, Text: "x"})
			assert.NoError(t, err)
		}([]string{"alice", "bob"}[i%2], []string{"bob", "alice"}[i%2])
	}
	wg.Wait()

	last := first.Timestamp
	seen := 0
	for seen < 10 {
		ev := recv(t, sub)
		if ev.Kind != domain.EventMessageAdded {
			continue
		}
		assert.True(t, ev.Message.Timestamp.After(last), "subscriber saw timestamps out of order")
		last = ev.Message.Timestamp
		seen++
	}

	msgs, err := e.store.ListMessages(ctx, first.ConversationID, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 11)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp))
	}
}

func TestEndToEndScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "hi")
	conv := e.conversation(t, res.ConversationID)
	assert.Equal(t, domain.UserSet{"bob"}, conv.UnreadBy)
	assert.Equal(t, "hi", conv.LastMessage.Text)

	require.NoError(t, e.gw.MarkRead(ctx, "bob", res.ConversationID))
	assert.Empty(t, e.conversation(t, res.ConversationID).UnreadBy)

	r, err := e.gw.React(ctx, "alice", res.ConversationID, res.MessageID, "❤️")
	require.NoError(t, err)
	assert.Equal(t, domain.Reactions{"❤️": {"alice"}}, r)
	r, err = e.gw.React(ctx, "alice", res.ConversationID, res.MessageID, "❤️")
	require.NoError(t, err)
	assert.Equal(t, domain.Reactions{}, r)

	require.NoError(t, e.gw.HideConversation(ctx, "bob", res.ConversationID))
	assert.Empty(t, inboxIDs(t, e.dir, "bob"))
	assert.Equal(t, []string{res.ConversationID}, inboxIDs(t, e.dir, "alice"))
	conv = e.conversation(t, res.ConversationID)
	assert.Empty(t, conv.UnreadBy, "hiding does not touch unread state")

	e.send(t, "alice", "bob", "still there?")
	assert.Equal(t, []string{res.ConversationID}, inboxIDs(t, e.dir, "bob"))
	conv = e.conversation(t, res.ConversationID)
	assert.Equal(t, domain.UserSet{"bob"}, conv.UnreadBy)
	assert.Empty(t, conv.HiddenFor)
}

func TestSendPublishesAndNotifiesOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	inbox := e.broker.Subscribe(domain.UserTopic("bob"))
	defer inbox.Close()

	res := e.send(t, "alice", "bob", "hi")
	ev := recv(t, inbox)
	assert.Equal(t, domain.EventConversationUpdated, ev.Kind)
	assert.Equal(t, res.ConversationID, ev.Conversation.ID)

	thread := e.broker.Subscribe(domain.ConversationTopic(res.ConversationID))
	defer thread.Close()

	_, err := e.gw.React(ctx, "bob", res.ConversationID, res.MessageID, "👍")
	require.NoError(t, err)
	ev = recv(t, thread)
	assert.Equal(t, domain.EventMessageUpdated, ev.Kind)
	assert.Equal(t, domain.UserSet{"bob"}, ev.Message.Reactions["👍"])

	require.NoError(t, e.gw.MarkRead(ctx, "bob", res.ConversationID))
	ev = recv(t, thread)
	assert.Equal(t, domain.EventConversationUpdated, ev.Kind)
	assert.Empty(t, ev.Conversation.UnreadBy)

	e.notifier.AssertNumberOfCalls(t, "MessageSent", 1)
	e.notifier.AssertCalled(t, "MessageSent", mock.Anything,
		mock.MatchedBy(func(c *domain.Conversation) bool { return c.ID == res.ConversationID }),
		mock.MatchedBy(func(m *domain.Message) bool { return m.ID == res.MessageID }),
		"bob")
}

func TestSetTyping(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "hi")
	sub := e.broker.Subscribe(domain.ConversationTopic(res.ConversationID))
	defer sub.Close()

	require.NoError(t, e.gw.SetTyping(ctx, "bob", res.ConversationID, true))
	ev := recv(t, sub)
	assert.Equal(t, domain.EventTyping, ev.Kind)
	assert.Equal(t, "bob", ev.UserID)
	assert.True(t, ev.Typing)

	conv, err := e.dir.Conversation(ctx, "alice", res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"bob": true}, conv.Typing)

	require.NoError(t, e.gw.SetTyping(ctx, "bob", res.ConversationID, false))
	conv, err = e.dir.Conversation(ctx, "alice", res.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, conv.Typing)

	assert.ErrorIs(t, e.gw.SetTyping(ctx, "mallory", res.ConversationID, true), domain.ErrPermissionDenied)
}

func TestDirectoryMessages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.send(t, "alice", "bob", "one")
	e.send(t, "bob", "alice", "two")
	e.send(t, "alice", "bob", "three")

	msgs, err := e.dir.Messages(ctx, "bob", res.ConversationID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Equal(t, "three", msgs[1].Text)

	_, err = e.dir.Messages(ctx, "mallory", res.ConversationID, 10)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = e.gw.React(ctx, "bob", res.ConversationID, msgs[1].ID, "👍")
	require.NoError(t, err)
	msgs, err = e.dir.Messages(ctx, "alice", res.ConversationID, 0)
	require.NoError(t, err)
	views := service.RenderMessages("bob", msgs)
	require.Len(t, views, 3)
	assert.Equal(t, []domain.ReactionSummary{{Emoji: "👍", Count: 1, Mine: true}}, views[2].ReactionSummary)
	assert.Empty(t, views[0].ReactionSummary)
}

func TestFilterVisible(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	conv := func(id, other string, at time.Duration) *domain.Conversation {
		c := &domain.Conversation{
			ID:           id,
			Participants: [2]string{"alice", other},
			UnreadBy:     domain.UserSet{},
			HiddenFor:    domain.UserSet{},
		}
		if at > 0 {
			c.LastMessageAt = base.Add(at)
		}
		return c
	}

	older := conv("older", "bob", time.Minute)
	newer := conv("newer", "carol", time.Hour)
	hidden := conv("hidden", "dave", 2*time.Hour)
	hidden.HiddenFor.Add("alice")
	blocked := conv("blocked", "erin", 3*time.Hour)
	unverified := conv("unverified", "frank", 4*time.Hour)
	empty := conv("empty", "gina", 0)
	foreign := &domain.Conversation{ID: "foreign", Participants: [2]string{"bob", "carol"}, LastMessageAt: base}

	blocks := new(MockBlocks)
	blocks.On("IsBlocked", mock.Anything, "alice", "bob").Return(false, nil)
	blocks.On("IsBlocked", mock.Anything, "alice", "carol").Return(false, nil)
	blocks.On("IsBlocked", mock.Anything, "alice", "erin").Return(true, nil)
	blocks.On("IsBlocked", mock.Anything, "alice", "frank").Return(false, errors.New("timeout"))

	visible, degraded := service.FilterVisible(context.Background(), "alice",
		[]*domain.Conversation{older, newer, hidden, blocked, unverified, empty, foreign}, blocks)

	require.Len(t, visible, 2)
	assert.Equal(t, "newer", visible[0].ID)
	assert.Equal(t, "older", visible[1].ID)
	assert.True(t, degraded, "failed lookups are reported")
	blocks.AssertNotCalled(t, "IsBlocked", mock.Anything, "alice", "dave")
	blocks.AssertNotCalled(t, "IsBlocked", mock.Anything, "alice", "gina")
}

func TestInboxDegraded(t *testing.T) {
	blocks := new(MockBlocks)
	blocks.On("IsBlocked", mock.Anything, "alice", "bob").Return(false, nil).Once()
	e := newEnv(t, withBlocks(blocks))

	e.send(t, "alice", "bob", "hi")
	blocks.On("IsBlocked", mock.Anything, "alice", "bob").Return(false, domain.ErrTransient)

	inbox, err := e.dir.Inbox(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, inbox.Degraded)
	assert.Empty(t, inbox.Conversations)
}

func TestProfilesSetOnlinePublishes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	profiles := service.NewProfiles(e.profiles, e.broker, logging.Discard())

	sub := e.broker.Subscribe(domain.ProfileTopic("bob"))
	defer sub.Close()

	require.NoError(t, profiles.SetOnline(ctx, "bob", true))
	ev := recv(t, sub)
	assert.Equal(t, domain.EventProfileUpdated, ev.Kind)
	require.NotNil(t, ev.Profile)
	assert.True(t, ev.Profile.Online)
	assert.Equal(t, "Bob", ev.Profile.DisplayName, "presence updates keep display fields")

	require.NoError(t, profiles.SetOnline(ctx, "bob", false))
	p, err := profiles.Get(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, p.Online)
	assert.WithinDuration(t, time.Now(), p.LastSeen, time.Minute)
}
