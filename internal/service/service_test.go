package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dmcore/internal/broker"
	"dmcore/internal/domain"
	"dmcore/internal/logging"
	"dmcore/internal/presence"
	"dmcore/internal/service"
	"dmcore/internal/store"
	"dmcore/internal/store/sqlite"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) MessageSent(ctx context.Context, conv *domain.Conversation, msg *domain.Message, recipient string) error {
	args := m.Called(ctx, conv, msg, recipient)
	return args.Error(0)
}

type MockBlocks struct {
	mock.Mock
}

func (m *MockBlocks) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

type clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

type env struct {
	gw       *service.Gateway
	dir      *service.Directory
	store    *store.Store
	blocks   *store.BlockRepo
	profiles *store.ProfileRepo
	broker   *broker.Memory
	typing   *presence.Memory
	notifier *MockNotifier
	clock    *clock
}

type envOption func(*service.GatewayDeps)

func withBlocks(b domain.BlockRepository) envOption {
	return func(d *service.GatewayDeps) { d.Blocks = b }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	e := &env{
		store:    sqlite.NewStore(db, nil),
		blocks:   sqlite.NewBlockRepo(db),
		profiles: sqlite.NewProfileRepo(db),
		broker:   broker.NewMemory(256),
		notifier: new(MockNotifier),
		clock:    &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), step: time.Second},
	}
	e.typing = presence.NewMemoryWithClock(6*time.Second, e.clock.Now)
	e.notifier.On("MessageSent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	require.NoError(t, e.profiles.Upsert(ctx, &domain.Profile{ID: "alice", DisplayName: "Alice", PictureURL: "a.png"}))
	require.NoError(t, e.profiles.Upsert(ctx, &domain.Profile{ID: "bob", DisplayName: "Bob"}))

	deps := service.GatewayDeps{
		Conversations:    e.store,
		Blocks:           e.blocks,
		Profiles:         e.profiles,
		Broker:           e.broker,
		Presence:         e.typing,
		Notifier:         e.notifier,
		Metrics:          service.NewMetrics(nil),
		Logger:           logging.Discard(),
		Now:              e.clock.Now,
		MaxMessageLength: 20,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.gw = service.NewGateway(deps)
	e.dir = service.NewDirectory(e.store, deps.Blocks, e.typing, 50, logging.Discard())
	return e
}

func (e *env) send(t *testing.T, from, to, text string) *service.SendResult {
	t.Helper()
	res, err := e.gw.Send(context.Background(), from, service.SendInput{RecipientID: to, Text: text})
	require.NoError(t, err)
	return res
}

func (e *env) conversation(t *testing.T, id string) *domain.Conversation {
	t.Helper()
	c, err := e.store.GetConversation(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (e *env) message(t *testing.T, convID, msgID string) *domain.Message {
	t.Helper()
	m, err := e.store.GetMessage(context.Background(), convID, msgID)
	require.NoError(t, err)
	return m
}

func inboxIDs(t *testing.T, dir *service.Directory, uid string) []string {
	t.Helper()
	inbox, err := dir.Inbox(context.Background(), uid)
	require.NoError(t, err)
	ids := make([]string, 0, len(inbox.Conversations))
	for _, c := range inbox.Conversations {
		ids = append(ids, c.ID)
	}
	return ids
}

func recv(t *testing.T, sub *broker.Subscription) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed: %v", sub.Err())
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.Event{}
}
