// Package session merges the conversation record, its message log and the
// counterparty profile into one view for a connected viewer.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dmcore/internal/broker"
	"dmcore/internal/domain"
	"dmcore/internal/service"
)

type Status string

const (
	StatusReady Status = "ready"
	// StatusFailed means a stream broke; the view is stale and must be
	// reopened.
	StatusFailed Status = "failed"
)

// Loader reads the initial state. *service.Directory implements it.
type Loader interface {
	Conversation(ctx context.Context, viewer, conversationID string) (*domain.Conversation, error)
	Messages(ctx context.Context, viewer, conversationID string, limit int) ([]*domain.Message, error)
}

type ProfileSource interface {
	Get(ctx context.Context, uid string) (*domain.Profile, error)
}

// Marker issues the writes a session makes on its own. *service.Gateway
// implements it.
type Marker interface {
	MarkRead(ctx context.Context, viewer, conversationID string) error
	SetTyping(ctx context.Context, viewer, conversationID string, typing bool) error
}

type Subscriber interface {
	Subscribe(topics ...string) *broker.Subscription
}

type Deps struct {
	Loader   Loader
	Profiles ProfileSource
	Marker   Marker
	Broker   Subscriber
	Logger   *slog.Logger
}

type Options struct {
	Viewer         string
	ConversationID string
	PageSize       int
	// ReadDelay debounces mark-read after unread activity.
	ReadDelay time.Duration
	// TypingTimeout clears the counterparty typing flag if no refresh arrives.
	TypingTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
	if o.ReadDelay <= 0 {
		o.ReadDelay = 800 * time.Millisecond
	}
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = 6 * time.Second
	}
}

// Counterparty holds the display fields of the other participant.
type Counterparty struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PictureURL string    `json:"pictureUrl"`
	Online     bool      `json:"online"`
	LastSeen   time.Time `json:"lastSeen"`
}

// View is a render-ready snapshot. Messages are shared with the session
// and must be treated as read-only.
type View struct {
	ConversationID string                `json:"conversationId"`
	Status         Status                `json:"status"`
	Error          string                `json:"error,omitempty"`
	Counterparty   Counterparty          `json:"counterparty"`
	Messages       []service.MessageView `json:"messages"`
	// Anchor is the newest message the view is scrolled to. It only moves
	// forward.
	Anchor string `json:"anchor,omitempty"`
	Unread bool   `json:"unread"`
	Hidden bool   `json:"hidden"`
	Typing bool   `json:"typing"`
}

// Session owns the subscriptions and timers of one open conversation.
// All state is confined to the run goroutine.
type Session struct {
	deps   Deps
	opts   Options
	log    *slog.Logger
	sub    *broker.Subscription
	other  string
	bgctx  context.Context
	events <-chan domain.Event

	updates chan View
	cmds    chan func()
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	latest View

	conv      *domain.Conversation
	msgs      []*domain.Message
	profile   Counterparty
	anchor    *domain.Message
	typing    bool
	status    Status
	failure   string
	readTimer *time.Timer
	readC     <-chan time.Time
	typeTimer *time.Timer
	typeC     <-chan time.Time
}

// Open loads the conversation, subscribes to its streams and starts the
// event loop. ctx bounds the initial load only.
func Open(ctx context.Context, deps Deps, opts Options) (*Session, error) {
	opts.setDefaults()
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	conv, err := deps.Loader.Conversation(ctx, opts.Viewer, opts.ConversationID)
	if err != nil {
		return nil, err
	}
	other := conv.Counterparty(opts.Viewer)

	// subscribe before reading the state so nothing committed in between is
	// missed; duplicates are merged by id
	sub := deps.Broker.Subscribe(
		domain.ConversationTopic(conv.ID),
		domain.ProfileTopic(other),
	)

	// the first read only resolved the counterparty; a commit may have
	// landed before the subscription started
	conv, err = deps.Loader.Conversation(ctx, opts.Viewer, conv.ID)
	if err != nil {
		sub.Close()
		return nil, err
	}

	msgs, err := deps.Loader.Messages(ctx, opts.Viewer, conv.ID, opts.PageSize)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	s := &Session{
		deps:    deps,
		opts:    opts,
		log:     log.With("conversation_id", conv.ID, "user_id", opts.Viewer),
		sub:     sub,
		other:   other,
		bgctx:   context.WithoutCancel(ctx),
		events:  sub.Events(),
		updates: make(chan View, 1),
		cmds:    make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		conv:    conv,
		status:  StatusReady,
	}

	s.profile = Counterparty{ID: other}
	if d, ok := conv.ParticipantDetails[other]; ok {
		s.profile.Name = d.Name
		s.profile.PictureURL = d.PictureURL
	}
	if deps.Profiles != nil {
		if p, err := deps.Profiles.Get(ctx, other); err == nil {
			s.applyProfile(p)
		} else {
			s.log.Debug("counterparty profile unavailable", "error", err)
		}
	}

	for _, m := range msgs {
		s.upsert(m)
	}
	if s.typing = conv.Typing[other]; s.typing {
		s.armTyping()
	}
	if conv.UnreadBy.Contains(opts.Viewer) {
		s.armRead()
	}
	s.publish()

	go s.run()
	return s, nil
}

// Updates delivers views as they change. Intermediate views may be skipped;
// the latest one is always delivered. The channel closes after Close.
func (s *Session) Updates() <-chan View {
	return s.updates
}

// Current returns the latest view.
func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// SetTyping forwards the viewer's own typing signal.
func (s *Session) SetTyping(typing bool) {
	s.do(func() {
		s.fire("typing", func(ctx context.Context) error {
			return s.deps.Marker.SetTyping(ctx, s.opts.Viewer, s.opts.ConversationID, typing)
		})
	})
}

// Close disposes the subscription and every pending timer. It is safe to
// call more than once and from any goroutine.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *Session) do(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.updates)
	defer s.dispose()

	for {
		select {
		case <-s.quit:
			return
		case ev, ok := <-s.events:
			if !ok {
				s.events = nil
				s.fail(s.sub.Err())
				continue
			}
			s.apply(ev)
		case <-s.readC:
			s.readC = nil
			s.markRead()
		case <-s.typeC:
			s.typeC = nil
			if s.typing {
				s.typing = false
				s.publish()
			}
		case fn := <-s.cmds:
			fn()
		}
	}
}

func (s *Session) dispose() {
	s.sub.Close()
	if s.readTimer != nil {
		s.readTimer.Stop()
	}
	if s.typeTimer != nil {
		s.typeTimer.Stop()
	}
}

func (s *Session) apply(ev domain.Event) {
	switch ev.Kind {
	case domain.EventMessageAdded:
		if ev.Message == nil {
			return
		}
		s.upsert(ev.Message)
		if ev.Message.SenderID == s.other {
			// the counterparty stopped typing when their message landed
			s.typing = false
		}
	case domain.EventMessageUpdated:
		// updates to messages older than the loaded page are not shown
		if ev.Message == nil || !s.replace(ev.Message) {
			return
		}
	case domain.EventConversationUpdated:
		if ev.Conversation == nil {
			return
		}
		c := ev.Conversation.Clone()
		c.Typing = s.conv.Typing
		s.conv = c
		if c.UnreadBy.Contains(s.opts.Viewer) {
			s.armRead()
		}
	case domain.EventTyping:
		if ev.UserID != s.other {
			return
		}
		s.typing = ev.Typing
		if ev.Typing {
			s.armTyping()
		}
	case domain.EventProfileUpdated:
		if ev.Profile == nil || ev.Profile.ID != s.other {
			return
		}
		s.applyProfile(ev.Profile)
	default:
		return
	}
	s.publish()
}

// upsert merges m into the log ordered by timestamp and advances the
// anchor when m is newer than it.
func (s *Session) upsert(m *domain.Message) {
	if s.replace(m) {
		return
	}
	i := sort.Search(len(s.msgs), func(i int) bool {
		return s.msgs[i].Timestamp.After(m.Timestamp)
	})
	s.msgs = append(s.msgs, nil)
	copy(s.msgs[i+1:], s.msgs[i:])
	s.msgs[i] = m

	if s.anchor == nil || m.Timestamp.After(s.anchor.Timestamp) {
		s.anchor = m
	}
}

// replace swaps in m for the message with the same id. It reports false
// when the log does not hold it.
func (s *Session) replace(m *domain.Message) bool {
	for i, cur := range s.msgs {
		if cur.ID == m.ID {
			s.msgs[i] = m
			if s.anchor != nil && s.anchor.ID == m.ID {
				s.anchor = m
			}
			return true
		}
	}
	return false
}

// applyProfile only takes display fields; identity stays with the record.
func (s *Session) applyProfile(p *domain.Profile) {
	s.profile.Name = p.DisplayName
	s.profile.PictureURL = p.PictureURL
	s.profile.Online = p.Online
	s.profile.LastSeen = p.LastSeen
}

func (s *Session) armRead() {
	if s.readTimer != nil {
		s.readTimer.Stop()
	}
	s.readTimer = time.NewTimer(s.opts.ReadDelay)
	s.readC = s.readTimer.C
}

func (s *Session) armTyping() {
	if s.typeTimer != nil {
		s.typeTimer.Stop()
	}
	s.typeTimer = time.NewTimer(s.opts.TypingTimeout)
	s.typeC = s.typeTimer.C
}

func (s *Session) markRead() {
	if !s.conv.UnreadBy.Contains(s.opts.Viewer) || s.status == StatusFailed {
		return
	}
	s.fire("mark_read", func(ctx context.Context) error {
		return s.deps.Marker.MarkRead(ctx, s.opts.Viewer, s.opts.ConversationID)
	})
}

// fire runs a Gateway call off the loop. The result may arrive after the
// session closed; it is only logged.
func (s *Session) fire(op string, call func(ctx context.Context) error) {
	go func() {
		if err := call(s.bgctx); err != nil {
			s.log.Warn("session call failed", "op", op, "error", err)
		}
	}()
}

func (s *Session) fail(err error) {
	s.status = StatusFailed
	s.failure = "could not load conversation"
	if err != nil {
		s.failure = err.Error()
	}
	s.log.Warn("conversation stream ended", "error", err)
	s.publish()
}

func (s *Session) publish() {
	v := View{
		ConversationID: s.conv.ID,
		Status:         s.status,
		Error:          s.failure,
		Counterparty:   s.profile,
		Messages:       service.RenderMessages(s.opts.Viewer, s.msgs),
		Unread:         s.conv.UnreadBy.Contains(s.opts.Viewer),
		Hidden:         s.conv.HiddenFor.Contains(s.opts.Viewer),
		Typing:         s.typing,
	}
	if s.anchor != nil {
		v.Anchor = s.anchor.ID
	}

	s.mu.Lock()
	s.latest = v
	s.mu.Unlock()

	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
}
