package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dmcore/internal/broker"
	"dmcore/internal/domain"
	"dmcore/internal/ratelimit"
	"dmcore/internal/service"
	"dmcore/internal/session"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

// TokenVerifier maps a bearer token to the caller's user id.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

type Deps struct {
	Hub       *Hub
	Tokens    TokenVerifier
	Gateway   *service.Gateway
	Directory *service.Directory
	Profiles  *service.Profiles
	Broker    broker.Broker
	Limiter   *ratelimit.Pool
	Logger    *slog.Logger

	AllowedOrigins []string
	PageSize       int
	ReadDelay      time.Duration
	TypingTimeout  time.Duration
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}
	if _, ok := allowed["*"]; ok {
		return func(r *http.Request) bool {
			return true
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or Sec-WebSocket-Protocol), then:
//   - pushes the caller's inbox on connect and whenever it changes
//   - send / react / delete_message / mark_read / hide / typing -> Gateway, answered with ack or error
//   - open / close -> one live conversation view per connection, pushed as view frames
func MakeHandler(d Deps) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(d.AllowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			var authErr wsAuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		userID, err := d.Tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := newClient(userID, conn, d.Logger.With("user_id", userID))
		go c.writePump()

		s := &connection{deps: d, client: c, ctx: r.Context()}
		s.serve()
	}
}

// connection is the per-socket state. Only the read loop touches it.
type connection struct {
	deps   Deps
	client *Client
	ctx    context.Context

	open      *session.Session
	openDone  chan struct{}
	inboxStop chan struct{}
	inboxDone chan struct{}
}

func (s *connection) serve() {
	c := s.client
	if s.deps.Hub.Register(c) {
		s.setOnline(true)
	}
	s.startInbox()

	defer func() {
		s.closeSession()
		close(s.inboxStop)
		<-s.inboxDone
		if s.deps.Hub.Unregister(c) {
			s.setOnline(false)
		}
		c.shutdown()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read failed", "error", err)
			}
			return
		}
		s.dispatch(in)
	}
}

func (s *connection) setOnline(online bool) {
	if s.deps.Profiles == nil {
		return
	}
	// presence must be recorded even when the request context is gone
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 5*time.Second)
	defer cancel()
	if err := s.deps.Profiles.SetOnline(ctx, s.client.userID, online); err != nil {
		s.client.log.Warn("update presence", "online", online, "error", err)
	}
}

func (s *connection) dispatch(in inbound) {
	uid := s.client.userID
	var (
		result any
		err    error
	)
	switch in.Type {
	case "send":
		var p service.SendInput
		if err = decode(in.Payload, &p); err != nil {
			break
		}
		if s.deps.Limiter != nil && !s.deps.Limiter.Allow(uid) {
			err = fmt.Errorf("send: %w", domain.ErrRateLimited)
			break
		}
		result, err = s.deps.Gateway.Send(s.ctx, uid, p)

	case "react":
		var p reactPayload
		if err = decode(in.Payload, &p); err != nil {
			break
		}
		var reactions domain.Reactions
		reactions, err = s.deps.Gateway.React(s.ctx, uid, p.ConversationID, p.MessageID, p.Emoji)
		if err == nil {
			result = reactionResult{MessageID: p.MessageID, Reactions: reactions.Summaries(uid)}
		}

	case "delete_message":
		var p messageRef
		if err = decode(in.Payload, &p); err != nil {
			break
		}
		err = s.deps.Gateway.DeleteMessage(s.ctx, uid, p.ConversationID, p.MessageID)

	case "mark_read":
		var p conversationRef
		if err = decode(in.Payload, &p); err != nil {
			break
		}
		err = s.deps.Gateway.MarkRead(s.ctx, uid, p.ConversationID)

	case "hide":
		var p conversationRef
		if err = decode(in.Payload, &p); err != nil {
			break
		}
		err = s.deps.Gateway.HideConversation(s.ctx, uid, p.ConversationID)

	case "typing":
		var p typingPayload
		if err = decode(in.Payload, &p); err != nil {
			break
		}
		err = s.deps.Gateway.SetTyping(s.ctx, uid, p.ConversationID, p.Typing)

	case "open":
		var p conversationRef
		if err = decode(in.Payload, &p); err != nil {
			break
		}
		err = s.openSession(p.ConversationID)

	case "close":
		s.closeSession()

	default:
		err = fmt.Errorf("unknown event type %q: %w", in.Type, domain.ErrValidation)
	}

	if err != nil {
		if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrPermissionDenied) &&
			!errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrRateLimited) {
			s.client.log.Error("ws event failed", "type", in.Type, "error", err)
		}
		s.client.enqueue(errorFrame(in.RequestID, err))
		return
	}
	s.client.enqueue(outbound{Type: "ack", RequestID: in.RequestID, Payload: result})
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload: %w", domain.ErrValidation)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", domain.ErrValidation)
	}
	return nil
}

// openSession replaces the connection's open view, if any.
func (s *connection) openSession(conversationID string) error {
	s.closeSession()

	sess, err := session.Open(s.ctx, session.Deps{
		Loader:   s.deps.Directory,
		Profiles: s.deps.Profiles,
		Marker:   s.deps.Gateway,
		Broker:   s.deps.Broker,
		Logger:   s.client.log,
	}, session.Options{
		Viewer:         s.client.userID,
		ConversationID: conversationID,
		PageSize:       s.deps.PageSize,
		ReadDelay:      s.deps.ReadDelay,
		TypingTimeout:  s.deps.TypingTimeout,
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range sess.Updates() {
			s.client.enqueue(outbound{Type: "view", Payload: v})
		}
	}()
	s.open, s.openDone = sess, done
	return nil
}

func (s *connection) closeSession() {
	if s.open == nil {
		return
	}
	s.open.Close()
	<-s.openDone
	s.open, s.openDone = nil, nil
}

// startInbox pushes the inbox now and again on every change to the user
// topic. A lagged subscription is replaced; the fresh inbox covers the gap.
func (s *connection) startInbox() {
	s.inboxStop = make(chan struct{})
	s.inboxDone = make(chan struct{})
	uid := s.client.userID

	go func() {
		defer close(s.inboxDone)
		for {
			sub := s.deps.Broker.Subscribe(domain.UserTopic(uid))
			s.pushInbox()
			lagged := s.drainInbox(sub)
			sub.Close()
			if !lagged {
				return
			}
		}
	}()
}

func (s *connection) drainInbox(sub *broker.Subscription) bool {
	for {
		select {
		case <-s.inboxStop:
			return false
		case _, ok := <-sub.Events():
			if !ok {
				return errors.Is(sub.Err(), broker.ErrLagged)
			}
			s.pushInbox()
		}
	}
}

func (s *connection) pushInbox() {
	inbox, err := s.deps.Directory.Inbox(s.ctx, s.client.userID)
	if err != nil {
		s.client.log.Warn("load inbox", "error", err)
		s.client.enqueue(errorFrame("", err))
		return
	}
	s.client.enqueue(outbound{Type: "inbox", Payload: inbox})
}
