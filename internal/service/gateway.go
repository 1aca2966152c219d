package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"dmcore/internal/broker"
	"dmcore/internal/domain"
	"dmcore/internal/presence"
)

const maxEmojiBytes = 32

// GatewayDeps wires a Gateway.
type GatewayDeps struct {
	Conversations domain.ConversationRepository
	Blocks        domain.BlockRepository
	Profiles      domain.ProfileRepository
	Broker        broker.Broker
	Presence      presence.Tracker
	Notifier      Notifier
	Metrics       *Metrics
	Logger        *slog.Logger
	// Now defaults to time.Now.
	Now              func() time.Time
	MaxMessageLength int
}

// Gateway is the only path through which messaging state changes. Every
// operation commits in one store transaction, then publishes the change.
type Gateway struct {
	convs    domain.ConversationRepository
	blocks   domain.BlockRepository
	profiles domain.ProfileRepository
	broker   broker.Broker
	presence presence.Tracker
	notifier Notifier
	metrics  *Metrics
	log      *slog.Logger
	now      func() time.Time
	maxLen   int

	// Held across commit and publish so subscribers of a conversation see
	// changes in commit order.
	locks *keyedMutex
}

func NewGateway(d GatewayDeps) *Gateway {
	g := &Gateway{
		convs:    d.Conversations,
		blocks:   d.Blocks,
		profiles: d.Profiles,
		broker:   d.Broker,
		presence: d.Presence,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      d.Logger,
		now:      d.Now,
		maxLen:   d.MaxMessageLength,
		locks:    newKeyedMutex(),
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.notifier == nil {
		g.notifier = NewLogNotifier(g.log)
	}
	if g.maxLen <= 0 {
		g.maxLen = 5000
	}
	return g
}

// SendInput addresses a message either to an existing conversation or to a
// user. When both are set, RecipientID is the fallback if the conversation
// no longer exists.
type SendInput struct {
	ConversationID string `json:"conversationId,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
	Text           string `json:"text"`
	ReplyToID      string `json:"replyToId,omitempty"`
}

type SendResult struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Timestamp      time.Time `json:"timestamp"`
	Created        bool      `json:"created"`
}

func (g *Gateway) Send(ctx context.Context, viewer string, in SendInput) (*SendResult, error) {
	start := time.Now()
	res, err := g.send(ctx, viewer, in)
	g.metrics.observe("send", start, err)
	return res, err
}

func (g *Gateway) send(ctx context.Context, viewer string, in SendInput) (*SendResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("message text is empty: %w", domain.ErrValidation)
	}
	if utf8.RuneCountInString(text) > g.maxLen {
		return nil, fmt.Errorf("message exceeds %d characters: %w", g.maxLen, domain.ErrValidation)
	}

	res, err := g.trySend(ctx, viewer, in, text)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
		// the conversation changed under us; resolve the key again once
		g.log.Debug("retrying send", "user_id", viewer, "error", err)
		res, err = g.trySend(ctx, viewer, in, text)
	}
	return res, err
}

func (g *Gateway) trySend(ctx context.Context, viewer string, in SendInput, text string) (*SendResult, error) {
	recipient, err := g.resolveRecipient(ctx, viewer, in)
	if err != nil {
		return nil, err
	}

	blocked, err := g.blocks.IsBlocked(ctx, viewer, recipient)
	if err != nil {
		return nil, fmt.Errorf("check block: %w: %w", domain.ErrTransient, err)
	}
	if blocked {
		return nil, fmt.Errorf("send to %s: %w", recipient, domain.ErrPermissionDenied)
	}

	details := g.participantDetails(ctx, viewer, recipient)

	unlock := g.locks.Lock(domain.PairKey(viewer, recipient))
	defer unlock()

	var (
		conv    *domain.Conversation
		msg     *domain.Message
		created bool
	)
	err = g.convs.WithTx(ctx, func(tx domain.ConversationTx) error {
		var err error
		conv, err = tx.FindConversationByPair(ctx, viewer, recipient)
		if err != nil {
			return err
		}
		if conv == nil {
			if in.RecipientID == "" {
				return fmt.Errorf("conversation %s: %w", in.ConversationID, domain.ErrNotFound)
			}
			created = true
			conv = &domain.Conversation{
				ID:                 uuid.NewString(),
				Participants:       [2]string{viewer, recipient},
				ParticipantDetails: map[string]domain.ParticipantDetail{},
				UnreadBy:           domain.UserSet{},
				HiddenFor:          domain.UserSet{},
				CreatedAt:          g.now().UTC(),
			}
		}

		msg = &domain.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			SenderID:       viewer,
			SenderName:     details[viewer].Name,
			Text:           text,
			Timestamp:      g.nextTimestamp(conv),
			Reactions:      domain.Reactions{},
		}
		if in.ReplyToID != "" {
			if created {
				return fmt.Errorf("reply target %s: %w", in.ReplyToID, domain.ErrNotFound)
			}
			target, err := tx.GetMessage(ctx, conv.ID, in.ReplyToID)
			if err != nil {
				return fmt.Errorf("reply target: %w", err)
			}
			if target.IsDeleted {
				return fmt.Errorf("reply target %s is deleted: %w", in.ReplyToID, domain.ErrNotFound)
			}
			msg.ReplyTo = target.Snapshot()
		}

		if conv.ParticipantDetails == nil {
			conv.ParticipantDetails = map[string]domain.ParticipantDetail{}
		}
		for uid, d := range details {
			conv.ParticipantDetails[uid] = d
		}
		conv.LastMessage = &domain.LastMessage{
			MessageID: msg.ID,
			Text:      msg.Text,
			SenderID:  viewer,
			At:        msg.Timestamp,
		}
		conv.LastMessageAt = msg.Timestamp
		conv.UnreadBy.Add(recipient)
		conv.UnreadBy.Remove(viewer)
		conv.HiddenFor.Remove(recipient)
		conv.HiddenFor.Remove(viewer)

		if created {
			if err := tx.InsertConversation(ctx, conv); err != nil {
				return err
			}
		} else if err := tx.UpdateConversation(ctx, conv); err != nil {
			return err
		}
		return tx.InsertMessage(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	g.publishMessage(ctx, domain.EventMessageAdded, msg)
	g.publishConversation(ctx, conv, conv.Participants[:]...)

	if err := g.notifier.MessageSent(ctx, conv.Clone(), msg.Clone(), recipient); err != nil {
		g.log.Warn("push hand-off failed", "conversation_id", conv.ID, "message_id", msg.ID, "error", err)
	}

	g.log.Debug("message sent",
		"conversation_id", conv.ID,
		"message_id", msg.ID,
		"sender", viewer,
		"created", created,
	)
	return &SendResult{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		Timestamp:      msg.Timestamp,
		Created:        created,
	}, nil
}

// resolveRecipient turns the conversation key into the counterparty id.
func (g *Gateway) resolveRecipient(ctx context.Context, viewer string, in SendInput) (string, error) {
	if in.ConversationID != "" {
		conv, err := g.convs.GetConversation(ctx, in.ConversationID)
		switch {
		case err == nil:
			if !conv.HasParticipant(viewer) {
				return "", fmt.Errorf("conversation %s: %w", conv.ID, domain.ErrPermissionDenied)
			}
			if in.RecipientID != "" && conv.Counterparty(viewer) != in.RecipientID {
				return "", fmt.Errorf("recipient is not in conversation %s: %w", conv.ID, domain.ErrValidation)
			}
			return conv.Counterparty(viewer), nil
		case errors.Is(err, domain.ErrNotFound) && in.RecipientID != "":
		default:
			return "", err
		}
	}
	switch in.RecipientID {
	case "":
		return "", fmt.Errorf("conversation or recipient is required: %w", domain.ErrValidation)
	case viewer:
		return "", fmt.Errorf("cannot message yourself: %w", domain.ErrValidation)
	}
	return in.RecipientID, nil
}

// participantDetails fetches display snapshots for the pair. Failures only
// cost a stale cache entry.
func (g *Gateway) participantDetails(ctx context.Context, uids ...string) map[string]domain.ParticipantDetail {
	out := make(map[string]domain.ParticipantDetail, len(uids))
	if g.profiles == nil {
		return out
	}
	for _, uid := range uids {
		p, err := g.profiles.GetProfile(ctx, uid)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				g.log.Warn("profile lookup failed", "user_id", uid, "error", err)
			}
			continue
		}
		out[uid] = p.Detail()
	}
	return out
}

// nextTimestamp is strictly after the conversation's last message even if
// the clock stalls or steps back.
func (g *Gateway) nextTimestamp(conv *domain.Conversation) time.Time {
	ts := g.now().UTC().Truncate(time.Microsecond)
	if !ts.After(conv.LastMessageAt) {
		ts = conv.LastMessageAt.Add(time.Microsecond)
	}
	return ts
}

// React toggles viewer's emoji on a message and returns the resulting
// reaction map.
func (g *Gateway) React(ctx context.Context, viewer, conversationID, messageID, emoji string) (domain.Reactions, error) {
	start := time.Now()
	r, err := g.react(ctx, viewer, conversationID, messageID, emoji)
	g.metrics.observe("react", start, err)
	return r, err
}

func (g *Gateway) react(ctx context.Context, viewer, conversationID, messageID, emoji string) (domain.Reactions, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmojiBytes {
		return nil, fmt.Errorf("invalid emoji: %w", domain.ErrValidation)
	}
	conv, err := g.authorize(ctx, viewer, conversationID)
	if err != nil {
		return nil, err
	}

	unlock := g.lockConversation(conv)
	defer unlock()

	var msg *domain.Message
	err = g.convs.WithTx(ctx, func(tx domain.ConversationTx) error {
		m, err := tx.GetMessage(ctx, conversationID, messageID)
		if err != nil {
			return err
		}
		if m.IsDeleted {
			return fmt.Errorf("message %s is deleted: %w", messageID, domain.ErrNotFound)
		}
		m.Reactions.Toggle(emoji, viewer)
		msg = m
		return tx.UpdateMessage(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	g.publishMessage(ctx, domain.EventMessageUpdated, msg)
	return msg.Reactions.Clone(), nil
}

// DeleteMessage soft-deletes a message. Only its author may do so; deleting
// twice is acknowledged without changes.
func (g *Gateway) DeleteMessage(ctx context.Context, viewer, conversationID, messageID string) error {
	start := time.Now()
	err := g.deleteMessage(ctx, viewer, conversationID, messageID)
	g.metrics.observe("delete_message", start, err)
	return err
}

func (g *Gateway) deleteMessage(ctx context.Context, viewer, conversationID, messageID string) error {
	conv, err := g.authorize(ctx, viewer, conversationID)
	if err != nil {
		return err
	}

	unlock := g.lockConversation(conv)
	defer unlock()

	var (
		msg     *domain.Message
		updated *domain.Conversation
	)
	err = g.convs.WithTx(ctx, func(tx domain.ConversationTx) error {
		m, err := tx.GetMessage(ctx, conversationID, messageID)
		if err != nil {
			return err
		}
		if m.SenderID != viewer {
			return fmt.Errorf("message %s: %w", messageID, domain.ErrPermissionDenied)
		}
		if m.IsDeleted {
			return nil
		}
		m.IsDeleted = true
		m.Text = ""
		m.Reactions = domain.Reactions{}
		if err := tx.UpdateMessage(ctx, m); err != nil {
			return err
		}
		msg = m

		c, err := tx.GetConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		if c.LastMessage == nil || c.LastMessage.MessageID != m.ID {
			return nil
		}
		latest, err := tx.LatestVisibleMessage(ctx, conversationID)
		if err != nil {
			return err
		}
		c.LastMessage = nil
		if latest != nil {
			c.LastMessage = &domain.LastMessage{
				MessageID: latest.ID,
				Text:      latest.Text,
				SenderID:  latest.SenderID,
				At:        latest.Timestamp,
			}
		}
		updated = c
		return tx.UpdateConversation(ctx, c)
	})
	if err != nil {
		return err
	}

	if msg != nil {
		g.publishMessage(ctx, domain.EventMessageUpdated, msg)
	}
	if updated != nil {
		g.publishConversation(ctx, updated, updated.Participants[:]...)
	}
	return nil
}

// MarkRead removes viewer from the unread set.
func (g *Gateway) MarkRead(ctx context.Context, viewer, conversationID string) error {
	start := time.Now()
	err := g.updateMembership(ctx, viewer, conversationID, func(c *domain.Conversation) bool {
		return c.UnreadBy.Remove(viewer)
	})
	g.metrics.observe("mark_read", start, err)
	return err
}

// HideConversation removes the conversation from viewer's inbox until the
// next message arrives. The other participant is not affected.
func (g *Gateway) HideConversation(ctx context.Context, viewer, conversationID string) error {
	start := time.Now()
	err := g.updateMembership(ctx, viewer, conversationID, func(c *domain.Conversation) bool {
		return c.HiddenFor.Add(viewer)
	})
	g.metrics.observe("hide", start, err)
	return err
}

// updateMembership applies a set change to viewer's own entry. Nothing is
// written or published when the change is a no-op.
func (g *Gateway) updateMembership(ctx context.Context, viewer, conversationID string, apply func(*domain.Conversation) bool) error {
	conv, err := g.authorize(ctx, viewer, conversationID)
	if err != nil {
		return err
	}

	unlock := g.lockConversation(conv)
	defer unlock()

	var updated *domain.Conversation
	err = g.convs.WithTx(ctx, func(tx domain.ConversationTx) error {
		c, err := tx.GetConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		if !apply(c) {
			return nil
		}
		updated = c
		return tx.UpdateConversation(ctx, c)
	})
	if err != nil {
		return err
	}
	if updated != nil {
		g.publishConversation(ctx, updated, viewer)
	}
	return nil
}

// SetTyping records a best-effort typing signal and fans it out. It is not
// transactional and may be dropped.
func (g *Gateway) SetTyping(ctx context.Context, viewer, conversationID string, typing bool) error {
	start := time.Now()
	err := g.setTyping(ctx, viewer, conversationID, typing)
	g.metrics.observe("typing", start, err)
	return err
}

func (g *Gateway) setTyping(ctx context.Context, viewer, conversationID string, typing bool) error {
	if _, err := g.authorize(ctx, viewer, conversationID); err != nil {
		return err
	}
	if err := g.presence.SetTyping(ctx, conversationID, viewer, typing); err != nil {
		return err
	}
	g.publish(ctx, domain.Event{
		Kind:           domain.EventTyping,
		Topic:          domain.ConversationTopic(conversationID),
		ConversationID: conversationID,
		UserID:         viewer,
		Typing:         typing,
		At:             g.now().UTC(),
	})
	return nil
}

// authorize loads the conversation and checks viewer is a participant.
// Participants never change, so the check holds for the transaction that
// follows.
func (g *Gateway) authorize(ctx context.Context, viewer, conversationID string) (*domain.Conversation, error) {
	conv, err := g.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewer) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrPermissionDenied)
	}
	return conv, nil
}

func (g *Gateway) lockConversation(conv *domain.Conversation) func() {
	return g.locks.Lock(domain.PairKey(conv.Participants[0], conv.Participants[1]))
}

func (g *Gateway) publishMessage(ctx context.Context, kind domain.EventKind, msg *domain.Message) {
	g.publish(ctx, domain.Event{
		Kind:           kind,
		Topic:          domain.ConversationTopic(msg.ConversationID),
		ConversationID: msg.ConversationID,
		Message:        msg.Clone(),
		At:             g.now().UTC(),
	})
}

// publishConversation sends the record on the conversation topic and on
// the user topic of each uid.
func (g *Gateway) publishConversation(ctx context.Context, conv *domain.Conversation, uids ...string) {
	topics := make([]string, 0, len(uids)+1)
	topics = append(topics, domain.ConversationTopic(conv.ID))
	for _, uid := range uids {
		topics = append(topics, domain.UserTopic(uid))
	}
	for _, topic := range topics {
		g.publish(ctx, domain.Event{
			Kind:           domain.EventConversationUpdated,
			Topic:          topic,
			ConversationID: conv.ID,
			Conversation:   conv.Clone(),
			At:             g.now().UTC(),
		})
	}
}

// publish runs after commit; a failure leaves subscribers to catch up on
// their next reload and never fails the operation.
func (g *Gateway) publish(ctx context.Context, ev domain.Event) {
	err := g.broker.Publish(ctx, ev)
	g.metrics.event(ev.Kind, err)
	if err != nil {
		g.log.Warn("publish failed", "topic", ev.Topic, "kind", ev.Kind, "error", err)
	}
}
