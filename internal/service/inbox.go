package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"dmcore/internal/domain"
	"dmcore/internal/presence"
)

// FilterVisible returns the conversations viewer's inbox shows, newest
// activity first. A conversation is dropped when viewer hid it, when either
// side blocked the other, or when it has no messages. If the block lookup
// fails for a conversation it is dropped as well and degraded is set.
func FilterVisible(
	ctx context.Context,
	viewer string,
	convs []*domain.Conversation,
	blocks domain.BlockRepository,
) (visible []*domain.Conversation, degraded bool) {
	visible = make([]*domain.Conversation, 0, len(convs))
	for _, c := range convs {
		if !c.HasParticipant(viewer) || c.LastMessageAt.IsZero() || c.HiddenFor.Contains(viewer) {
			continue
		}
		blocked, err := blocks.IsBlocked(ctx, viewer, c.Counterparty(viewer))
		if err != nil {
			degraded = true
			continue
		}
		if blocked {
			continue
		}
		visible = append(visible, c)
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].LastMessageAt.After(visible[j].LastMessageAt)
	})
	return visible, degraded
}

// Inbox is the viewer's filtered conversation list.
type Inbox struct {
	Conversations []*domain.Conversation `json:"conversations"`
	// Degraded means some conversations could not be verified and were left
	// out.
	Degraded bool `json:"degraded"`
}

// MessageView is a message with its reaction counts rendered for a viewer.
type MessageView struct {
	*domain.Message
	ReactionSummary []domain.ReactionSummary `json:"reactionSummary"`
}

// RenderMessages builds the viewer-specific views of msgs.
func RenderMessages(viewer string, msgs []*domain.Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{
			Message:         m,
			ReactionSummary: m.Reactions.Summaries(viewer),
		})
	}
	return out
}

// Directory serves read access to conversations, checked against the
// caller's membership.
type Directory struct {
	convs    domain.ConversationRepository
	blocks   domain.BlockRepository
	presence presence.Tracker
	log      *slog.Logger
	pageSize int
}

func NewDirectory(
	convs domain.ConversationRepository,
	blocks domain.BlockRepository,
	tracker presence.Tracker,
	pageSize int,
	log *slog.Logger,
) *Directory {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Directory{
		convs:    convs,
		blocks:   blocks,
		presence: tracker,
		log:      log,
		pageSize: pageSize,
	}
}

func (d *Directory) Inbox(ctx context.Context, viewer string) (*Inbox, error) {
	convs, err := d.convs.ListConversationsForUser(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	visible, degraded := FilterVisible(ctx, viewer, convs, d.blocks)
	if degraded {
		d.log.Warn("inbox degraded: block lookup failed", "user_id", viewer)
	}
	return &Inbox{Conversations: visible, Degraded: degraded}, nil
}

// Conversation returns the record with the current typing state overlaid.
func (d *Directory) Conversation(ctx context.Context, viewer, conversationID string) (*domain.Conversation, error) {
	conv, err := d.authorized(ctx, viewer, conversationID)
	if err != nil {
		return nil, err
	}
	typing, err := d.presence.Typing(ctx, conversationID)
	if err != nil {
		d.log.Debug("typing lookup failed", "conversation_id", conversationID, "error", err)
		return conv, nil
	}
	conv.Typing = typing
	return conv, nil
}

// Messages returns the newest page of the log, oldest first.
func (d *Directory) Messages(ctx context.Context, viewer, conversationID string, limit int) ([]*domain.Message, error) {
	if _, err := d.authorized(ctx, viewer, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > d.pageSize {
		limit = d.pageSize
	}
	return d.convs.ListMessages(ctx, conversationID, limit)
}

func (d *Directory) authorized(ctx context.Context, viewer, conversationID string) (*domain.Conversation, error) {
	conv, err := d.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewer) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrPermissionDenied)
	}
	return conv, nil
}
