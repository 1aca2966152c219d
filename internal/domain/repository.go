package domain

import (
	"context"
	"time"
)

// ConversationRepository is the conversation store: one record per pair and
// one ordered message log per conversation.
type ConversationRepository interface {
	// WithTx runs fn as one atomic read-modify-write unit. Rows read through
	// the ConversationTx are locked until fn returns.
	WithTx(ctx context.Context, fn func(tx ConversationTx) error) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	FindConversationByPair(ctx context.Context, a, b string) (*Conversation, error)
	// ListConversationsForUser returns every conversation uid participates in
	// that holds at least one message, newest activity first.
	ListConversationsForUser(ctx context.Context, uid string) ([]*Conversation, error)
	// ListMessages returns the newest limit messages, oldest first.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	GetMessage(ctx context.Context, conversationID, messageID string) (*Message, error)
}

// ConversationTx is the transactional view handed to WithTx callbacks.
type ConversationTx interface {
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// FindConversationByPair returns (nil, nil) when the pair has no conversation.
	FindConversationByPair(ctx context.Context, a, b string) (*Conversation, error)
	// InsertConversation returns ErrConflict if the pair already has one.
	InsertConversation(ctx context.Context, c *Conversation) error
	UpdateConversation(ctx context.Context, c *Conversation) error
	GetMessage(ctx context.Context, conversationID, messageID string) (*Message, error)
	// LatestVisibleMessage returns (nil, nil) when every message is deleted.
	LatestVisibleMessage(ctx context.Context, conversationID string) (*Message, error)
	InsertMessage(ctx context.Context, m *Message) error
	UpdateMessage(ctx context.Context, m *Message) error
}

// BlockRepository answers block-list queries.
type BlockRepository interface {
	// IsBlocked reports a block between a and b in either direction.
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

// ProfileRepository reads and updates user profile snapshots.
type ProfileRepository interface {
	GetProfile(ctx context.Context, uid string) (*Profile, error)
	SetOnlineStatus(ctx context.Context, uid string, online bool, at time.Time) error
}
