package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"dmcore/internal/domain"
)

// Notifier hands a newly sent message to the push dispatcher. It is invoked
// once per successful send and never for any other operation.
type Notifier interface {
	MessageSent(ctx context.Context, conv *domain.Conversation, msg *domain.Message, recipient string) error
}

// LogNotifier only records the hand-off.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) MessageSent(_ context.Context, conv *domain.Conversation, msg *domain.Message, recipient string) error {
	n.log.Debug("push notification",
		"conversation_id", conv.ID,
		"message_id", msg.ID,
		"recipient", recipient,
	)
	return nil
}

const previewRunes = 120

// PushJob is the payload queued for the external dispatcher.
type PushJob struct {
	RecipientID    string    `json:"recipientId"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Preview        string    `json:"preview"`
	At             time.Time `json:"at"`
}

// RedisPushQueue pushes jobs onto a Redis list consumed by the dispatcher.
type RedisPushQueue struct {
	client *redis.Client
	key    string
}

func NewRedisPushQueue(client *redis.Client, key string) *RedisPushQueue {
	return &RedisPushQueue{client: client, key: key}
}

func (q *RedisPushQueue) MessageSent(ctx context.Context, conv *domain.Conversation, msg *domain.Message, recipient string) error {
	job := PushJob{
		RecipientID:    recipient,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		Preview:        preview(msg.Text),
		At:             msg.Timestamp,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode push job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue push job: %w: %w", domain.ErrTransient, err)
	}
	return nil
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes-1]) + "…"
}
