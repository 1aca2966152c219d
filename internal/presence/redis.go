package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"dmcore/internal/domain"
)

// Redis stores typing flags as expiring keys typing:<conversation>:<user>,
// shared by every process.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Tracker = (*Redis)(nil)

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func typingKey(conversationID, uid string) string {
	return "typing:" + conversationID + ":" + uid
}

func (r *Redis) SetTyping(ctx context.Context, conversationID, uid string, typing bool) error {
	key := typingKey(conversationID, uid)
	var err error
	if typing {
		err = r.client.Set(ctx, key, 1, r.ttl).Err()
	} else {
		err = r.client.Del(ctx, key).Err()
	}
	if err != nil {
		return fmt.Errorf("set typing: %w: %w", domain.ErrTransient, err)
	}
	return nil
}

func (r *Redis) Typing(ctx context.Context, conversationID string) (map[string]bool, error) {
	prefix := typingKey(conversationID, "")
	out := make(map[string]bool)
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out[strings.TrimPrefix(iter.Val(), prefix)] = true
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan typing: %w: %w", domain.ErrTransient, err)
	}
	return out, nil
}
