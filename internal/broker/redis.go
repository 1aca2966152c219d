package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"dmcore/internal/domain"
)

const channelPrefix = "dm:"

// Redis relays events through Redis Pub/Sub so every process sees every
// commit. Local subscribers are served by an embedded Memory broker fed from
// a single pattern subscription.
type Redis struct {
	client *redis.Client
	local  *Memory
	ps     *redis.PubSub
	log    *slog.Logger
	done   chan struct{}
}

var _ Broker = (*Redis)(nil)

// NewRedis subscribes to dm:* and starts relaying. It returns once Redis has
// confirmed the subscription.
func NewRedis(ctx context.Context, client *redis.Client, local *Memory, log *slog.Logger) (*Redis, error) {
	ps := client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis psubscribe: %w", err)
	}
	r := &Redis{
		client: client,
		local:  local,
		ps:     ps,
		log:    log,
		done:   make(chan struct{}),
	}
	go r.relay()
	return r, nil
}

func (r *Redis) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, channelPrefix+ev.Topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w: %w", ev.Topic, domain.ErrTransient, err)
	}
	return nil
}

func (r *Redis) Subscribe(topics ...string) *Subscription {
	return r.local.Subscribe(topics...)
}

func (r *Redis) relay() {
	defer close(r.done)
	for msg := range r.ps.Channel() {
		var ev domain.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			r.log.Warn("dropping malformed event", "channel", msg.Channel, "error", err)
			continue
		}
		_ = r.local.Publish(context.Background(), ev)
	}
}

// Close stops relaying. Local subscriptions stay open; their owners close
// them.
func (r *Redis) Close() error {
	err := r.ps.Close()
	<-r.done
	return err
}
