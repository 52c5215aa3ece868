package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus publishes envelopes as JSON on a single Redis pub/sub channel.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus wires the bus over a Redis client.
func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

var _ Bus = (*RedisBus)(nil)

// Publish emits the envelope on the channel.
func (b *RedisBus) Publish(ctx context.Context, source, detailType string, detail interface{}) error {
	env, err := NewEnvelope(source, detailType, detail)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", detailType, err)
	}
	return nil
}

// Subscribe consumes envelopes until the context ends. Malformed messages
// are logged and dropped.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(Envelope)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Msg("dropping malformed event envelope")
				continue
			}
			handler(env)
		}
	}
}
