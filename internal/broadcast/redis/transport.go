// Package redis carries broadcast envelopes over Redis Pub/Sub. The Redis
// channel name is the broadcast channel name, so any instance can
// subscribe to exactly the channels its clients asked for.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"anoa.com/studyhub/internal/broadcast"
	"anoa.com/studyhub/internal/channel"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const subscriberBuffer = 64

type Transport struct {
	client *goredis.Client
	log    zerolog.Logger
}

func NewTransport(client *goredis.Client, log zerolog.Logger) *Transport {
	return &Transport{client: client, log: log}
}

func (t *Transport) Publish(ctx context.Context, env broadcast.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := t.client.Publish(ctx, env.Channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", env.Channel, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, channels []channel.Channel) (<-chan broadcast.Envelope, func(), error) {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.String())
	}

	ctx, cancel := context.WithCancel(ctx)
	pubsub := t.client.Subscribe(ctx, names...)

	// Wait for the subscription confirmation so publishes made right after
	// Subscribe returns are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan broadcast.Envelope, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env broadcast.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					t.log.Warn().Err(err).Str("channel", msg.Channel).Msg("failed to decode envelope")
					continue
				}
				select {
				case out <- env:
				default:
					t.log.Debug().Str("channel", msg.Channel).Msg("subscriber too slow, dropping envelope")
				}
			}
		}
	}()

	return out, cancel, nil
}
