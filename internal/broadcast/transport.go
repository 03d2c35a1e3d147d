// Package broadcast delivers transient real-time events to channels. It is
// best-effort: nothing here can fail or roll back the write that produced
// an event.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"anoa.com/studyhub/internal/channel"
)

// Payload is a flat map of primitive values.
type Payload map[string]any

// Envelope is the wire shape seen by subscribers.
type Envelope struct {
	Channel string    `json:"channel"`
	Event   string    `json:"event"`
	Payload Payload   `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

func NewEnvelope(ch channel.Channel, event string, payload Payload) Envelope {
	return Envelope{
		Channel: ch.String(),
		Event:   event,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}
}

// Transport publishes one envelope to an external real-time system.
type Transport interface {
	Publish(ctx context.Context, env Envelope) error
}

// Subscriber streams envelopes published on the given channels until the
// returned cancel func is called or ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []channel.Channel) (<-chan Envelope, func(), error)
}

// Broadcaster is the fire-and-forget entry point used by services.
type Broadcaster interface {
	Broadcast(ch channel.Channel, event string, payload Payload)
}

// ValidatePayload rejects nested values.
func ValidatePayload(p Payload) error {
	for k, v := range p {
		switch v.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("payload field %q has non-primitive type %T", k, v)
		}
	}
	return nil
}
