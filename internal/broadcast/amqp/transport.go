// Package amqp publishes broadcast envelopes to a RabbitMQ topic exchange
// using the channel name as routing key.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"anoa.com/studyhub/internal/broadcast"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const exchangeKind = "topic"

type Transport struct {
	conn     *amqp.Connection
	exchange string
	log      zerolog.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// Dial connects, opens a channel and declares the durable topic exchange.
func Dial(url, exchange string, log zerolog.Logger) (*Transport, error) {
	log.Info().Str("exchange", exchange).Msg("connecting to RabbitMQ")
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp server: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		exchangeKind, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Transport{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

func (t *Transport) Publish(ctx context.Context, env broadcast.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err = t.ch.PublishWithContext(ctx,
		t.exchange,  // exchange
		env.Channel, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Type:         env.Event,
			Timestamp:    env.SentAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", env.Channel, err)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ch.Close(); err != nil {
		t.log.Warn().Err(err).Msg("failed to close amqp channel")
	}
	return t.conn.Close()
}
