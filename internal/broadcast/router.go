package broadcast

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout   = 3 * time.Second
	DefaultQueueSize = 1024
)

type Options struct {
	Timeout   time.Duration
	QueueSize int
}

// Router queues events and hands them to the transport from a single
// goroutine, so events on one channel leave in call order.
type Router struct {
	transport Transport
	timeout   time.Duration
	log       zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan Envelope
	started atomic.Bool
	done    chan struct{}
}

func NewRouter(transport Transport, opts Options, log zerolog.Logger) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Router{
		transport: transport,
		timeout:   opts.Timeout,
		log:       log,
		queue:     make(chan Envelope, opts.QueueSize),
		done:      make(chan struct{}),
	}
}

// Broadcast never blocks and never reports failure. A full queue or an
// invalid payload drops the event with a log line.
func (r *Router) Broadcast(ch channel.Channel, event string, payload Payload) {
	if err := ValidatePayload(payload); err != nil {
		r.log.Error().Err(err).Str("channel", ch.String()).Str("event", event).Msg("dropping broadcast")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn().Str("channel", ch.String()).Str("event", event).Msg("router closed, dropping broadcast")
		return
	}

	select {
	case r.queue <- NewEnvelope(ch, event, payload):
	default:
		r.log.Warn().Str("channel", ch.String()).Str("event", event).Msg("broadcast queue full, dropping event")
	}
}

// Run drains the queue until ctx ends or Close is called. Only the first
// call does any work.
func (r *Router) Run(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-r.queue:
			if !ok {
				return
			}
			r.deliver(env)
		}
	}
}

// Close stops accepting events and delivers whatever is still queued.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	if r.started.Load() {
		<-r.done
	}
	for env := range r.queue {
		r.deliver(env)
	}
}

func (r *Router) deliver(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.publish(ctx, env); err != nil {
		r.log.Warn().Err(err).
			Str("channel", env.Channel).
			Str("event", env.Event).
			Msg("broadcast failed")
	}
}

func (r *Router) publish(ctx context.Context, env Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", apperror.ErrTransport, rec)
		}
	}()

	if err := r.transport.Publish(ctx, env); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrTransport, err)
	}
	return nil
}
