package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anoa.com/studyhub/internal/channel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type recordingTransport struct {
	mu   sync.Mutex
	envs []Envelope
	fail func(Envelope) error
}

func (t *recordingTransport) Publish(ctx context.Context, env Envelope) error {
	if t.fail != nil {
		if err := t.fail(env); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.envs = append(t.envs, env)
	return nil
}

func (t *recordingTransport) events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.envs))
	for _, env := range t.envs {
		out = append(out, env.Event)
	}
	return out
}

type transportFunc func(ctx context.Context, env Envelope) error

func (f transportFunc) Publish(ctx context.Context, env Envelope) error { return f(ctx, env) }

func TestRouterPreservesCallOrder(t *testing.T) {
	tr := &recordingTransport{}
	r := NewRouter(tr, Options{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	ch := channel.Group(uuid.New())
	want := []string{"a", "b", "c", "d", "e"}
	for _, ev := range want {
		r.Broadcast(ch, ev, Payload{"content": ev})
	}
	r.Close()

	got := tr.events()
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
}

func TestRouterCloseWithoutRunDrains(t *testing.T) {
	tr := &recordingTransport{}
	r := NewRouter(tr, Options{QueueSize: 4}, zerolog.Nop())

	r.Broadcast(channel.User(uuid.New()), "notification", Payload{"id": "1"})
	r.Close()

	if got := tr.events(); len(got) != 1 {
		t.Fatalf("delivered %v, want one event", got)
	}

	// Broadcast after close is dropped, not a panic.
	r.Broadcast(channel.User(uuid.New()), "notification", nil)
	r.Close()
}

func TestRouterDropsWhenQueueFull(t *testing.T) {
	tr := &recordingTransport{}
	r := NewRouter(tr, Options{QueueSize: 2}, zerolog.Nop())

	ch := channel.Group(uuid.New())
	for i := 0; i < 5; i++ {
		r.Broadcast(ch, "new-message", Payload{"n": i})
	}
	r.Close()

	if got := tr.events(); len(got) != 2 {
		t.Fatalf("delivered %d events, want 2", len(got))
	}
}

func TestRouterRejectsNestedPayload(t *testing.T) {
	tr := &recordingTransport{}
	r := NewRouter(tr, Options{}, zerolog.Nop())

	ch := channel.Group(uuid.New())
	r.Broadcast(ch, "nested", Payload{"user": map[string]any{"id": "x"}})
	r.Broadcast(ch, "list", Payload{"ids": []string{"x"}})
	r.Broadcast(ch, "flat", Payload{"id": "x", "count": 2, "ok": true, "ratio": 0.5, "none": nil})
	r.Close()

	got := tr.events()
	if len(got) != 1 || got[0] != "flat" {
		t.Fatalf("delivered %v, want [flat]", got)
	}
}

func TestRouterSwallowsTransportFailures(t *testing.T) {
	var mu sync.Mutex
	var delivered []string

	tr := transportFunc(func(ctx context.Context, env Envelope) error {
		switch env.Event {
		case "boom":
			panic("transport exploded")
		case "fail":
			return errors.New("unreachable")
		}
		mu.Lock()
		delivered = append(delivered, env.Event)
		mu.Unlock()
		return nil
	})
	r := NewRouter(tr, Options{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	ch := channel.Group(uuid.New())
	r.Broadcast(ch, "boom", nil)
	r.Broadcast(ch, "fail", nil)
	r.Broadcast(ch, "after", nil)
	r.Close()

	if len(delivered) != 1 || delivered[0] != "after" {
		t.Fatalf("delivered %v, want [after]", delivered)
	}
}

func TestRouterBoundsPublishTime(t *testing.T) {
	tr := transportFunc(func(ctx context.Context, env Envelope) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r := NewRouter(tr, Options{Timeout: 20 * time.Millisecond}, zerolog.Nop())

	r.Broadcast(channel.Group(uuid.New()), "slow", nil)

	start := time.Now()
	r.Close()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Close took %s, publish timeout not applied", elapsed)
	}
}

func TestMultiPublishesToAll(t *testing.T) {
	a := &recordingTransport{}
	b := &recordingTransport{fail: func(Envelope) error { return errors.New("down") }}
	c := &recordingTransport{}

	err := Multi{a, b, c}.Publish(context.Background(), NewEnvelope(channel.User(uuid.New()), "notification", nil))
	if err == nil {
		t.Fatal("expected joined error from failing transport")
	}
	if len(a.events()) != 1 || len(c.events()) != 1 {
		t.Fatal("healthy transports should still receive the envelope")
	}
}
