package testutil

import (
	"sync"

	"anoa.com/studyhub/internal/broadcast"
	"anoa.com/studyhub/internal/channel"
)

// Broadcast is one call captured by a Recorder.
type Broadcast struct {
	Channel channel.Channel
	Event   string
	Payload broadcast.Payload
}

// Recorder is a synchronous broadcast.Broadcaster that keeps every call.
type Recorder struct {
	mu    sync.Mutex
	calls []Broadcast
}

func (r *Recorder) Broadcast(ch channel.Channel, event string, payload broadcast.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Broadcast{Channel: ch, Event: event, Payload: payload})
}

func (r *Recorder) Calls() []Broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Broadcast(nil), r.calls...)
}

// Named returns the calls for one event name.
func (r *Recorder) Named(event string) []Broadcast {
	var out []Broadcast
	for _, c := range r.Calls() {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
