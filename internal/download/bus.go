package download

import (
	"sync"

	"shardd/pkg/types"
)

// ProgressFunc receives progress for a shard's acquisition.
type ProgressFunc func(shard types.Shard, ev types.ProgressEvent)

type subscriber struct {
	name string
	fn   ProgressFunc
}

// Bus fans progress events out to named subscribers. Delivery is synchronous
// and in registration order; callbacks must not block for long.
type Bus struct {
	mu   sync.Mutex
	subs []subscriber
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{} }

// Register adds fn under name. Registering an existing name replaces its
// callback and keeps its position.
func (b *Bus) Register(name string, fn ProgressFunc) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subs {
		if b.subs[i].name == name {
			b.subs[i].fn = fn
			return
		}
	}
	b.subs = append(b.subs, subscriber{name: name, fn: fn})
}

// Unregister removes the subscriber registered under name, if any.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subs {
		if b.subs[i].name == name {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Names lists subscribers in delivery order.
func (b *Bus) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.subs))
	for i, s := range b.subs {
		out[i] = s.name
	}
	return out
}

// Publish delivers ev to every subscriber registered at the time of the call.
func (b *Bus) Publish(shard types.Shard, ev types.ProgressEvent) {
	b.mu.Lock()
	snapshot := make([]subscriber, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()
	for _, s := range snapshot {
		s.fn(shard, ev)
	}
}
