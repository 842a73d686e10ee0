package sdk

import (
	"sync"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
)

// broadcaster fans out every successfully joined delta to whichever
// subscribers watch a prefix it touches: an in-process publisher/
// subscriber pair specialized to one document and to Go channels
// instead of topic strings, since a document's local subscribers are
// always Doc.Subscribe callers. Cross-process fan-out goes through
// redisRelay instead, over the same Causal wire format.
type broadcaster struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]subscription
}

type subscription struct {
	prefix []crdtpath.Label
	ch     chan causal.Causal
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]subscription)}
}

// subscribe registers a new watcher of prefix and returns its channel
// together with an unsubscribe function. The channel is buffered; once a
// subscriber's buffer is full, each new notification for it is dropped
// rather than stalling the publisher, and the pending ones are kept.
func (b *broadcaster) subscribe(prefix []crdtpath.Label) (<-chan causal.Causal, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan causal.Causal, 16)
	b.subs[id] = subscription{prefix: append([]crdtpath.Label(nil), prefix...), ch: ch}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			close(s.ch)
			delete(b.subs, id)
		}
	}
	return ch, cancel
}

// publish delivers the subset of c relevant to each subscriber's prefix.
func (b *broadcaster) publish(c causal.Causal) {
	if c.IsEmpty() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		filtered := filterCausal(c, s.prefix)
		if filtered.IsEmpty() {
			continue
		}
		select {
		case s.ch <- filtered:
		default:
			logger.Warnw("dropping delta notification for slow subscriber")
		}
	}
}

// closeAll tears down every live subscription, for Doc.close.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}

// filterCausal keeps only the stored paths under prefix. Expired entries
// carry no path, so they are forwarded unfiltered, to every subscriber,
// by the time a tombstone hash reaches here the store no longer has the
// path it names to filter against.
func filterCausal(c causal.Causal, prefix []crdtpath.Label) causal.Causal {
	if len(prefix) == 0 {
		return c
	}
	var out causal.Causal
	for _, p := range c.Store {
		if p.HasPrefix(prefix) {
			out.Store = append(out.Store, p)
		}
	}
	out.Expired = append(out.Expired, c.Expired...)
	return out
}
