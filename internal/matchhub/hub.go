// Package matchhub implements the subscriber fan-out (C8): a per-match
// registry of live SSE subscribers that never blocks a producer — a
// mutex-protected map of per-subscriber channels with a non-blocking send,
// and a hard "slow consumer" eviction instead of a silent per-event drop.
package matchhub

import (
	"sync"

	"github.com/wbarena/arena/internal/contracts"
	prommetrics "github.com/wbarena/arena/internal/metrics/prometheus"
)

// subscriberBuffer bounds each subscriber's pending-event channel. Chosen
// generously relative to a single match's turn cadence so a briefly slow
// HTTP flush does not trip eviction under normal load.
const subscriberBuffer = 256

// Subscription is a live handle a caller (the SSE handler in internal/api)
// reads from until Done fires. A Subscription delivers only events
// appended after it was created; replay of already-persisted events is the
// caller's responsibility, sourced from internal/eventlog.
type Subscription struct {
	id      uint64
	matchID string
	events  chan contracts.MatchEvent
	done    chan struct{}
	once    sync.Once
	dropped bool
}

// Events is the channel of live events for this subscription's match. It is
// closed when the subscription ends, whether by Unsubscribe or by eviction.
func (s *Subscription) Events() <-chan contracts.MatchEvent { return s.events }

// Done closes when the subscription has ended. Check Dropped after Done
// closes to distinguish a clean unsubscribe from a slow-consumer eviction.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped reports whether this subscription ended because its buffer filled
// (a "slow consumer" eviction) rather than a clean unsubscribe.
// Only meaningful after Done has closed.
func (s *Subscription) Dropped() bool { return s.dropped }

func (s *Subscription) close(dropped bool) {
	s.once.Do(func() {
		s.dropped = dropped
		close(s.done)
		close(s.events)
	})
}

// Hub is the process-wide subscriber registry, one entry set per match_id.
// All methods are safe for concurrent use; Publish never blocks regardless
// of subscriber behavior.
type Hub struct {
	mu     sync.Mutex
	byMatch map[string]map[uint64]*Subscription
	nextID  uint64
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{byMatch: make(map[string]map[uint64]*Subscription)}
}

// Subscribe registers a new live subscriber for matchID. The caller is
// responsible for calling Unsubscribe once done (typically via defer) to
// release the registry entry and decrement the subscriber gauge.
func (h *Hub) Subscribe(matchID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:      h.nextID,
		matchID: matchID,
		events:  make(chan contracts.MatchEvent, subscriberBuffer),
		done:    make(chan struct{}),
	}
	if h.byMatch[matchID] == nil {
		h.byMatch[matchID] = make(map[uint64]*Subscription)
	}
	h.byMatch[matchID][sub.id] = sub
	prommetrics.RecordSubscriberConnected()
	return sub
}

// Unsubscribe removes sub from the registry and closes its channel. Safe to
// call more than once or after an eviction; it is a no-op if sub is already
// gone.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	removed := h.remove(sub)
	h.mu.Unlock()

	sub.close(false)
	if removed {
		prommetrics.RecordSubscriberDisconnected()
	}
}

// remove deletes sub from the registry under lock and reports whether it was
// still present (so callers don't double-count the disconnect gauge for an
// already-evicted subscriber).
func (h *Hub) remove(sub *Subscription) bool {
	subs, ok := h.byMatch[sub.matchID]
	if !ok {
		return false
	}
	if _, present := subs[sub.id]; !present {
		return false
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.byMatch, sub.matchID)
	}
	return true
}

// Publish fans ev out to every live subscriber of ev.MatchID. A subscriber
// whose buffer is already full is evicted immediately with Dropped() set,
//'s "slow consumer" contract — the hub never blocks a
// producer waiting on a stalled reader.
func (h *Hub) Publish(ev contracts.MatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.byMatch[ev.MatchID]
	for id, sub := range subs {
		select {
		case sub.events <- ev:
		default:
			delete(subs, id)
			prommetrics.RecordSubscriberDisconnected()
			prommetrics.RecordSubscriberDropped()
			sub.close(true)
		}
	}
	if len(subs) == 0 {
		delete(h.byMatch, ev.MatchID)
	}
}

// SubscriberCount reports the number of live subscribers for matchID, for
// tests and diagnostics.
func (h *Hub) SubscriberCount(matchID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byMatch[matchID])
}
