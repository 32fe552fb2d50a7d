package feed

import (
	"context"
	"sync"
)

// subscriptionBuffer bounds the per-subscription event queue. A full buffer
// already guarantees a pending refresh, so further events can be coalesced
// without losing the fact that the data changed.
const subscriptionBuffer = 16

// Broker is the in-process change feed. Events published for a table fan out
// to every subscription matching both the table and the owner; cross-owner
// delivery never happens.
type Broker struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one owner-scoped stream of change events for a single
// table. Close releases it synchronously: after Close returns no further
// event is delivered and the channel is closed.
type Subscription struct {
	table   Table
	ownerID string
	events  chan ChangeEvent
	broker  *Broker
	once    sync.Once
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe opens a stream of change events for one table and one owner.
func (b *Broker) Subscribe(table Table, ownerID string) *Subscription {
	sub := &Subscription{
		table:   table,
		ownerID: ownerID,
		events:  make(chan ChangeEvent, subscriptionBuffer),
		broker:  b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.events)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish fans the event out to matching subscriptions. Delivery is
// non-blocking: when a subscriber's buffer is full the event is coalesced
// into the ones already pending.
func (b *Broker) Publish(_ context.Context, ev ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.table != ev.Table || sub.ownerID != ev.OwnerID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
		}
	}
	return nil
}

// Close releases every open subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.events)
	}
	b.subs = make(map[*Subscription]struct{})
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.events)
	}
}

// Events returns the stream. The channel is closed when the subscription or
// the broker is closed.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Table returns the table this subscription is bound to.
func (s *Subscription) Table() Table {
	return s.table
}

// Close detaches the subscription from the broker and closes the stream.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}
