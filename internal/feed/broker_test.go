package feed

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ChangeEvent{}
}

func assertEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestBrokerDeliversToMatchingSubscription(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.Subscribe(TableExpense, "u1")
	defer sub.Close()

	ev := NewChangeEvent(TableExpense, Insert, "u1", nil)
	if err := b.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := recv(t, sub)
	if got.Table != TableExpense || got.Kind != Insert || got.OwnerID != "u1" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestBrokerFiltersByOwner(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	subA := b.Subscribe(TableExpense, "alice")
	subB := b.Subscribe(TableExpense, "bob")
	defer subA.Close()
	defer subB.Close()

	b.Publish(context.Background(), NewChangeEvent(TableExpense, Insert, "bob", nil))

	assertEmpty(t, subA)
	got := recv(t, subB)
	if got.OwnerID != "bob" {
		t.Fatalf("expected bob's event, got %+v", got)
	}
}

func TestBrokerFiltersByTable(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	expenses := b.Subscribe(TableExpense, "u1")
	budgets := b.Subscribe(TableBudget, "u1")
	defer expenses.Close()
	defer budgets.Close()

	b.Publish(context.Background(), NewChangeEvent(TableBudget, Update, "u1", nil))

	assertEmpty(t, expenses)
	got := recv(t, budgets)
	if got.Table != TableBudget {
		t.Fatalf("expected budget event, got %+v", got)
	}
}

func TestBrokerCoalescesWhenBufferFull(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.Subscribe(TableExpense, "u1")
	defer sub.Close()

	// Publish more events than the buffer holds; the overflow must drop
	// rather than block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer*2; i++ {
			b.Publish(context.Background(), NewChangeEvent(TableExpense, Insert, "u1", nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscription buffer")
	}

	// At least one event must still be pending.
	recv(t, sub)
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.Subscribe(TableExpense, "u1")
	sub.Close()
	sub.Close() // safe to call twice

	b.Publish(context.Background(), NewChangeEvent(TableExpense, Insert, "u1", nil))

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel after Close")
	}
}

func TestBrokerCloseClosesAllSubscriptions(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(TableExpense, "u1")
	b.Close()

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel after broker close")
	}

	// Subscribing after close yields an already-closed stream.
	late := b.Subscribe(TableIncome, "u1")
	if _, ok := <-late.Events(); ok {
		t.Fatal("expected closed channel for late subscription")
	}
}

func TestChangeEventJSONRoundTrip(t *testing.T) {
	ev := NewChangeEvent(TableProfile, Update, "u1", []byte(`{"id":"u1"}`))
	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ChangeEventFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Table != ev.Table || back.Kind != ev.Kind || back.OwnerID != ev.OwnerID {
		t.Fatalf("round trip mismatch: %+v", back)
	}
	if string(back.Row) != `{"id":"u1"}` {
		t.Fatalf("row payload mismatch: %s", back.Row)
	}

	if _, err := ChangeEventFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, ChangeEvent) error { return f.err }

func TestMultiPublisherCollectsErrors(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	sub := b.Subscribe(TableExpense, "u1")
	defer sub.Close()

	sentinel := errors.New("relay down")
	multi := MultiPublisher{b, failingPublisher{err: sentinel}}

	err := multi.Publish(context.Background(), NewChangeEvent(TableExpense, Insert, "u1", nil))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected relay error, got %v", err)
	}

	// The healthy publisher still delivered.
	recv(t, sub)
}
