// Package feed carries row-change notifications from the record store to the
// live view controllers. A subscription is a stream of change events for one
// table and one owner; delivery is at-least-once and consumers are expected to
// react with an idempotent refresh.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	TableExpense Table = "expense"
	TableIncome  Table = "income"
	TableBudget  Table = "budget"
	TableProfile Table = "profile"
)

const (
	Insert Kind = "insert"
	Update Kind = "update"
	Delete Kind = "delete"
)

type (
	// Table names a record collection in the store.
	Table string

	// Kind is the row-change event type.
	Kind string

	// ChangeEvent describes one row-level change. Row carries the full new
	// row for inserts and updates when the producer has it; it is empty for
	// deletes.
	ChangeEvent struct {
		Table     Table           `json:"table"`
		Kind      Kind            `json:"kind"`
		OwnerID   string          `json:"owner_id"`
		Row       json.RawMessage `json:"row,omitempty"`
		Timestamp time.Time       `json:"timestamp"`
	}

	// Publisher is the write side of the feed.
	Publisher interface {
		Publish(ctx context.Context, ev ChangeEvent) error
	}
)

// MultiPublisher fans a change event out to several publishers, typically
// the in-process broker plus the AMQP relay.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev ChangeEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewChangeEvent stamps an event with the current time.
func NewChangeEvent(table Table, kind Kind, ownerID string, row json.RawMessage) ChangeEvent {
	return ChangeEvent{
		Table:     table,
		Kind:      kind,
		OwnerID:   ownerID,
		Row:       row,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes for transport.
func (ev ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(ev)
}

// ChangeEventFromJSON decodes an event from JSON bytes.
func ChangeEventFromJSON(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, err
	}
	return ev, nil
}
