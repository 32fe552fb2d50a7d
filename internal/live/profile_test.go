package live

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/feed"
)

// storeUpdater adapts the test store to the ProfileUpdater port.
type storeUpdater struct{ s *flakyStore }

func (u storeUpdater) UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	return u.s.UpsertProfile(ctx, p)
}

func TestProfileViewActivate(t *testing.T) {
	fs := newFlakyStore()
	ctx := context.Background()
	fs.UpsertProfile(ctx, core.Profile{ID: "alice", Email: "alice@example.com", MonthlyGoal: core.Money{Cents: 50000}})

	b := feed.NewBroker()
	defer b.Close()

	p := NewProfileView(fs, b, storeUpdater{fs})
	if err := p.Activate(ctx, "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer p.Deactivate()

	view, loading := p.View()
	if loading || view == nil {
		t.Fatalf("expected a loaded view, got %v (loading=%v)", view, loading)
	}
	if view.Email != "alice@example.com" || view.MonthlyGoal.Cents != 50000 {
		t.Fatalf("unexpected profile: %+v", view)
	}
}

func TestProfileViewMissingRowIsAnError(t *testing.T) {
	fs := newFlakyStore()
	b := feed.NewBroker()
	defer b.Close()

	p := NewProfileView(fs, b, storeUpdater{fs})
	if err := p.Activate(context.Background(), "ghost"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer p.Deactivate()

	// Unlike the dashboard, the profile view has nothing to show without
	// its row.
	if err := p.Err(); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	view, _ := p.View()
	if view != nil {
		t.Fatalf("expected nil view, got %+v", view)
	}
}

func TestProfileViewAppliesEventPayloadWithoutRefetch(t *testing.T) {
	fs := newFlakyStore()
	ctx := context.Background()
	fs.UpsertProfile(ctx, core.Profile{ID: "alice", Email: "old@example.com"})

	b := feed.NewBroker()
	defer b.Close()

	p := NewProfileView(fs, b, storeUpdater{fs})
	if err := p.Activate(ctx, "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer p.Deactivate()

	// Take the store down: the update must come entirely from the payload.
	fs.setFail(errors.New("store down"))

	updated := core.Profile{ID: "alice", Email: "new@example.com", MonthlyGoal: core.Money{Cents: 70000}}
	row, _ := json.Marshal(updated)
	b.Publish(ctx, feed.NewChangeEvent(feed.TableProfile, feed.Update, "alice", row))

	waitFor(t, func() bool {
		view, _ := p.View()
		return view != nil && view.Email == "new@example.com"
	})
	view, _ := p.View()
	if view.MonthlyGoal.Cents != 70000 {
		t.Fatalf("payload not fully applied: %+v", view)
	}
}

func TestProfileViewIgnoresNonUpdateAndMalformedEvents(t *testing.T) {
	fs := newFlakyStore()
	ctx := context.Background()
	fs.UpsertProfile(ctx, core.Profile{ID: "alice", Email: "keep@example.com"})

	b := feed.NewBroker()
	defer b.Close()

	p := NewProfileView(fs, b, storeUpdater{fs})
	if err := p.Activate(ctx, "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer p.Deactivate()

	other := core.Profile{ID: "bob", Email: "bob@example.com"}
	otherRow, _ := json.Marshal(other)

	b.Publish(ctx, feed.NewChangeEvent(feed.TableProfile, feed.Insert, "alice", nil))
	b.Publish(ctx, feed.NewChangeEvent(feed.TableProfile, feed.Update, "alice", []byte("not json")))
	b.Publish(ctx, feed.NewChangeEvent(feed.TableProfile, feed.Update, "alice", otherRow))

	time.Sleep(50 * time.Millisecond)
	view, _ := p.View()
	if view == nil || view.Email != "keep@example.com" {
		t.Fatalf("view should be untouched, got %+v", view)
	}
}

func TestProfileViewUpdate(t *testing.T) {
	fs := newFlakyStore()
	ctx := context.Background()
	fs.UpsertProfile(ctx, core.Profile{ID: "alice", Email: "old@example.com"})

	b := feed.NewBroker()
	defer b.Close()

	p := NewProfileView(fs, b, storeUpdater{fs})
	if err := p.Activate(ctx, "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer p.Deactivate()

	stored, err := p.Update(ctx, core.Profile{ID: "alice", Email: "new@example.com", MonthlyGoal: core.Money{Cents: 30000}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if stored.UpdatedAt.IsZero() {
		t.Fatalf("expected stored timestamps, got %+v", stored)
	}

	// The new row is visible immediately, before any feed round trip.
	view, _ := p.View()
	if view == nil || view.Email != "new@example.com" || view.MonthlyGoal.Cents != 30000 {
		t.Fatalf("update not installed: %+v", view)
	}

	persisted, err := fs.ProfileByID(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if persisted.Email != "new@example.com" {
		t.Fatalf("update not persisted: %+v", persisted)
	}
}
