package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/feed"
	"fintrack/internal/store"
)

// ProfileUpdater persists profile changes. Implemented by services.Tracker.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error)
}

// ProfileView is the passthrough controller for the single profile row. It
// watches update events only (profile rows are never inserted or deleted in
// normal flow) and applies the event payload directly instead of refetching:
// the feed carries the full row.
type ProfileView struct {
	controller
	store   store.Querier
	updater ProfileUpdater
}

func NewProfileView(q store.Querier, broker *feed.Broker, updater ProfileUpdater) *ProfileView {
	p := &ProfileView{store: q, updater: updater}
	p.controller = controller{
		name:   "profile",
		broker: broker,
		tables: []feed.Table{feed.TableProfile},
		now:    time.Now,
	}
	p.controller.fetch = p.fetchView
	p.controller.onEvent = p.applyEvent
	return p
}

// View returns the current profile (nil before the first successful fetch)
// and the loading flag.
func (p *ProfileView) View() (*core.Profile, bool) {
	view, loading := p.snapshot()
	if view == nil {
		return nil, loading
	}
	return view.(*core.Profile), loading
}

// Update persists the changes and applies the stored row as the new view
// immediately; the update event from the feed then confirms it idempotently.
func (p *ProfileView) Update(ctx context.Context, profile core.Profile) (core.Profile, error) {
	if p.updater == nil {
		return core.Profile{}, fmt.Errorf("no profile updater configured")
	}
	stored, err := p.updater.UpdateProfile(ctx, profile)
	if err != nil {
		return core.Profile{}, err
	}
	row := stored
	p.install(stored.ID, &row)
	return stored, nil
}

func (p *ProfileView) fetchView(ctx context.Context, ownerID string) (any, error) {
	profile, err := p.store.ProfileByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &profile, nil
}

// applyEvent installs the event's row payload as the new view. Events without
// a payload, or of any kind other than update, are ignored.
func (p *ProfileView) applyEvent(ctx context.Context, ownerID string, ev feed.ChangeEvent) {
	if ev.Kind != feed.Update || len(ev.Row) == 0 {
		return
	}
	var profile core.Profile
	if err := json.Unmarshal(ev.Row, &profile); err != nil {
		slog.ErrorContext(ctx, "Malformed profile event payload",
			"owner_id", ownerID, "error", err)
		return
	}
	if profile.ID != ownerID {
		// owner-filtered upstream; a mismatched payload is a producer bug
		slog.WarnContext(ctx, "Profile event for wrong owner dropped",
			"owner_id", ownerID, "event_owner", profile.ID)
		return
	}
	p.install(ownerID, &profile)
}
