package live

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/feed"
	"fintrack/internal/store"
)

// Registry hands out activated controllers per owner, creating each one
// lazily on first use. Every controller stays live (subscribed) until the
// registry closes, so repeated reads see fresh views without re-fetching.
type Registry struct {
	store   store.Querier
	broker  *feed.Broker
	updater ProfileUpdater

	mu         sync.Mutex
	dashboards map[string]*Dashboard
	analytics  map[string]*Analytics
	profiles   map[string]*ProfileView
}

func NewRegistry(q store.Querier, broker *feed.Broker, updater ProfileUpdater) *Registry {
	return &Registry{
		store:      q,
		broker:     broker,
		updater:    updater,
		dashboards: make(map[string]*Dashboard),
		analytics:  make(map[string]*Analytics),
		profiles:   make(map[string]*ProfileView),
	}
}

// Dashboard returns the owner's dashboard controller, activating it on first
// use.
func (r *Registry) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.dashboards[ownerID]; ok {
		return d, nil
	}
	d := NewDashboard(r.store, r.broker)
	if err := d.Activate(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("activate dashboard: %w", err)
	}
	r.dashboards[ownerID] = d
	return d, nil
}

// Analytics returns the owner's analytics controller for the timeframe,
// activating it on first use. Each timeframe gets its own controller.
func (r *Registry) Analytics(ctx context.Context, ownerID string, tf core.Timeframe) (*Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ownerID + "|" + string(tf)
	if a, ok := r.analytics[key]; ok {
		return a, nil
	}
	a, err := NewAnalytics(r.store, r.broker, tf)
	if err != nil {
		return nil, err
	}
	if err := a.Activate(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("activate analytics: %w", err)
	}
	r.analytics[key] = a
	return a, nil
}

// Profile returns the owner's profile controller, activating it on first use.
func (r *Registry) Profile(ctx context.Context, ownerID string) (*ProfileView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.profiles[ownerID]; ok {
		return p, nil
	}
	p := NewProfileView(r.store, r.broker, r.updater)
	if err := p.Activate(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("activate profile view: %w", err)
	}
	r.profiles[ownerID] = p
	return p, nil
}

// Close deactivates every controller the registry handed out.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.dashboards {
		d.Deactivate()
	}
	for _, a := range r.analytics {
		a.Deactivate()
	}
	for _, p := range r.profiles {
		p.Deactivate()
	}
	r.dashboards = make(map[string]*Dashboard)
	r.analytics = make(map[string]*Analytics)
	r.profiles = make(map[string]*ProfileView)
}
