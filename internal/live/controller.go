// Package live maintains the derived read models. Each controller owns one
// view for exactly one owner at a time: it runs an initial fetch-and-compute
// pass on activation, keeps one change subscription per upstream table, and
// recomputes the whole view whenever any of those tables changes. Consumers
// read the current view and a loading flag; a failed refresh never clears a
// previously computed view.
package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/feed"
)

var (
	// ErrActive is returned when Activate is called for a different owner
	// while the controller is still bound to the previous one. Deactivate
	// must run first so no stale subscription can leak across identities.
	ErrActive = errors.New("controller already active for another owner")

	// ErrInactive is returned by Refresh on a controller with no owner.
	ErrInactive = errors.New("controller not active")

	ErrEmptyOwner = errors.New("empty owner id")
)

// controller is the lifecycle shared by the three view controllers. V is the
// derived view type. The concrete controller supplies fetch (the full
// fetch-and-compute pass) and optionally onEvent (the per-event reaction,
// defaulting to a refresh).
//
// Activate/Deactivate are lifecycle calls and must not race each other;
// View, Err and Refresh are safe from any goroutine.
type controller struct {
	name   string
	broker *feed.Broker
	tables []feed.Table
	now    func() time.Time

	fetch   func(ctx context.Context, ownerID string) (any, error)
	onEvent func(ctx context.Context, ownerID string, ev feed.ChangeEvent)

	mu      sync.Mutex
	ownerID string
	active  bool
	loading bool
	lastErr error
	seq     uint64
	view    any
	cancel  context.CancelFunc
	subs    []*feed.Subscription
	wg      sync.WaitGroup
}

// Activate binds the controller to an owner: one initial fetch-and-compute
// pass, then one open subscription per relevant table. Calling it again for
// the same owner is a no-op; for a different owner it fails with ErrActive.
// The initial pass is fail-soft: its error is recorded, not returned.
func (c *controller) Activate(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return ErrEmptyOwner
	}

	c.mu.Lock()
	if c.active {
		same := c.ownerID == ownerID
		c.mu.Unlock()
		if same {
			return nil
		}
		return ErrActive
	}
	c.active = true
	c.ownerID = ownerID
	c.loading = true
	c.lastErr = nil
	c.view = nil

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.subs = make([]*feed.Subscription, 0, len(c.tables))
	for _, table := range c.tables {
		c.subs = append(c.subs, c.broker.Subscribe(table, ownerID))
	}
	subs := c.subs
	c.mu.Unlock()

	if err := c.refresh(ctx, ownerID); err != nil {
		slog.ErrorContext(ctx, "Initial fetch failed",
			"controller", c.name, "owner_id", ownerID, "error", err)
	}

	for _, sub := range subs {
		c.wg.Add(1)
		go c.consume(loopCtx, sub, ownerID)
	}
	return nil
}

// Deactivate releases every subscription and waits for the event loops to
// exit before returning, so no refresh attributable to the released owner can
// fire afterwards. Idempotent.
func (c *controller) Deactivate() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.seq++ // any in-flight pass is now stale and will not install
	subs := c.subs
	c.subs = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	cancel()
	c.wg.Wait()
}

// Refresh forces a fetch-and-compute pass for the current owner.
func (c *controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrInactive
	}
	ownerID := c.ownerID
	c.mu.Unlock()
	return c.refresh(ctx, ownerID)
}

// Err returns the most recent refresh error, or nil after a clean pass.
func (c *controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *controller) consume(ctx context.Context, sub *feed.Subscription, ownerID string) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			slog.DebugContext(ctx, "Change event received",
				"controller", c.name, "table", ev.Table, "kind", ev.Kind)
			c.onEvent(ctx, ownerID, ev)
		}
	}
}

// refreshOnEvent is the default event reaction: every row-level change on a
// subscribed table triggers exactly one full refresh. Duplicate events cost a
// redundant pass, never a corrupted view.
func (c *controller) refreshOnEvent(ctx context.Context, ownerID string, _ feed.ChangeEvent) {
	if err := c.refresh(ctx, ownerID); err != nil {
		slog.ErrorContext(ctx, "Refresh after change event failed",
			"controller", c.name, "owner_id", ownerID, "error", err)
	}
}

// refresh runs one fetch-and-compute pass. Passes are stamped with a
// generation at start; a pass that is no longer the newest by the time it
// completes is dropped, so an older read can never overwrite a newer view.
func (c *controller) refresh(ctx context.Context, ownerID string) error {
	c.mu.Lock()
	if !c.active || c.ownerID != ownerID {
		c.mu.Unlock()
		return nil
	}
	c.seq++
	gen := c.seq
	c.mu.Unlock()

	view, err := c.fetch(ctx, ownerID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.ownerID != ownerID || gen != c.seq {
		return nil
	}
	c.loading = false
	if err != nil {
		// previous view stays in place: stale-but-present beats empty
		c.lastErr = err
		return err
	}
	c.lastErr = nil
	c.view = view
	return nil
}

// install replaces the view outside a fetch pass, used where an event payload
// already carries the full row. Follows the same generation discipline.
func (c *controller) install(ownerID string, view any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.ownerID != ownerID {
		return
	}
	c.seq++
	c.loading = false
	c.lastErr = nil
	c.view = view
}

// snapshot returns the current view and loading flag. Never blocks on I/O.
func (c *controller) snapshot() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view, c.loading
}
