package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"relay-service/internal/domain"
)

const (
	defaultFallbackPoll = 60 * time.Second
	refreshTimeout      = 15 * time.Second

	// Fallback polling is only allowed between 21:00 and 00:01 local
	// time; push events remain the primary path at all hours.
	windowStartHour = 21
	windowEndMinute = 1
)

// NotificationAPI is the slice of the backend client the reconciler needs.
type NotificationAPI interface {
	UnreadCount(ctx context.Context) (int, error)
	LatestNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
}

// View is the presentation surface the reconciler drives. Implementations
// render a list, a badge, and per-item read state; they hold no policy.
type View interface {
	RenderList(items []domain.Notification)
	ShowBadge(count int)
	HideBadge()
	SetRead(notificationID string)
	RemoveItems(notificationIDs []string)
}

// Reconciler keeps the unread badge and the notification list consistent
// with server-reported truth. Push events trigger refreshes; a gated
// low-frequency poll covers gaps.
type Reconciler struct {
	api    NotificationAPI
	view   View
	logger *zap.Logger

	PollInterval time.Duration
	now          func() time.Time

	mu         sync.Mutex
	items      []domain.Notification
	badgeShown bool
	badgeCount int
}

func NewReconciler(api NotificationAPI, view View, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		api:          api,
		view:         view,
		logger:       logger,
		PollInterval: defaultFallbackPoll,
		now:          time.Now,
	}
}

// Refresh is the push-hint entry point: re-fetch both the list and the
// badge from the backend. Idempotent, so duplicate or out-of-order hints
// are harmless.
func (r *Reconciler) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	r.RefreshList(ctx)
	r.RefreshBadge(ctx)
}

// RefreshList fully replaces the visible list with the authoritative set.
// Partial patching drifts; full replacement cannot.
func (r *Reconciler) RefreshList(ctx context.Context) {
	items, err := r.api.LatestNotifications(ctx)
	if err != nil {
		// Last-known-good is retained on any fetch failure.
		r.logger.Warn("list refresh failed", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.items = items
	r.mu.Unlock()
	r.view.RenderList(items)
}

// RefreshBadge reconciles the badge against the server count. A badge
// already matching the desired state is left untouched.
func (r *Reconciler) RefreshBadge(ctx context.Context) {
	count, err := r.api.UnreadCount(ctx)
	if err != nil {
		r.logger.Warn("badge refresh failed", zap.Error(err))
		return
	}

	r.mu.Lock()
	shown, prev := r.badgeShown, r.badgeCount
	r.badgeShown = count > 0
	r.badgeCount = count
	r.mu.Unlock()

	switch {
	case count > 0 && (!shown || prev != count):
		r.view.ShowBadge(count)
	case count == 0 && shown:
		r.view.HideBadge()
	}
}

// MarkRead sends the mark-read request and, on success, dims that one item
// locally without a full refetch. The error is returned because the user
// triggered this directly.
func (r *Reconciler) MarkRead(ctx context.Context, notificationID string) error {
	if err := r.api.MarkRead(ctx, notificationID); err != nil {
		r.logger.Warn("mark-read failed", zap.String("id", notificationID), zap.Error(err))
		return err
	}

	r.mu.Lock()
	for i := range r.items {
		if r.items[i].ID == notificationID {
			r.items[i].Read = true
		}
	}
	r.mu.Unlock()

	r.view.SetRead(notificationID)
	return nil
}

// Cleanup removes items already marked read from the visible list and
// re-reconciles the badge. Called when the list is closed or collapsed.
func (r *Reconciler) Cleanup(ctx context.Context) {
	r.mu.Lock()
	kept := r.items[:0]
	removed := []string{}
	for _, n := range r.items {
		if n.Read {
			removed = append(removed, n.ID)
		} else {
			kept = append(kept, n)
		}
	}
	r.items = kept
	r.mu.Unlock()

	if len(removed) > 0 {
		r.view.RemoveItems(removed)
	}
	r.RefreshBadge(ctx)
}

// StartPolling runs the fallback poll until ctx is cancelled. Ticks
// outside the active window are no-ops.
func (r *Reconciler) StartPolling(ctx context.Context) {
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !inActiveWindow(r.now()) {
				continue
			}
			r.Refresh()
		}
	}
}

// Items returns a copy of the last rendered list.
func (r *Reconciler) Items() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Notification, len(r.items))
	copy(out, r.items)
	return out
}

// BadgeVisible reports whether the badge should currently be shown.
func (r *Reconciler) BadgeVisible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.badgeShown
}

// inActiveWindow reports whether t falls inside 21:00–00:01 local time.
func inActiveWindow(t time.Time) bool {
	h, m := t.Hour(), t.Minute()
	if h >= windowStartHour {
		return true
	}
	return h == 0 && m <= windowEndMinute
}
