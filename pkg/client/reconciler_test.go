package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relay-service/internal/domain"
)

// fakeNotificationAPI serves scripted server state.
type fakeNotificationAPI struct {
	mu       sync.Mutex
	count    int
	items    []domain.Notification
	countErr error
	listErr  error
	markErr  error
	fetches  int
}

func (f *fakeNotificationAPI) UnreadCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeNotificationAPI) LatestNotifications(ctx context.Context) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Notification, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeNotificationAPI) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			if f.count > 0 {
				f.count--
			}
		}
	}
	return nil
}

// fakeView records every mutation the reconciler performs.
type fakeView struct {
	mu         sync.Mutex
	rendered   [][]domain.Notification
	badgeShows []int
	badgeHides int
	reads      []string
	removed    [][]string
}

func (v *fakeView) RenderList(items []domain.Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()
	snapshot := make([]domain.Notification, len(items))
	copy(snapshot, items)
	v.rendered = append(v.rendered, snapshot)
}

func (v *fakeView) ShowBadge(count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.badgeShows = append(v.badgeShows, count)
}

func (v *fakeView) HideBadge() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.badgeHides++
}

func (v *fakeView) SetRead(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reads = append(v.reads, id)
}

func (v *fakeView) RemoveItems(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removed = append(v.removed, ids)
}

func notif(id, msg string, read bool) domain.Notification {
	return domain.Notification{
		ID:        id,
		Message:   msg,
		CreatedAt: time.Date(2025, 11, 3, 21, 30, 0, 0, time.UTC),
		Read:      read,
	}
}

func TestReconciler_BadgeTracksServerCount(t *testing.T) {
	tests := []struct {
		name      string
		counts    []int
		wantShows []int
		wantHides int
		wantShown bool
	}{
		{
			name:      "appears when unread arrives",
			counts:    []int{0, 2},
			wantShows: []int{2},
			wantShown: true,
		},
		{
			name:      "disappears when count drops to zero",
			counts:    []int{3, 0},
			wantShows: []int{3},
			wantHides: 1,
			wantShown: false,
		},
		{
			name:      "matching state is left untouched",
			counts:    []int{2, 2, 2},
			wantShows: []int{2},
			wantShown: true,
		},
		{
			name:      "count change repaints",
			counts:    []int{2, 5},
			wantShows: []int{2, 5},
			wantShown: true,
		},
		{
			name:      "zero to zero never touches the view",
			counts:    []int{0, 0},
			wantShows: nil,
			wantShown: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeNotificationAPI{}
			view := &fakeView{}
			r := NewReconciler(api, view, zap.NewNop())

			for _, c := range tt.counts {
				api.mu.Lock()
				api.count = c
				api.mu.Unlock()
				r.RefreshBadge(context.Background())
			}

			assert.Equal(t, tt.wantShows, view.badgeShows)
			assert.Equal(t, tt.wantHides, view.badgeHides)
			assert.Equal(t, tt.wantShown, r.BadgeVisible())
		})
	}
}

func TestReconciler_RefreshListFullyReplaces(t *testing.T) {
	api := &fakeNotificationAPI{items: []domain.Notification{
		notif("1", "Goal streak: 7 days", false),
		notif("2", "Water reminder", false),
	}}
	view := &fakeView{}
	r := NewReconciler(api, view, zap.NewNop())

	r.RefreshList(context.Background())
	r.RefreshList(context.Background())

	require.Len(t, view.rendered, 2)
	assert.Equal(t, view.rendered[0], view.rendered[1],
		"repeated refresh with unchanged server state renders identically")
	assert.Equal(t, api.items, r.Items())
}

func TestReconciler_FetchFailureKeepsLastKnownGood(t *testing.T) {
	api := &fakeNotificationAPI{
		count: 1,
		items: []domain.Notification{notif("1", "Goal completed", false)},
	}
	view := &fakeView{}
	r := NewReconciler(api, view, zap.NewNop())
	r.Refresh()

	api.mu.Lock()
	api.listErr = errors.New("backend down")
	api.countErr = errors.New("backend down")
	api.mu.Unlock()
	r.Refresh()

	assert.Len(t, view.rendered, 1, "failed refresh must not repaint")
	assert.True(t, r.BadgeVisible(), "badge retains last-known-good state")
	assert.Len(t, r.Items(), 1)
}

func TestReconciler_MarkReadIsTargeted(t *testing.T) {
	api := &fakeNotificationAPI{
		count: 2,
		items: []domain.Notification{
			notif("7", "Habit check-in due", false),
			notif("8", "Weekly summary ready", false),
		},
	}
	view := &fakeView{}
	r := NewReconciler(api, view, zap.NewNop())
	r.RefreshList(context.Background())
	fetchesBefore := api.fetches

	require.NoError(t, r.MarkRead(context.Background(), "7"))

	assert.Equal(t, []string{"7"}, view.reads, "the one item dims locally")
	assert.Equal(t, fetchesBefore, api.fetches, "no full refetch on mark-read")

	// A later explicit refresh still reports the item as read.
	r.RefreshList(context.Background())
	last := view.rendered[len(view.rendered)-1]
	for _, n := range last {
		if n.ID == "7" {
			assert.True(t, n.Read)
		}
	}
}

func TestReconciler_MarkReadFailureSurfaces(t *testing.T) {
	api := &fakeNotificationAPI{
		items:   []domain.Notification{notif("7", "Habit check-in due", false)},
		markErr: errors.New("rejected"),
	}
	view := &fakeView{}
	r := NewReconciler(api, view, zap.NewNop())
	r.RefreshList(context.Background())

	err := r.MarkRead(context.Background(), "7")
	require.Error(t, err, "user-triggered failures are surfaced")
	assert.Empty(t, view.reads, "no optimistic update on failure")
}

func TestReconciler_CleanupPrunesReadItems(t *testing.T) {
	api := &fakeNotificationAPI{
		count: 1,
		items: []domain.Notification{
			notif("1", "Done: morning run", true),
			notif("2", "Streak at risk", false),
			notif("3", "Done: journaling", true),
		},
	}
	view := &fakeView{}
	r := NewReconciler(api, view, zap.NewNop())
	r.RefreshList(context.Background())

	r.Cleanup(context.Background())

	require.Len(t, view.removed, 1)
	assert.ElementsMatch(t, []string{"1", "3"}, view.removed[0])
	assert.Len(t, r.Items(), 1, "only unread items stay visible")
	assert.True(t, r.BadgeVisible(), "badge re-reconciled against the server count")
}

func TestInActiveWindow(t *testing.T) {
	tests := []struct {
		name string
		hour int
		min  int
		want bool
	}{
		{"start of window", 21, 0, true},
		{"late evening", 23, 59, true},
		{"just past midnight", 0, 1, true},
		{"window closed", 0, 2, false},
		{"afternoon", 15, 30, false},
		{"just before window", 20, 59, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := time.Date(2025, 11, 3, tt.hour, tt.min, 0, 0, time.Local)
			assert.Equal(t, tt.want, inActiveWindow(ts))
		})
	}
}

func TestReconciler_PollingGatedByWindow(t *testing.T) {
	api := &fakeNotificationAPI{}
	view := &fakeView{}
	r := NewReconciler(api, view, zap.NewNop())
	r.PollInterval = 5 * time.Millisecond

	// Clock pinned outside the window: ticks are no-ops.
	r.now = func() time.Time {
		return time.Date(2025, 11, 3, 12, 0, 0, 0, time.Local)
	}
	ctx, cancel := context.WithCancel(context.Background())
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		r.StartPolling(ctx)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-pollerDone

	api.mu.Lock()
	outside := api.fetches
	api.mu.Unlock()
	assert.Zero(t, outside, "no polling outside the active window")

	// Clock pinned inside the window: ticks refresh.
	r.now = func() time.Time {
		return time.Date(2025, 11, 3, 21, 30, 0, 0, time.Local)
	}
	ctx, cancel = context.WithCancel(context.Background())
	pollerDone = make(chan struct{})
	go func() {
		defer close(pollerDone)
		r.StartPolling(ctx)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-pollerDone

	api.mu.Lock()
	inside := api.fetches
	api.mu.Unlock()
	assert.Greater(t, inside, 0, "polling acts inside the active window")
}
