package threat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/threat"
)

type fakeHistory struct {
	mu        sync.Mutex
	saved     []threat.Alert
	dismissed []string
}

func (f *fakeHistory) SaveAlert(_ context.Context, a threat.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, a)
	return nil
}

func (f *fakeHistory) MarkDismissed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
	return nil
}

func newTestRegistry(clock *time.Time, history threat.Repository) *threat.Registry {
	return threat.NewRegistry(threat.RegistryConfig{
		Logger:  zerolog.Nop(),
		History: history,
		Now:     func() time.Time { return *clock },
	})
}

func socialAlert(title string) threat.Alert {
	return threat.Alert{
		Location: geo.LatLng{Lat: 40.7128, Lng: -74.0060},
		Category: threat.CategorySocial,
		Title:    title,
		Severity: threat.Severity{Level: threat.LevelMedium, Score: 55, Confidence: 70},
	}
}

func TestMerge_NewAlertsActiveNewestFirst(t *testing.T) {
	now := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	reg := newTestRegistry(&now, nil)
	ctx := context.Background()

	inserted := reg.Merge(ctx, []threat.Alert{socialAlert("first")})
	require.Len(t, inserted, 1)
	assert.NotEmpty(t, inserted[0].ID, "registry assigns IDs to new alerts")

	now = now.Add(time.Minute)
	reg.Merge(ctx, []threat.Alert{socialAlert("second")})

	active := reg.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "second", active[0].Title)
	assert.Equal(t, "first", active[1].Title)
}

func TestMerge_DuplicateRefreshesInPlace(t *testing.T) {
	now := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	reg := newTestRegistry(&now, nil)
	ctx := context.Background()

	first := reg.Merge(ctx, []threat.Alert{socialAlert("late-night window")})
	require.Len(t, first, 1)

	now = now.Add(5 * time.Minute)
	again := reg.Merge(ctx, []threat.Alert{socialAlert("late-night window")})
	assert.Empty(t, again, "re-raising the same category+title is a refresh, not a new alert")

	active := reg.Active()
	require.Len(t, active, 1)
	assert.Equal(t, first[0].ID, active[0].ID)
	assert.Equal(t, now, active[0].Timestamp, "refresh resets the expiry clock")
}

func TestDismiss(t *testing.T) {
	now := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	history := &fakeHistory{}
	reg := newTestRegistry(&now, history)
	ctx := context.Background()

	inserted := reg.Merge(ctx, []threat.Alert{socialAlert("dismissable")})
	require.Len(t, inserted, 1)

	assert.True(t, reg.Dismiss(ctx, inserted[0].ID))
	assert.Empty(t, reg.Active(), "a dismissed alert disappears immediately")
	assert.Equal(t, []string{inserted[0].ID}, history.dismissed)

	assert.False(t, reg.Dismiss(ctx, "no-such-id"))
}

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	reg := newTestRegistry(&now, nil)
	ctx := context.Background()

	reg.Merge(ctx, []threat.Alert{socialAlert("aging")})

	now = now.Add(59 * time.Minute)
	assert.Len(t, reg.Active(), 1, "still live inside the hour")

	now = now.Add(2 * time.Minute)
	assert.Empty(t, reg.Active(), "an untouched alert older than an hour is gone")
	assert.Equal(t, 1, reg.Purge())
}

func TestSubscribe_PushesFullListOnEveryMutation(t *testing.T) {
	now := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	reg := newTestRegistry(&now, nil)
	ctx := context.Background()

	var pushes [][]threat.Alert
	unsubscribe := reg.Subscribe(func(active []threat.Alert) {
		pushes = append(pushes, active)
	})

	inserted := reg.Merge(ctx, []threat.Alert{socialAlert("observed")})
	require.Len(t, pushes, 1)
	assert.Len(t, pushes[0], 1)

	reg.Dismiss(ctx, inserted[0].ID)
	require.Len(t, pushes, 2)
	assert.Empty(t, pushes[1], "dismissal pushes the now-empty list")

	unsubscribe()
	reg.Merge(ctx, []threat.Alert{socialAlert("unobserved")})
	assert.Len(t, pushes, 2, "no pushes after unsubscribe")
}

func TestMerge_ArchivesNewAlerts(t *testing.T) {
	now := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	history := &fakeHistory{}
	reg := newTestRegistry(&now, history)

	reg.Merge(context.Background(), []threat.Alert{socialAlert("archived")})

	require.Len(t, history.saved, 1)
	assert.Equal(t, "archived", history.saved[0].Title)
}
