package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melodify/internal/app/account"
	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/app/notification"
	"github.com/osa030/melodify/internal/domain/purchase"
	"github.com/osa030/melodify/internal/domain/track"
	"github.com/osa030/melodify/internal/domain/user"
	"github.com/osa030/melodify/internal/infra/cache"
	"github.com/osa030/melodify/internal/infra/clock"
	"github.com/osa030/melodify/internal/infra/config"
)

// fakeCatalog implements the calls a session makes; the embedded nil
// store panics on anything else.
type fakeCatalog struct {
	catalog.Store
	songs map[string]track.Track
}

func (f *fakeCatalog) GetSong(ctx context.Context, id string) (*track.Track, error) {
	s, ok := f.songs[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &s, nil
}

func (f *fakeCatalog) ListPurchases(ctx context.Context, userID string) ([]purchase.Purchase, error) {
	return nil, nil
}

type fakeIdentity struct {
	account.Identity
}

func (fakeIdentity) SignIn(ctx context.Context, email, password string) (*user.Session, error) {
	return &user.Session{AccessToken: "token", User: user.User{ID: "u1", Email: email}}, nil
}

type fakeFeed struct {
	fn func(cache.PurchaseEvent)
}

func (f *fakeFeed) SubscribePurchases(ctx context.Context, fn func(cache.PurchaseEvent)) error {
	f.fn = fn
	return nil
}

type collector struct {
	mu  sync.Mutex
	got []*notification.Notification
}

func (c *collector) Send(n *notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return nil
}

func (c *collector) has(fn func(n *notification.Notification) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.got {
		if fn(n) {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T, feed PurchaseFeed) *Manager {
	t.Helper()
	cfg := &config.Config{
		Player: config.PlayerConfig{PollIntervalMs: 50, DefaultVolume: 0.5},
	}
	songs := map[string]track.Track{
		"s1": {ID: "s1", Title: "Rowdy Baby", Duration: 60, MediaURL: "https://www.youtube.com/watch?v=EhhiY11Z9-U"},
	}
	m, err := NewManager(cfg, Deps{
		Catalog:   &fakeCatalog{songs: songs},
		Identity:  fakeIdentity{},
		Binder:    clock.NewBinder(clock.Settings{TickMs: 10, DefaultDurationSec: 180}),
		Purchases: feed,
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestNewManager_RequiresDeps(t *testing.T) {
	_, err := NewManager(&config.Config{}, Deps{})
	assert.Error(t, err)
}

func TestManager_PlaySongBindsWidgetAndNotifies(t *testing.T) {
	m := newTestManager(t, nil)
	require.NoError(t, m.Start(context.Background()))

	c := &collector{}
	m.GetNotificationManager().Subscribe(c)

	require.NoError(t, m.Library().PlaySong(context.Background(), "s1"))

	assert.Eventually(t, func() bool { return m.GetStatus().WidgetReady }, 2*time.Second, 10*time.Millisecond)
	st := m.GetStatus()
	assert.True(t, st.Renderable)
	assert.Equal(t, "EhhiY11Z9-U", st.MediaID)
	require.NotNil(t, st.Player.CurrentTrack)
	assert.Equal(t, "s1", st.Player.CurrentTrack.ID)
	assert.True(t, st.Player.IsPlaying)

	assert.Eventually(t, func() bool {
		return c.has(func(n *notification.Notification) bool {
			return n.Type == notification.TypePlayer && n.Player.CurrentTrack != nil && n.Player.CurrentTrack.ID == "s1"
		})
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_QueueNotifications(t *testing.T) {
	m := newTestManager(t, nil)
	c := &collector{}
	m.GetNotificationManager().Subscribe(c)

	m.Queue().SetQueue([]track.Track{{ID: "a"}, {ID: "b"}}, 1)

	assert.Eventually(t, func() bool {
		return c.has(func(n *notification.Notification) bool {
			return n.Type == notification.TypeQueue && n.Queue.CurrentIndex == 1 && len(n.Queue.Tracks) == 2
		})
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_InitialState(t *testing.T) {
	m := newTestManager(t, nil)
	m.Player().SetVolume(0.3)

	n := m.InitialState()
	assert.Equal(t, notification.TypeInitialState, n.Type)
	assert.NotZero(t, n.SequenceNo)
	require.NotNil(t, n.Player)
	assert.InDelta(t, 0.3, n.Player.Volume, 1e-9)
	require.NotNil(t, n.Queue)
	require.NotNil(t, n.Account)
	assert.Nil(t, n.Account.User)
}

func TestManager_PurchaseEvents(t *testing.T) {
	feed := &fakeFeed{}
	m := newTestManager(t, feed)
	require.NoError(t, m.Start(context.Background()))
	require.NotNil(t, feed.fn)

	c := &collector{}
	m.GetNotificationManager().Subscribe(c)

	// Ignored while signed out.
	feed.fn(cache.PurchaseEvent{PurchaseID: "p0", UserID: "u1", SongID: "s1"})

	require.NoError(t, m.Account().Login(context.Background(), "listener@example.com", "secret"))
	feed.fn(cache.PurchaseEvent{PurchaseID: "p1", UserID: "u1", SongID: "s1"})
	feed.fn(cache.PurchaseEvent{PurchaseID: "p2", UserID: "someone-else", SongID: "s1"})

	assert.Eventually(t, func() bool {
		return c.has(func(n *notification.Notification) bool {
			return n.Type == notification.TypePurchase && n.Purchase.PurchaseID == "p1"
		})
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.has(func(n *notification.Notification) bool {
		return n.Type == notification.TypeAccount && n.Account.User != nil && n.Account.User.ID == "u1"
	}))
	assert.False(t, c.has(func(n *notification.Notification) bool {
		return n.Type == notification.TypePurchase && n.Purchase.PurchaseID != "p1"
	}))
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(t, nil)
	require.NoError(t, m.Library().PlaySong(context.Background(), "s1"))

	m.Close()
	m.Close()

	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}
	assert.False(t, m.GetStatus().Player.IsPlaying)
	assert.False(t, m.GetStatus().Renderable)
	assert.ErrorIs(t, m.Start(context.Background()), ErrSessionClosed)
}

func TestNewBinder(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.WidgetConfig
		wantErr bool
	}{
		{name: "default", cfg: config.WidgetConfig{}},
		{name: "clock", cfg: config.WidgetConfig{Type: "clock", Settings: map[string]any{"tick_ms": 50}}},
		{name: "mpv", cfg: config.WidgetConfig{Type: "mpv"}},
		{name: "bad clock settings", cfg: config.WidgetConfig{Type: "clock", Settings: map[string]any{"tick_ms": 1}}, wantErr: true},
		{name: "unknown", cfg: config.WidgetConfig{Type: "iframe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBinder(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, b)
		})
	}
}
