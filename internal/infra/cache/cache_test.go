package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/track"
)

type countingStore struct {
	catalog.Store

	mu    sync.Mutex
	calls map[string]int
	songs map[string]track.Track
}

func newCountingStore() *countingStore {
	return &countingStore{
		calls: make(map[string]int),
		songs: map[string]track.Track{
			"s1": {ID: "s1", Title: "One", ArtistID: "a1", Duration: 200},
		},
	}
}

func (s *countingStore) count(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *countingStore) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *countingStore) GetSong(ctx context.Context, id string) (*track.Track, error) {
	s.count("GetSong")
	t, ok := s.songs[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &t, nil
}

func (s *countingStore) ListSongs(ctx context.Context, q catalog.SongQuery) ([]track.Track, error) {
	s.count("ListSongs")
	out := make([]track.Track, 0, len(s.songs))
	for _, t := range s.songs {
		out = append(out, t)
	}
	return out, nil
}

func (s *countingStore) CreateSong(ctx context.Context, t track.Track) (*track.Track, error) {
	s.count("CreateSong")
	t.ID = "s2"
	s.songs[t.ID] = t
	return &t, nil
}

func (s *countingStore) HasPurchased(ctx context.Context, userID, songID string) (bool, error) {
	s.count("HasPurchased")
	return true, nil
}

func setupCache(t *testing.T) (*Catalog, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newCountingStore()
	return New(store, rdb, time.Minute), store, mr
}

func TestCatalog_GetSongCached(t *testing.T) {
	c, store, mr := setupCache(t)
	ctx := context.Background()

	first, err := c.GetSong(ctx, "s1")
	require.NoError(t, err)
	second, err := c.GetSong(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Calls("GetSong"))
	assert.True(t, mr.Exists("melodify:catalog:v0:song:s1"))
	assert.Equal(t, time.Minute, mr.TTL("melodify:catalog:v0:song:s1"))
}

func TestCatalog_ErrorsAreNotCached(t *testing.T) {
	c, store, _ := setupCache(t)
	ctx := context.Background()

	_, err := c.GetSong(ctx, "missing")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
	_, err = c.GetSong(ctx, "missing")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	assert.Equal(t, 2, store.Calls("GetSong"))
}

func TestCatalog_WriteInvalidates(t *testing.T) {
	c, store, _ := setupCache(t)
	ctx := context.Background()

	songs, err := c.ListSongs(ctx, catalog.SongQuery{})
	require.NoError(t, err)
	assert.Len(t, songs, 1)

	_, err = c.CreateSong(ctx, track.Track{Title: "Two"})
	require.NoError(t, err)

	songs, err = c.ListSongs(ctx, catalog.SongQuery{})
	require.NoError(t, err)
	assert.Len(t, songs, 2)
	assert.Equal(t, 2, store.Calls("ListSongs"))
}

func TestCatalog_PassThrough(t *testing.T) {
	c, store, _ := setupCache(t)

	owned, err := c.HasPurchased(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.True(t, owned)
	_, _ = c.HasPurchased(context.Background(), "u1", "s1")
	assert.Equal(t, 2, store.Calls("HasPurchased"))
}

func TestCatalog_RedisDown(t *testing.T) {
	c, store, mr := setupCache(t)
	mr.Close()

	song, err := c.GetSong(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "One", song.Title)
	assert.Equal(t, 1, store.Calls("GetSong"))
}

func TestEvents_PublishSubscribe(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := NewEvents(rdb)
	received := make(chan PurchaseEvent, 1)
	require.NoError(t, events.SubscribePurchases(ctx, func(ev PurchaseEvent) { received <- ev }))

	require.NoError(t, events.PublishPurchase(ctx, PurchaseEvent{PurchaseID: "p1", UserID: "u1", SongID: "s1"}))

	select {
	case ev := <-received:
		assert.Equal(t, PurchaseEvent{PurchaseID: "p1", UserID: "u1", SongID: "s1"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("purchase event not received")
	}
}
