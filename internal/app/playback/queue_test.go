package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melodify/internal/domain/track"
)

func newTestQueue(ids ...string) (*Queue, *Store) {
	store := NewStore(DefaultVolume)
	q := NewQueue(store)
	if len(ids) > 0 {
		tracks := make([]track.Track, len(ids))
		for i, id := range ids {
			tracks[i] = testTrack(id)
		}
		q.SetQueue(tracks, 0)
	}
	return q, store
}

func currentID(t *testing.T, s *Store) string {
	t.Helper()
	snap := s.Snapshot()
	require.NotNil(t, snap.CurrentTrack)
	return snap.CurrentTrack.ID
}

func TestQueue_SetQueue(t *testing.T) {
	tests := []struct {
		name          string
		startIndex    int
		expectedIndex int
		expectedID    string
	}{
		{name: "first", startIndex: 0, expectedIndex: 0, expectedID: "a"},
		{name: "middle", startIndex: 1, expectedIndex: 1, expectedID: "b"},
		{name: "last", startIndex: 2, expectedIndex: 2, expectedID: "c"},
		{name: "negative clamps", startIndex: -3, expectedIndex: 0, expectedID: "a"},
		{name: "past end clamps", startIndex: 9, expectedIndex: 2, expectedID: "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, store := newTestQueue()
			q.SetQueue([]track.Track{testTrack("a"), testTrack("b"), testTrack("c")}, tt.startIndex)

			assert.Equal(t, tt.expectedIndex, q.CurrentIndex())
			assert.Equal(t, tt.expectedID, currentID(t, store))
			assert.True(t, store.Snapshot().IsPlaying)
		})
	}
}

func TestQueue_SetQueueEmptyKeepsCurrentTrack(t *testing.T) {
	q, store := newTestQueue("a", "b")

	q.SetQueue(nil, 0)

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, "a", currentID(t, store))
	assert.True(t, store.Snapshot().IsPlaying)
}

func TestQueue_SetQueueCopiesInput(t *testing.T) {
	q, _ := newTestQueue()
	tracks := []track.Track{testTrack("a"), testTrack("b")}
	q.SetQueue(tracks, 0)

	tracks[0].Title = "changed"
	assert.Equal(t, "Song a", q.Tracks()[0].Title)
}

func TestQueue_NextAndPrevious(t *testing.T) {
	q, store := newTestQueue("a", "b", "c")

	assert.True(t, q.NextSong())
	assert.Equal(t, "b", currentID(t, store))
	assert.True(t, q.NextSong())
	assert.Equal(t, "c", currentID(t, store))

	before := store.Snapshot()
	assert.False(t, q.NextSong())
	assert.Equal(t, 2, q.CurrentIndex())
	assert.Equal(t, before, store.Snapshot(), "advancing past the end touches nothing")

	assert.True(t, q.PreviousSong())
	assert.True(t, q.PreviousSong())
	assert.Equal(t, "a", currentID(t, store))

	before = store.Snapshot()
	assert.False(t, q.PreviousSong())
	assert.Equal(t, 0, q.CurrentIndex())
	assert.Equal(t, before, store.Snapshot())
}

func TestQueue_NextSongOnEmptyQueue(t *testing.T) {
	q, store := newTestQueue()
	assert.False(t, q.NextSong())
	assert.False(t, q.PreviousSong())
	assert.Nil(t, store.Snapshot().CurrentTrack)
}

func TestQueue_NextResumesPausedPlayback(t *testing.T) {
	q, store := newTestQueue("a", "b")
	store.Pause()

	q.NextSong()

	assert.True(t, store.Snapshot().IsPlaying)
}

func TestQueue_AddToQueue(t *testing.T) {
	q, store := newTestQueue("a")
	before := store.Snapshot()

	q.AddToQueue(testTrack("b"))

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 0, q.CurrentIndex())
	assert.Equal(t, before, store.Snapshot())
	assert.Equal(t, "b", q.Tracks()[1].ID)
}

func TestQueue_RemoveFromQueue(t *testing.T) {
	tests := []struct {
		name          string
		startIndex    int
		remove        int
		expectedIndex int
		expectedLen   int
	}{
		{name: "before current", startIndex: 2, remove: 0, expectedIndex: 1, expectedLen: 3},
		{name: "after current", startIndex: 1, remove: 3, expectedIndex: 1, expectedLen: 3},
		{name: "current", startIndex: 1, remove: 1, expectedIndex: 1, expectedLen: 3},
		{name: "current at end", startIndex: 3, remove: 3, expectedIndex: 3, expectedLen: 3},
		{name: "negative index", startIndex: 1, remove: -1, expectedIndex: 1, expectedLen: 4},
		{name: "index out of range", startIndex: 1, remove: 4, expectedIndex: 1, expectedLen: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, store := newTestQueue()
			q.SetQueue([]track.Track{testTrack("a"), testTrack("b"), testTrack("c"), testTrack("d")}, tt.startIndex)
			playing := currentID(t, store)

			q.RemoveFromQueue(tt.remove)

			assert.Equal(t, tt.expectedIndex, q.CurrentIndex())
			assert.Equal(t, tt.expectedLen, q.Len())
			assert.Equal(t, playing, currentID(t, store), "removal never retargets the current track")
		})
	}
}

func TestQueue_RemoveCurrentThenNext(t *testing.T) {
	q, store := newTestQueue("a", "b", "c", "d")
	q.NextSong() // b

	q.RemoveFromQueue(1)
	assert.Equal(t, "b", currentID(t, store))
	assert.Equal(t, 1, q.CurrentIndex()) // cursor now on c

	// The cursor moves past the track that shifted into the removed slot.
	assert.True(t, q.NextSong())
	assert.Equal(t, "d", currentID(t, store))
}

func TestQueue_ClearQueue(t *testing.T) {
	q, store := newTestQueue("a", "b")
	q.NextSong()

	q.ClearQueue()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.CurrentIndex())
	snap := store.Snapshot()
	require.NotNil(t, snap.CurrentTrack)
	assert.Equal(t, "b", snap.CurrentTrack.ID)
	assert.True(t, snap.IsPlaying)

	// Nothing to advance to once the queue is empty.
	assert.False(t, q.NextSong())
	assert.Equal(t, "b", currentID(t, store))
}

func TestQueue_Subscribe(t *testing.T) {
	q, _ := newTestQueue()
	var seen []QueueSnapshot
	q.Subscribe(func(s QueueSnapshot) { seen = append(seen, s) })

	q.SetQueue([]track.Track{testTrack("a"), testTrack("b")}, 0)
	q.NextSong()
	q.NextSong() // no-op, no notification
	q.AddToQueue(testTrack("c"))

	require.Len(t, seen, 3)
	assert.Equal(t, 1, seen[1].CurrentIndex)
	assert.Len(t, seen[2].Tracks, 3)
}

func TestQueue_StoreSubscriberMayReadQueue(t *testing.T) {
	q, store := newTestQueue()
	var length int
	store.Subscribe(func(Change) { length = q.Len() })

	q.SetQueue([]track.Track{testTrack("a"), testTrack("b")}, 0)

	assert.Equal(t, 2, length)
}
