package playback

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/domain/track"
)

// Queue is the ordered play list with a cursor. Whenever the cursor moves
// the selected track is pushed to the Store.
//
// Lock order is Queue before Store. Store subscribers must not call Queue
// mutations synchronously.
type Queue struct {
	opMu sync.Mutex   // serializes mutations including the Store update
	mu   sync.RWMutex // guards tracks and currentIndex

	tracks       []track.Track
	currentIndex int

	store       *Store
	subscribers listeners[QueueSnapshot]
}

// NewQueue creates an empty queue bound to store.
func NewQueue(store *Store) *Queue {
	return &Queue{
		tracks: make([]track.Track, 0),
		store:  store,
	}
}

// Subscribe registers fn to be called after every queue mutation.
func (q *Queue) Subscribe(fn func(QueueSnapshot)) func() {
	return q.subscribers.add(fn)
}

// SetQueue replaces the queue and starts playing tracks[startIndex].
// startIndex is clamped into range. An empty list empties the queue but
// leaves the current track alone.
func (q *Queue) SetQueue(tracks []track.Track, startIndex int) {
	q.opMu.Lock()
	defer q.opMu.Unlock()

	q.mu.Lock()
	if len(tracks) == 0 {
		q.tracks = make([]track.Track, 0)
		q.currentIndex = 0
		q.mu.Unlock()
		q.notify()
		return
	}
	q.tracks = append(make([]track.Track, 0, len(tracks)), tracks...)
	q.currentIndex = clampIndex(startIndex, len(tracks))
	selected := q.tracks[q.currentIndex]
	q.mu.Unlock()

	q.store.SetCurrentTrack(selected)
	zlog.Debug().Msgf("playback: queue set. size=%v, index=%v", len(tracks), q.currentIndex)
	q.notify()
}

// NextSong advances the cursor and plays the next track.
// Returns false at the end of the queue.
func (q *Queue) NextSong() bool {
	return q.step(1)
}

// PreviousSong moves the cursor back and plays that track.
// Returns false at the start of the queue.
func (q *Queue) PreviousSong() bool {
	return q.step(-1)
}

func (q *Queue) step(delta int) bool {
	q.opMu.Lock()
	defer q.opMu.Unlock()

	q.mu.Lock()
	next := q.currentIndex + delta
	if len(q.tracks) == 0 || next < 0 || next >= len(q.tracks) {
		q.mu.Unlock()
		return false
	}
	q.currentIndex = next
	selected := q.tracks[next]
	q.mu.Unlock()

	q.store.SetCurrentTrack(selected)
	q.notify()
	return true
}

// AddToQueue appends t without affecting playback.
func (q *Queue) AddToQueue(t track.Track) {
	q.opMu.Lock()
	defer q.opMu.Unlock()

	q.mu.Lock()
	q.tracks = append(q.tracks, t)
	q.mu.Unlock()

	zlog.Debug().Msgf("playback: track added to queue. id=%v", t.ID)
	q.notify()
}

// RemoveFromQueue removes the track at index. Out of range is a no-op.
// Removing the current track keeps it playing; the cursor then points at
// whatever shifted into its slot.
func (q *Queue) RemoveFromQueue(index int) {
	q.opMu.Lock()
	defer q.opMu.Unlock()

	q.mu.Lock()
	if index < 0 || index >= len(q.tracks) {
		q.mu.Unlock()
		return
	}
	q.tracks = append(q.tracks[:index:index], q.tracks[index+1:]...)
	if index < q.currentIndex {
		q.currentIndex--
	}
	if q.currentIndex < 0 {
		q.currentIndex = 0
	}
	q.mu.Unlock()

	q.notify()
}

// ClearQueue empties the queue and resets the index to 0. The current
// track and transport state are left as they are.
func (q *Queue) ClearQueue() {
	q.opMu.Lock()
	defer q.opMu.Unlock()

	q.mu.Lock()
	q.tracks = make([]track.Track, 0)
	q.currentIndex = 0
	q.mu.Unlock()

	q.notify()
}

// Tracks returns a copy of the queued tracks.
func (q *Queue) Tracks() []track.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append(make([]track.Track, 0, len(q.tracks)), q.tracks...)
}

// CurrentIndex returns the cursor position.
func (q *Queue) CurrentIndex() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.currentIndex
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

// Snapshot returns a copy of the queue and cursor.
func (q *Queue) Snapshot() QueueSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return QueueSnapshot{
		Tracks:       append(make([]track.Track, 0, len(q.tracks)), q.tracks...),
		CurrentIndex: q.currentIndex,
	}
}

func (q *Queue) notify() {
	q.subscribers.notify(q.Snapshot())
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
