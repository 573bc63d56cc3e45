package playback

import (
	"strings"
	"sync"
)

// Field identifies the part of the player state touched by a mutation.
type Field uint8

const (
	FieldTrack     Field = 1 << iota // Current track changed
	FieldTransport                   // isPlaying changed
	FieldVolume                      // volume or mute changed
	FieldProgress                    // progress changed
	FieldDuration                    // duration changed
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldTrack, "track"},
	{FieldTransport, "transport"},
	{FieldVolume, "volume"},
	{FieldProgress, "progress"},
	{FieldDuration, "duration"},
}

// Has reports whether all bits of other are set.
func (f Field) Has(other Field) bool {
	return f&other == other
}

// String returns the string representation of the field set.
func (f Field) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range fieldNames {
		if f.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Change is delivered to store subscribers after every mutation.
type Change struct {
	Fields   Field
	Snapshot Snapshot
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// listeners is an ordered subscriber list. Callbacks run synchronously on
// the notifying goroutine and never under the owner's state lock.
type listeners[T any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []listener[T]
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, listener[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, e := range l.entries {
				if e.id == id {
					l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *listeners[T]) notify(v T) {
	l.mu.RLock()
	entries := make([]listener[T], len(l.entries))
	copy(entries, l.entries)
	l.mu.RUnlock()

	for _, e := range entries {
		e.fn(v)
	}
}
