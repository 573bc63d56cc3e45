package playback

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/domain/track"
)

// Store is the single source of truth for what should be playing and how.
// It never touches a widget; the Adapter observes it and drives one.
type Store struct {
	mu sync.RWMutex

	current    *track.Track
	isPlaying  bool
	volume     float64 // 0 means muted
	progress   float64
	liveDur    float64 // duration reported by the widget, 0 until known
	remembered float64 // last non-zero volume, restored by unmute
	version    uint64

	subscribers listeners[Change]
}

// NewStore creates a store with the given initial volume.
// Values outside [0, 1] fall back to DefaultVolume. A non-zero initial
// volume is what unmute restores until another one is set.
func NewStore(initialVolume float64) *Store {
	if initialVolume < 0 || initialVolume > 1 {
		initialVolume = DefaultVolume
	}
	return &Store{volume: initialVolume, remembered: initialVolume}
}

// Subscribe registers fn to be called after every mutation.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) func() {
	return s.subscribers.add(fn)
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		IsPlaying: s.isPlaying,
		Volume:    s.volume,
		IsMuted:   s.volume == 0,
		Progress:  s.progress,
		Duration:  s.liveDur,
		Version:   s.version,
	}
	if s.current != nil {
		t := *s.current
		snap.CurrentTrack = &t
		if snap.Duration <= 0 {
			snap.Duration = float64(t.Duration)
		}
	}
	return snap
}

// mutate applies fn under the lock, bumps the version and notifies
// subscribers after the lock is released.
func (s *Store) mutate(fields Field, fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.subscribers.notify(Change{Fields: fields, Snapshot: snap})
}

// SetCurrentTrack selects t and starts playing.
// Progress and live duration are dropped when the track identity changes.
func (s *Store) SetCurrentTrack(t track.Track) {
	s.mutate(FieldTrack|FieldTransport|FieldProgress|FieldDuration, func() {
		if s.current == nil || s.current.ID != t.ID {
			s.progress = 0
			s.liveDur = 0
		}
		s.current = &t
		s.isPlaying = true
	})
	zlog.Debug().Msgf("playback: current track set. id=%v, title=%v", t.ID, t.Title)
}

// Play marks the player as playing.
func (s *Store) Play() {
	s.mutate(FieldTransport, func() { s.isPlaying = true })
}

// Pause marks the player as paused.
func (s *Store) Pause() {
	s.mutate(FieldTransport, func() { s.isPlaying = false })
}

// TogglePlay flips the playing flag.
func (s *Store) TogglePlay() {
	s.mutate(FieldTransport, func() { s.isPlaying = !s.isPlaying })
}

// SetVolume sets the volume, clamped to [0, 1]. Zero mutes.
func (s *Store) SetVolume(v float64) {
	v = clamp(v, 0, 1)
	s.mutate(FieldVolume, func() {
		if v > 0 {
			s.remembered = v
		}
		s.volume = v
	})
}

// ToggleMute mutes, remembering the current volume, or restores the last
// remembered non-zero volume (DefaultVolume if none).
func (s *Store) ToggleMute() {
	s.mutate(FieldVolume, func() {
		if s.volume == 0 {
			s.volume = s.remembered
			if s.volume <= 0 {
				s.volume = DefaultVolume
			}
			return
		}
		s.remembered = s.volume
		s.volume = 0
	})
}

// RequestSeek records a position the user asked to seek to.
// Does not command the widget.
func (s *Store) RequestSeek(t float64) {
	s.mutate(FieldProgress, func() { s.progress = s.clampProgressLocked(t) })
}

// SeekTo is an alias for RequestSeek.
func (s *Store) SeekTo(t float64) {
	s.RequestSeek(t)
}

// ReportProgress records the position read from the widget.
func (s *Store) ReportProgress(t float64) {
	s.mutate(FieldProgress, func() { s.progress = s.clampProgressLocked(t) })
}

// SetDuration records the live duration read from the widget.
func (s *Store) SetDuration(d float64) {
	if d < 0 {
		d = 0
	}
	s.mutate(FieldDuration, func() {
		s.liveDur = d
		if d > 0 && s.progress > d {
			s.progress = d
		}
	})
}

// reportPlayback records a poll reading, but only while trackID is still the
// current track. Returns false if the reading was discarded.
func (s *Store) reportPlayback(trackID string, progress, duration float64) bool {
	s.mu.Lock()
	if s.current == nil || s.current.ID != trackID {
		s.mu.Unlock()
		return false
	}
	if duration > 0 {
		s.liveDur = duration
	}
	s.progress = s.clampProgressLocked(progress)
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.subscribers.notify(Change{Fields: FieldProgress | FieldDuration, Snapshot: snap})
	return true
}

// Reset clears the current track, transport and timing.
// Volume and mute survive a reset.
func (s *Store) Reset() {
	s.mutate(FieldTrack|FieldTransport|FieldProgress|FieldDuration, func() {
		s.current = nil
		s.isPlaying = false
		s.progress = 0
		s.liveDur = 0
	})
	zlog.Debug().Msg("playback: store reset")
}

func (s *Store) clampProgressLocked(t float64) float64 {
	if t < 0 {
		return 0
	}
	d := s.liveDur
	if d <= 0 && s.current != nil {
		d = float64(s.current.Duration)
	}
	if d > 0 && t > d {
		return d
	}
	return t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
