// Package playback provides the player state store, the play queue and the
// adapter that keeps an embedded media widget in sync with both.
package playback

import "github.com/osa030/melodify/internal/domain/track"

// DefaultVolume is the volume restored by unmute when nothing was remembered.
const DefaultVolume = 0.5

// Snapshot is an immutable copy of the player state.
type Snapshot struct {
	CurrentTrack *track.Track `json:"current_track"`
	IsPlaying    bool         `json:"is_playing"`
	Volume       float64      `json:"volume"`   // 0..1
	IsMuted      bool         `json:"is_muted"` // Volume == 0
	Progress     float64      `json:"progress"` // seconds
	Duration     float64      `json:"duration"` // seconds; live value or catalog hint
	Version      uint64       `json:"version"`  // bumped on every mutation
}

// HasTrack reports whether a track is selected.
func (s Snapshot) HasTrack() bool {
	return s.CurrentTrack != nil
}

// Fraction returns progress as a fraction of duration in [0, 1].
func (s Snapshot) Fraction() float64 {
	if s.Duration <= 0 {
		return 0
	}
	f := s.Progress / s.Duration
	if f > 1 {
		return 1
	}
	return f
}

// QueueSnapshot is an immutable copy of the play queue.
type QueueSnapshot struct {
	Tracks       []track.Track `json:"tracks"`
	CurrentIndex int           `json:"current_index"`
}
