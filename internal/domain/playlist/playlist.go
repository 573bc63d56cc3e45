// Package playlist provides the Playlist domain entity.
package playlist

import (
	"sort"
	"time"

	"github.com/osa030/melodify/internal/domain/track"
)

// Playlist represents a user playlist.
type Playlist struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	UserID      string        `json:"user_id"`
	Description string        `json:"description,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	IsPublic    bool          `json:"is_public"`
	CreatedAt   time.Time     `json:"created_at"`
	Songs       []track.Track `json:"songs,omitempty"`
}

// Entry is a playlist-song association ordered by Position.
type Entry struct {
	ID         string       `json:"id"`
	PlaylistID string       `json:"playlist_id"`
	SongID     string       `json:"song_id"`
	Position   int          `json:"position"`
	CreatedAt  time.Time    `json:"created_at"`
	Song       *track.Track `json:"song,omitempty"`
}

// Tracks returns the joined songs of the entries in position order.
// Entries without a joined song are skipped.
func Tracks(entries []Entry) []track.Track {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	tracks := make([]track.Track, 0, len(sorted))
	for _, e := range sorted {
		if e.Song != nil {
			tracks = append(tracks, *e.Song)
		}
	}
	return tracks
}

// NextPosition returns the position for a song appended to the end.
func NextPosition(entries []Entry) int {
	next := 0
	for _, e := range entries {
		if e.Position >= next {
			next = e.Position + 1
		}
	}
	return next
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Songs))
	for i, t := range p.Songs {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the total catalog duration of all songs in seconds.
func (p *Playlist) TotalDuration() int64 {
	var total int64
	for _, t := range p.Songs {
		total += int64(t.Duration)
	}
	return total
}
