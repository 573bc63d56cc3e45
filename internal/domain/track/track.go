// Package track provides the Track and Artist catalog entities.
package track

import (
	"math"
	"time"
)

// Artist represents a catalog artist.
type Artist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Track represents a playable catalog song.
// Values are read-only once loaded from the catalog.
type Track struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ArtistID  string    `json:"artist_id"`
	Album     string    `json:"album,omitempty"`
	Genre     string    `json:"genre,omitempty"`
	Duration  int       `json:"duration"` // Catalog estimate in seconds
	ImageURL  string    `json:"image_url"`
	MediaURL  string    `json:"song_url"` // External video URL the media id is derived from
	IsPremium bool      `json:"is_premium"`
	Price     *float64  `json:"price"`
	Artist    *Artist   `json:"artist,omitempty"` // Denormalized display data (optional)
	CreatedAt time.Time `json:"created_at"`
}

// DurationHint returns the catalog duration as a time.Duration.
func (t *Track) DurationHint() time.Duration {
	return time.Duration(t.Duration) * time.Second
}

// ArtistName returns the joined artist name, or "Unknown Artist".
func (t *Track) ArtistName() string {
	if t.Artist != nil && t.Artist.Name != "" {
		return t.Artist.Name
	}
	return "Unknown Artist"
}

// PriceCents returns the price in the smallest currency unit.
// Returns 0 when the track has no price.
func (t *Track) PriceCents() int64 {
	if t.Price == nil {
		return 0
	}
	return int64(math.Round(*t.Price * 100))
}

// IsPurchasable reports whether the track can be bought.
func (t *Track) IsPurchasable() bool {
	return t.IsPremium && t.Price != nil && *t.Price > 0
}
