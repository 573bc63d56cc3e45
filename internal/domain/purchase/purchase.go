// Package purchase provides the Purchase domain entity.
package purchase

import (
	"time"

	"github.com/osa030/melodify/internal/domain/track"
)

// Status represents the lifecycle state of a purchase.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Purchase represents a premium song purchase.
// A purchase stays pending until the payment webhook completes it.
type Purchase struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	SongID    string       `json:"song_id"`
	Amount    float64      `json:"amount"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Song      *track.Track `json:"song,omitempty"`
}

// IsCompleted reports whether the purchase has been paid.
func (p *Purchase) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// Owned returns the IDs of songs with a completed purchase.
func Owned(purchases []Purchase) map[string]bool {
	owned := make(map[string]bool, len(purchases))
	for _, p := range purchases {
		if p.IsCompleted() {
			owned[p.SongID] = true
		}
	}
	return owned
}
