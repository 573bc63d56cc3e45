// Package filter provides the playability filter chain applied before
// tracks reach the queue.
package filter

import (
	"context"

	"github.com/osa030/melodify/internal/domain/track"
)

// Source is where a batch of tracks comes from.
type Source string

const (
	SourcePlaylist Source = "playlist"
	SourceArtist   Source = "artist"
	SourceGenre    Source = "genre"
	SourceSearch   Source = "search"
	SourceAppend   Source = "append" // single track added to the queue
)

// Subject is the listener context a filter checks against.
type Subject struct {
	UserID string
	Owned  map[string]bool // song IDs with a completed purchase
	Queued []track.Track   // tracks already ahead in the queue
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "unplayable_media", "premium_not_purchased"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for playability filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to the given source.
	AppliesTo(src Source) bool
	// Check performs the filter check.
	Check(ctx context.Context, t track.Track, s *Subject) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
