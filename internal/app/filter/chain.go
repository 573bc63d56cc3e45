package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/domain/track"
)

// Rejection records a track dropped by the chain.
type Rejection struct {
	Index  int // position in the input
	Track  track.Track
	Filter string
	Code   string
}

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Build creates a chain of the registered filters that enabled reports on,
// configured from settings. Filters run in name order.
func Build(enabled func(name string) bool, settings func(name string) map[string]any) (*Chain, error) {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	c := NewChain()
	for _, name := range names {
		if !enabled(name) {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(settings(name)); err != nil {
			return nil, errors.Wrapf(err, "invalid config for %s", name)
		}
		c.Add(f)
		zlog.Info().Msgf("filter: enabled %s", name)
	}
	return c, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
// Filters are only applied if they declare they apply to the given source.
func (c *Chain) Execute(ctx context.Context, t track.Track, s *Subject, src Source) (Result, string) {
	for _, f := range c.filters {
		if !f.AppliesTo(src) {
			continue
		}

		result := f.Check(ctx, t, s)
		if !result.Accepted {
			return result, f.Name()
		}
	}
	return Accept(), ""
}

// Apply filters tracks in order. Each accepted track is visible to later
// checks as queued.
func (c *Chain) Apply(ctx context.Context, tracks []track.Track, s *Subject, src Source) ([]track.Track, []Rejection) {
	if s == nil {
		s = &Subject{}
	}
	subject := *s
	subject.Queued = append([]track.Track(nil), s.Queued...)

	kept := make([]track.Track, 0, len(tracks))
	var rejected []Rejection
	for i, t := range tracks {
		result, name := c.Execute(ctx, t, &subject, src)
		if !result.Accepted {
			rejected = append(rejected, Rejection{Index: i, Track: t, Filter: name, Code: result.Code})
			zlog.Debug().Msgf("filter: rejected song=%s filter=%s code=%s", t.ID, name, result.Code)
			continue
		}
		kept = append(kept, t)
		subject.Queued = append(subject.Queued, t)
	}
	return kept, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
