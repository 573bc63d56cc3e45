package filter

import (
	"context"

	"github.com/osa030/melodify/internal/app/playback"
	"github.com/osa030/melodify/internal/domain/track"
)

// MediaFilter drops songs whose media URL has no resolvable video id.
type MediaFilter struct{}

func (f *MediaFilter) Name() string {
	return "media_filter"
}

func (f *MediaFilter) Description() string {
	return "Drops songs that cannot be played by the widget"
}

func (f *MediaFilter) ReturnCodes() []string {
	return []string{"unplayable_media"}
}

func (f *MediaFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *MediaFilter) AppliesTo(src Source) bool {
	return true
}

func (f *MediaFilter) Check(ctx context.Context, t track.Track, s *Subject) Result {
	if _, ok := playback.ResolveMediaID(t.MediaURL); !ok {
		return Reject("unplayable_media")
	}
	return Accept()
}

func init() {
	Register("media_filter", func() Filter {
		return &MediaFilter{}
	})
}
