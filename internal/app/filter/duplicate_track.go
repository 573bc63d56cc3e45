package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/melodify/internal/domain/track"
)

// DuplicateTrackFilter rejects tracks already queued.
// Detects:
// - Exact song ID matches
// - Remasters and alternate versions (normalized title + same artist)
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Drops songs already in the queue, including remastered and live versions. Covers by other artists are kept"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which sources this filter applies to.
// Playlists keep their curated order, repeats included.
func (f *DuplicateTrackFilter) AppliesTo(src Source) bool {
	return src != SourcePlaylist
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, requested track.Track, s *Subject) Result {
	if s == nil {
		return Accept()
	}
	for _, queued := range s.Queued {
		if queued.ID == requested.ID || f.isRemaster(queued, requested) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

// isRemaster checks if two tracks are the same song in another version.
func (f *DuplicateTrackFilter) isRemaster(track1, track2 track.Track) bool {
	name1 := normalizeTrackName(track1.Title)
	name2 := normalizeTrackName(track2.Title)

	// If normalized names don't match, they're different songs
	if name1 != name2 {
		return false
	}

	// Same normalized name - check if same artist
	// If different artists, it's a cover song (allowed)
	return isSameArtist(track1, track2)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),         // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),            // "(Radio Edit)"
		regexp.MustCompile(`\s*\(lyric(al)?\s+video\)`), // "(Lyrical Video)"
		regexp.MustCompile(`\s*\(official.*?\)`),        // "(Official Video)"
		regexp.MustCompile(`\s*-?\s*live`),              // "- Live"
		regexp.MustCompile(`\s*\(live\)`),               // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),      // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`),  // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

// isSameArtist compares artist IDs, falling back to joined artist names.
func isSameArtist(track1, track2 track.Track) bool {
	if track1.ArtistID != "" && track2.ArtistID != "" {
		return track1.ArtistID == track2.ArtistID
	}
	if track1.Artist == nil || track2.Artist == nil || track1.Artist.Name == "" {
		return false
	}
	return strings.EqualFold(track1.Artist.Name, track2.Artist.Name)
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
