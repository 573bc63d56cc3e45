package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melodify/internal/domain/track"
)

func song(id string) track.Track {
	return track.Track{
		ID:       id,
		Title:    "Song " + id,
		MediaURL: "https://www.youtube.com/watch?v=EhhiY11Z9-U",
		Duration: 200,
	}
}

func TestMediaFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		mediaURL     string
		wantAccepted bool
	}{
		{name: "watch url", mediaURL: "https://www.youtube.com/watch?v=EhhiY11Z9-U", wantAccepted: true},
		{name: "short url", mediaURL: "https://youtu.be/rpIlP6pI8fo?si=abc", wantAccepted: true},
		{name: "empty", mediaURL: "", wantAccepted: false},
		{name: "not a video", mediaURL: "https://example.com/song.mp3", wantAccepted: false},
	}

	f := &MediaFilter{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trk := song("s1")
			trk.MediaURL = tt.mediaURL

			result := f.Check(context.Background(), trk, &Subject{})

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "unplayable_media", result.Code)
			}
		})
	}
}

func TestPremiumFilter_Check(t *testing.T) {
	premium := song("premium")
	premium.IsPremium = true

	tests := []struct {
		name         string
		settings     map[string]any
		trk          track.Track
		subject      *Subject
		wantAccepted bool
	}{
		{name: "free song", trk: song("free"), subject: &Subject{}, wantAccepted: true},
		{name: "purchased", trk: premium, subject: &Subject{UserID: "u1", Owned: map[string]bool{"premium": true}}, wantAccepted: true},
		{name: "not purchased", trk: premium, subject: &Subject{UserID: "u1", Owned: map[string]bool{"other": true}}, wantAccepted: false},
		{name: "anonymous", trk: premium, subject: &Subject{}, wantAccepted: false},
		{name: "anonymous allowed", settings: map[string]any{"allow_anonymous": true}, trk: premium, subject: nil, wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &PremiumFilter{}
			require.NoError(t, f.ValidateConfig(tt.settings))

			result := f.Check(context.Background(), tt.trk, tt.subject)

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "premium_not_purchased", result.Code)
			}
		})
	}
}

func TestFilters_AppliesTo(t *testing.T) {
	sources := []Source{SourcePlaylist, SourceArtist, SourceGenre, SourceSearch, SourceAppend}

	tests := []struct {
		filter Filter
		want   map[Source]bool
	}{
		{filter: &MediaFilter{}, want: map[Source]bool{SourcePlaylist: true, SourceArtist: true, SourceGenre: true, SourceSearch: true, SourceAppend: true}},
		{filter: &PremiumFilter{}, want: map[Source]bool{SourcePlaylist: true, SourceArtist: true, SourceGenre: true, SourceSearch: true, SourceAppend: true}},
		{filter: NewDurationLimitFilter(), want: map[Source]bool{SourcePlaylist: true, SourceArtist: true, SourceGenre: true, SourceSearch: true, SourceAppend: true}},
		{filter: NewDuplicateTrackFilter(), want: map[Source]bool{SourcePlaylist: false, SourceArtist: true, SourceGenre: true, SourceSearch: true, SourceAppend: true}},
	}

	for _, tt := range tests {
		t.Run(tt.filter.Name(), func(t *testing.T) {
			for _, src := range sources {
				assert.Equal(t, tt.want[src], tt.filter.AppliesTo(src), "source %s", src)
			}
		})
	}
}

func TestChain_Apply(t *testing.T) {
	c := NewChain()
	c.Add(&MediaFilter{})
	c.Add(NewDuplicateTrackFilter())

	broken := song("broken")
	broken.MediaURL = "not a url"

	tracks := []track.Track{song("a"), broken, song("b"), song("a")}
	queued := []track.Track{song("b")}

	t.Run("artist source drops duplicates", func(t *testing.T) {
		subject := &Subject{Queued: queued}
		kept, rejected := c.Apply(context.Background(), tracks, subject, SourceArtist)

		require.Len(t, kept, 1)
		assert.Equal(t, "a", kept[0].ID)

		require.Len(t, rejected, 3)
		assert.Equal(t, Rejection{Index: 1, Track: broken, Filter: "media_filter", Code: "unplayable_media"}, rejected[0])
		assert.Equal(t, "duplicate_track", rejected[1].Code)
		assert.Equal(t, "b", rejected[1].Track.ID)
		assert.Equal(t, "duplicate_track", rejected[2].Code)

		// Caller's subject is untouched.
		assert.Len(t, subject.Queued, 1)
	})

	t.Run("playlist source keeps repeats", func(t *testing.T) {
		kept, rejected := c.Apply(context.Background(), tracks, nil, SourcePlaylist)

		ids := make([]string, len(kept))
		for i, trk := range kept {
			ids[i] = trk.ID
		}
		assert.Equal(t, []string{"a", "b", "a"}, ids)
		assert.Len(t, rejected, 1)
	})
}

func TestChain_ExecuteStopsAtFirstRejection(t *testing.T) {
	c := NewChain()
	c.Add(&MediaFilter{})
	c.Add(&PremiumFilter{})

	trk := song("x")
	trk.MediaURL = ""
	trk.IsPremium = true

	result, name := c.Execute(context.Background(), trk, &Subject{}, SourceGenre)
	assert.False(t, result.Accepted)
	assert.Equal(t, "media_filter", name)
	assert.Equal(t, "unplayable_media", result.Code)

	result, name = NewChain().Execute(context.Background(), trk, &Subject{}, SourceGenre)
	assert.True(t, result.Accepted)
	assert.Empty(t, name)
}

func TestBuild(t *testing.T) {
	enabled := map[string]bool{"media_filter": true, "duration_limit_filter": true}
	settings := map[string]map[string]any{
		"duration_limit_filter": {"min_minutes": 2, "max_minutes": 8},
	}

	c, err := Build(
		func(name string) bool { return enabled[name] },
		func(name string) map[string]any { return settings[name] },
	)
	require.NoError(t, err)

	names := make([]string, 0, len(c.Filters()))
	for _, f := range c.Filters() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"duration_limit_filter", "media_filter"}, names)

	settings["duration_limit_filter"] = map[string]any{"min_minutes": 10, "max_minutes": 5}
	_, err = Build(
		func(name string) bool { return enabled[name] },
		func(name string) map[string]any { return settings[name] },
	)
	assert.ErrorContains(t, err, "duration_limit_filter")
}

func TestRegistered(t *testing.T) {
	registered := GetRegistered()
	for _, name := range []string{"media_filter", "premium_filter", "duplicate_track_filter", "duration_limit_filter"} {
		factory, ok := registered[name]
		require.True(t, ok, name)
		assert.Equal(t, name, factory().Name())
		assert.NotEmpty(t, factory().ReturnCodes())
	}
}
