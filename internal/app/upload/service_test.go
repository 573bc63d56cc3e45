package upload

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/track"
	"github.com/osa030/melodify/internal/infra/lastfm"
	"github.com/osa030/melodify/internal/infra/spotify"
)

type fakeStore struct {
	artists map[string]track.Artist
	songs   []track.Track
	created int
}

func (f *fakeStore) FindArtistByName(ctx context.Context, name string) (*track.Artist, error) {
	a, ok := f.artists[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("artist %q", name), catalog.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeStore) CreateArtist(ctx context.Context, a track.Artist) (*track.Artist, error) {
	f.created++
	a.ID = "artist-new"
	f.artists[a.Name] = a
	return &a, nil
}

func (f *fakeStore) CreateSong(ctx context.Context, t track.Track) (*track.Track, error) {
	t.ID = "song-new"
	f.songs = append(f.songs, t)
	return &t, nil
}

type fakeMetadata struct{}

func (fakeMetadata) GetTrack(ctx context.Context, ref string) (*spotify.Metadata, error) {
	return &spotify.Metadata{
		SpotifyID: "4uLU6hMCjMI75M1A2tKUQC",
		Title:     "Enjoy Enjaami",
		Artist:    "Dhee",
		Album:     "Enjoy Enjaami",
		Duration:  256,
		ImageURL:  "https://i.scdn.co/image/cover",
	}, nil
}

type fakeGenres struct {
	genre string
	err   error
}

func (f fakeGenres) Genre(ctx context.Context, trackName, artistName string) (string, error) {
	return f.genre, f.err
}

func newStore() *fakeStore {
	return &fakeStore{artists: map[string]track.Artist{"Anirudh": {ID: "artist-1", Name: "Anirudh"}}}
}

func TestService_UploadExistingArtist(t *testing.T) {
	store := newStore()
	svc := NewService(store, nil, fakeGenres{genre: "Tamil"})

	got, err := svc.Upload(context.Background(), Request{
		Title:     " Arabic Kuthu ",
		Artist:    "Anirudh",
		MediaURL:  "https://youtu.be/KUN5Uf9mObQ",
		IsPremium: true,
		Price:     1.29,
	})
	require.NoError(t, err)

	assert.Equal(t, "song-new", got.ID)
	assert.Equal(t, "Arabic Kuthu", got.Title)
	assert.Equal(t, "artist-1", got.ArtistID)
	assert.Equal(t, "Tamil", got.Genre)
	require.NotNil(t, got.Price)
	assert.InDelta(t, 1.29, *got.Price, 1e-9)
	assert.Equal(t, "Anirudh", got.ArtistName())
	assert.Zero(t, store.created)
}

func TestService_UploadCreatesArtistFromSpotify(t *testing.T) {
	store := newStore()
	svc := NewService(store, fakeMetadata{}, fakeGenres{err: lastfm.ErrNoTags})

	got, err := svc.Upload(context.Background(), Request{
		MediaURL:   "https://www.youtube.com/watch?v=VPWRmBu4DaM",
		SpotifyRef: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, store.created)
	assert.Equal(t, "artist-new", got.ArtistID)
	assert.Equal(t, "Enjoy Enjaami", got.Title)
	assert.Equal(t, 256, got.Duration)
	assert.Equal(t, "https://i.scdn.co/image/cover", got.ImageURL)
	assert.Empty(t, got.Genre)
	assert.Nil(t, got.Price)
}

func TestService_UploadValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no title", req: Request{Artist: "Anirudh", MediaURL: "https://youtu.be/KUN5Uf9mObQ"}},
		{name: "no artist", req: Request{Title: "Song", MediaURL: "https://youtu.be/KUN5Uf9mObQ"}},
		{name: "premium without price", req: Request{Title: "Song", Artist: "Anirudh", MediaURL: "https://youtu.be/KUN5Uf9mObQ", IsPremium: true}},
		{name: "negative duration", req: Request{Title: "Song", Artist: "Anirudh", MediaURL: "https://youtu.be/KUN5Uf9mObQ", Duration: -1}},
		{name: "no media id", req: Request{Title: "Song", Artist: "Anirudh", MediaURL: "https://example.com/song.mp3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			_, err := NewService(store, nil, nil).Upload(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, catalog.ErrInvalidInput))
			assert.Empty(t, store.songs)
		})
	}
}

func TestService_SpotifyNotConfigured(t *testing.T) {
	_, err := NewService(newStore(), nil, nil).Upload(context.Background(), Request{SpotifyRef: "x"})
	assert.Error(t, err)
}
