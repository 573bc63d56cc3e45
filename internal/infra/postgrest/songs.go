package postgrest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/track"
)

// GetSong returns a song with its artist joined.
func (c *Client) GetSong(ctx context.Context, id string) (*track.Track, error) {
	var t track.Track
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "songs",
		query:  url.Values{"select": {songSelect}, "id": {eq(id)}},
		single: true,
	}, &t)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get song %s", id)
	}
	return &t, nil
}

// ListSongs returns songs newest first.
func (c *Client) ListSongs(ctx context.Context, q catalog.SongQuery) ([]track.Track, error) {
	query := url.Values{"select": {songSelect}, "order": {"created_at.desc"}}
	if q.ArtistID != "" {
		query.Set("artist_id", eq(q.ArtistID))
	}
	if q.Genre != "" {
		query.Set("genre", eq(q.Genre))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	tracks := make([]track.Track, 0)
	if err := c.do(ctx, request{method: http.MethodGet, table: "songs", query: query}, &tracks); err != nil {
		return nil, errors.Wrap(err, "failed to list songs")
	}
	return tracks, nil
}

// GetArtist returns an artist.
func (c *Client) GetArtist(ctx context.Context, id string) (*track.Artist, error) {
	var a track.Artist
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "artists",
		query:  url.Values{"select": {"*"}, "id": {eq(id)}},
		single: true,
	}, &a)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get artist %s", id)
	}
	return &a, nil
}

// ListArtists returns artists by name.
func (c *Client) ListArtists(ctx context.Context) ([]track.Artist, error) {
	artists := make([]track.Artist, 0)
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "artists",
		query:  url.Values{"select": {"*"}, "order": {"name.asc"}},
	}, &artists)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list artists")
	}
	return artists, nil
}

// FindArtistByName returns the artist with exactly that name.
func (c *Client) FindArtistByName(ctx context.Context, name string) (*track.Artist, error) {
	var a track.Artist
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "artists",
		query:  url.Values{"select": {"*"}, "name": {eq(name)}, "limit": {"1"}},
		single: true,
	}, &a)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find artist %q", name)
	}
	return &a, nil
}

type artistInsert struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// CreateArtist inserts an artist.
func (c *Client) CreateArtist(ctx context.Context, a track.Artist) (*track.Artist, error) {
	var created track.Artist
	err := c.do(ctx, request{
		method: http.MethodPost,
		table:  "artists",
		body:   artistInsert{Name: a.Name, ImageURL: a.ImageURL, Bio: a.Bio},
		single: true,
		write:  true,
	}, &created)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create artist")
	}
	return &created, nil
}

type songInsert struct {
	Title     string   `json:"title"`
	ArtistID  string   `json:"artist_id"`
	Album     string   `json:"album,omitempty"`
	Genre     string   `json:"genre,omitempty"`
	Duration  int      `json:"duration"`
	ImageURL  string   `json:"image_url,omitempty"`
	SongURL   string   `json:"song_url"`
	IsPremium bool     `json:"is_premium"`
	Price     *float64 `json:"price"`
}

// CreateSong inserts a song.
func (c *Client) CreateSong(ctx context.Context, t track.Track) (*track.Track, error) {
	var created track.Track
	err := c.do(ctx, request{
		method: http.MethodPost,
		table:  "songs",
		query:  url.Values{"select": {songSelect}},
		body: songInsert{
			Title:     t.Title,
			ArtistID:  t.ArtistID,
			Album:     t.Album,
			Genre:     t.Genre,
			Duration:  t.Duration,
			ImageURL:  t.ImageURL,
			SongURL:   t.MediaURL,
			IsPremium: t.IsPremium,
			Price:     t.Price,
		},
		single: true,
		write:  true,
	}, &created)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create song")
	}
	return &created, nil
}
