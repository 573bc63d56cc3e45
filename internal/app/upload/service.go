// Package upload adds songs to the catalog, optionally enriching them with
// Spotify metadata and a Last.fm genre.
package upload

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/app/playback"
	"github.com/osa030/melodify/internal/domain/track"
	"github.com/osa030/melodify/internal/infra/spotify"
)

// MetadataSource looks up track metadata by URL, URI or ID.
type MetadataSource interface {
	GetTrack(ctx context.Context, trackRef string) (*spotify.Metadata, error)
}

// GenreSource derives a genre from a track and artist name.
type GenreSource interface {
	Genre(ctx context.Context, trackName, artistName string) (string, error)
}

// Request describes a song to add.
type Request struct {
	Title      string
	Artist     string
	Album      string
	Genre      string
	Duration   int
	ImageURL   string
	MediaURL   string
	IsPremium  bool
	Price      float64
	SpotifyRef string // optional; fills empty fields
}

// Service uploads songs.
type Service struct {
	store    catalog.Uploads
	metadata MetadataSource
	genres   GenreSource
}

// NewService creates an upload service. metadata and genres may be nil.
func NewService(store catalog.Uploads, metadata MetadataSource, genres GenreSource) *Service {
	return &Service{store: store, metadata: metadata, genres: genres}
}

// Upload validates the request, resolves or creates the artist and inserts
// the song.
func (s *Service) Upload(ctx context.Context, req Request) (*track.Track, error) {
	if req.SpotifyRef != "" {
		if err := s.fillFromSpotify(ctx, &req); err != nil {
			return nil, err
		}
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Artist = strings.TrimSpace(req.Artist)
	if err := validate(req); err != nil {
		return nil, err
	}

	if req.Genre == "" && s.genres != nil {
		genre, err := s.genres.Genre(ctx, req.Title, req.Artist)
		if err != nil {
			zlog.Warn().Msgf("upload: no genre for %q by %s: %v", req.Title, req.Artist, err)
		} else {
			req.Genre = genre
		}
	}

	artist, err := s.artist(ctx, req.Artist)
	if err != nil {
		return nil, err
	}

	t := track.Track{
		Title:     req.Title,
		ArtistID:  artist.ID,
		Album:     req.Album,
		Genre:     req.Genre,
		Duration:  req.Duration,
		ImageURL:  req.ImageURL,
		MediaURL:  req.MediaURL,
		IsPremium: req.IsPremium,
	}
	if req.IsPremium {
		price := req.Price
		t.Price = &price
	}

	created, err := s.store.CreateSong(ctx, t)
	if err != nil {
		return nil, err
	}
	created.Artist = artist
	zlog.Info().Msgf("upload: added song id=%s title=%q artist=%s", created.ID, created.Title, artist.Name)
	return created, nil
}

func (s *Service) fillFromSpotify(ctx context.Context, req *Request) error {
	if s.metadata == nil {
		return errors.New("spotify is not configured")
	}
	md, err := s.metadata.GetTrack(ctx, req.SpotifyRef)
	if err != nil {
		return errors.Wrap(err, "failed to load spotify metadata")
	}
	if req.Title == "" {
		req.Title = md.Title
	}
	if req.Artist == "" {
		req.Artist = md.Artist
	}
	if req.Album == "" {
		req.Album = md.Album
	}
	if req.Duration == 0 {
		req.Duration = md.Duration
	}
	if req.ImageURL == "" {
		req.ImageURL = md.ImageURL
	}
	return nil
}

func validate(req Request) error {
	switch {
	case req.Title == "":
		return errors.Mark(errors.New("title is required"), catalog.ErrInvalidInput)
	case req.Artist == "":
		return errors.Mark(errors.New("artist is required"), catalog.ErrInvalidInput)
	case req.IsPremium && req.Price <= 0:
		return errors.Mark(errors.New("premium songs must have a price"), catalog.ErrInvalidInput)
	case req.Duration < 0:
		return errors.Mark(errors.Newf("invalid duration %d", req.Duration), catalog.ErrInvalidInput)
	}
	if _, ok := playback.ResolveMediaID(req.MediaURL); !ok {
		return errors.Mark(errors.Newf("no media id in %q", req.MediaURL), catalog.ErrInvalidInput)
	}
	return nil
}

// artist returns the artist with that name, creating it when missing.
func (s *Service) artist(ctx context.Context, name string) (*track.Artist, error) {
	a, err := s.store.FindArtistByName(ctx, name)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}
	a, err = s.store.CreateArtist(ctx, track.Artist{Name: name})
	if err != nil {
		return nil, err
	}
	zlog.Info().Msgf("upload: created artist id=%s name=%s", a.ID, a.Name)
	return a, nil
}
