// Package catalog defines the read and write surface of the music catalog
// shared by the REST and Postgres backends.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/domain/playlist"
	"github.com/osa030/melodify/internal/domain/purchase"
	"github.com/osa030/melodify/internal/domain/track"
)

// Errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SongQuery filters song listings. Zero values match everything.
type SongQuery struct {
	ArtistID string
	Genre    string
	Limit    int
}

// PlaylistUpdate holds the mutable playlist fields. Nil means unchanged.
type PlaylistUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// Songs reads songs and artists.
type Songs interface {
	GetSong(ctx context.Context, id string) (*track.Track, error)
	ListSongs(ctx context.Context, q SongQuery) ([]track.Track, error)
	GetArtist(ctx context.Context, id string) (*track.Artist, error)
	ListArtists(ctx context.Context) ([]track.Artist, error)
}

// Uploads adds songs and artists.
type Uploads interface {
	FindArtistByName(ctx context.Context, name string) (*track.Artist, error)
	CreateArtist(ctx context.Context, a track.Artist) (*track.Artist, error)
	CreateSong(ctx context.Context, t track.Track) (*track.Track, error)
}

// Playlists manages user playlists and their entries.
type Playlists interface {
	ListPlaylists(ctx context.Context, userID string) ([]playlist.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error)
	CreatePlaylist(ctx context.Context, p playlist.Playlist) (*playlist.Playlist, error)
	UpdatePlaylist(ctx context.Context, id string, u PlaylistUpdate) (*playlist.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	PlaylistEntries(ctx context.Context, playlistID string) ([]playlist.Entry, error)
	AddPlaylistEntry(ctx context.Context, playlistID, songID string, position int) (*playlist.Entry, error)
	RemovePlaylistEntry(ctx context.Context, entryID string) error
}

// Purchases records premium song purchases.
type Purchases interface {
	ListPurchases(ctx context.Context, userID string) ([]purchase.Purchase, error)
	CreatePurchase(ctx context.Context, p purchase.Purchase) (*purchase.Purchase, error)
	CompletePurchase(ctx context.Context, purchaseID string) (*purchase.Purchase, error)
	HasPurchased(ctx context.Context, userID, songID string) (bool, error)
}

// Store is the full catalog.
type Store interface {
	Songs
	Uploads
	Playlists
	Purchases
}

type tokenKey struct{}

// WithAccessToken returns a context carrying the end-user access token.
// Backends that enforce row-level security act on behalf of that user.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessToken returns the access token stored by WithAccessToken.
func AccessToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}
