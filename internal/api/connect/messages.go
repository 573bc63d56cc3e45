package connect

import (
	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/playlist"
	"github.com/osa030/melodify/internal/domain/track"
)

// Empty is a message without fields.
type Empty struct{}

// VolumeRequest sets the volume, 0..1.
type VolumeRequest struct {
	Volume float64 `json:"volume"`
}

// SeekRequest seeks to Seconds, or to Fraction of the duration when set.
type SeekRequest struct {
	Seconds  float64  `json:"seconds"`
	Fraction *float64 `json:"fraction,omitempty"`
}

// IndexRequest names a queue position.
type IndexRequest struct {
	Index int `json:"index"`
}

// SongRequest names a song.
type SongRequest struct {
	SongID string `json:"song_id"`
}

// PlayPlaylistRequest queues a playlist from Start.
type PlayPlaylistRequest struct {
	PlaylistID string `json:"playlist_id"`
	Start      int    `json:"start"`
}

// PlayArtistRequest queues an artist's songs.
type PlayArtistRequest struct {
	ArtistID string `json:"artist_id"`
}

// PlayGenreRequest queues a genre.
type PlayGenreRequest struct {
	Genre string `json:"genre"`
}

// SearchRequest filters songs by text and genre.
type SearchRequest struct {
	Text  string `json:"text"`
	Genre string `json:"genre"`
}

// SearchResponse lists matching songs.
type SearchResponse struct {
	Songs []track.Track `json:"songs"`
}

// GenresResponse lists catalog genres.
type GenresResponse struct {
	Genres []string `json:"genres"`
}

// PlayResponse reports how many songs were queued and dropped.
type PlayResponse struct {
	Queued   int `json:"queued"`
	Rejected int `json:"rejected"`
}

// LoginRequest signs in with email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// PlaylistsResponse lists playlists.
type PlaylistsResponse struct {
	Playlists []playlist.Playlist `json:"playlists"`
}

// CreatePlaylistRequest creates a playlist.
type CreatePlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	IsPublic    bool   `json:"is_public"`
}

// UpdatePlaylistRequest changes playlist fields.
type UpdatePlaylistRequest struct {
	PlaylistID string                 `json:"playlist_id"`
	Update     catalog.PlaylistUpdate `json:"update"`
}

// PlaylistRequest names a playlist.
type PlaylistRequest struct {
	PlaylistID string `json:"playlist_id"`
}

// PlaylistSongRequest names a song to add to a playlist.
type PlaylistSongRequest struct {
	PlaylistID string `json:"playlist_id"`
	SongID     string `json:"song_id"`
}

// PlaylistEntryRequest names a playlist entry to remove.
type PlaylistEntryRequest struct {
	PlaylistID string `json:"playlist_id"`
	EntryID    string `json:"entry_id"`
}
