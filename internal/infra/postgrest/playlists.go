package postgrest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/playlist"
)

const entrySelect = "*,song:songs(*,artist:artists(*))"

// ListPlaylists returns a user's playlists, newest first.
func (c *Client) ListPlaylists(ctx context.Context, userID string) ([]playlist.Playlist, error) {
	playlists := make([]playlist.Playlist, 0)
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "playlists",
		query:  url.Values{"select": {"*"}, "user_id": {eq(userID)}, "order": {"created_at.desc"}},
	}, &playlists)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list playlists")
	}
	return playlists, nil
}

// GetPlaylist returns a playlist with its songs in position order.
func (c *Client) GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	var p playlist.Playlist
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "playlists",
		query:  url.Values{"select": {"*"}, "id": {eq(id)}},
		single: true,
	}, &p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist %s", id)
	}

	entries, err := c.PlaylistEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Songs = playlist.Tracks(entries)
	return &p, nil
}

type playlistInsert struct {
	Name        string `json:"name"`
	UserID      string `json:"user_id"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	IsPublic    bool   `json:"is_public"`
}

// CreatePlaylist inserts a playlist.
func (c *Client) CreatePlaylist(ctx context.Context, p playlist.Playlist) (*playlist.Playlist, error) {
	var created playlist.Playlist
	err := c.do(ctx, request{
		method: http.MethodPost,
		table:  "playlists",
		body: playlistInsert{
			Name:        p.Name,
			UserID:      p.UserID,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			IsPublic:    p.IsPublic,
		},
		single: true,
		write:  true,
	}, &created)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create playlist")
	}
	return &created, nil
}

// UpdatePlaylist applies u to a playlist.
func (c *Client) UpdatePlaylist(ctx context.Context, id string, u catalog.PlaylistUpdate) (*playlist.Playlist, error) {
	var updated playlist.Playlist
	err := c.do(ctx, request{
		method: http.MethodPatch,
		table:  "playlists",
		query:  url.Values{"id": {eq(id)}},
		body:   u,
		single: true,
		write:  true,
	}, &updated)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update playlist %s", id)
	}
	return &updated, nil
}

// DeletePlaylist removes a playlist.
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	err := c.do(ctx, request{
		method: http.MethodDelete,
		table:  "playlists",
		query:  url.Values{"id": {eq(id)}},
	}, nil)
	return errors.Wrapf(err, "failed to delete playlist %s", id)
}

// PlaylistEntries returns the entries of a playlist with songs joined,
// ordered by position.
func (c *Client) PlaylistEntries(ctx context.Context, playlistID string) ([]playlist.Entry, error) {
	entries := make([]playlist.Entry, 0)
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "playlist_songs",
		query:  url.Values{"select": {entrySelect}, "playlist_id": {eq(playlistID)}, "order": {"position.asc"}},
	}, &entries)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list entries of playlist %s", playlistID)
	}
	return entries, nil
}

type entryInsert struct {
	PlaylistID string `json:"playlist_id"`
	SongID     string `json:"song_id"`
	Position   int    `json:"position"`
}

// AddPlaylistEntry adds a song at position.
func (c *Client) AddPlaylistEntry(ctx context.Context, playlistID, songID string, position int) (*playlist.Entry, error) {
	var created playlist.Entry
	err := c.do(ctx, request{
		method: http.MethodPost,
		table:  "playlist_songs",
		body:   entryInsert{PlaylistID: playlistID, SongID: songID, Position: position},
		single: true,
		write:  true,
	}, &created)
	if err != nil {
		return nil, errors.Wrap(err, "failed to add playlist entry")
	}
	return &created, nil
}

// RemovePlaylistEntry removes a playlist entry by its id.
func (c *Client) RemovePlaylistEntry(ctx context.Context, entryID string) error {
	err := c.do(ctx, request{
		method: http.MethodDelete,
		table:  "playlist_songs",
		query:  url.Values{"id": {eq(entryID)}},
	}, nil)
	return errors.Wrapf(err, "failed to remove playlist entry %s", entryID)
}
