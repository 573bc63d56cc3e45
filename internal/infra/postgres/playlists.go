package postgres

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/playlist"
)

const playlistColumns = `id::text, name, user_id::text, COALESCE(description, ''), COALESCE(image_url, ''), is_public, created_at`

func scanPlaylist(row scanner) (*playlist.Playlist, error) {
	var p playlist.Playlist
	if err := row.Scan(&p.ID, &p.Name, &p.UserID, &p.Description, &p.ImageURL, &p.IsPublic, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlaylists returns a user's playlists, newest first.
func (s *Store) ListPlaylists(ctx context.Context, userID string) ([]playlist.Playlist, error) {
	rows, err := s.db.Query(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list playlists")
	}
	defer rows.Close()

	playlists := make([]playlist.Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist")
		}
		playlists = append(playlists, *p)
	}
	return playlists, errors.Wrap(rows.Err(), "failed to list playlists")
}

// GetPlaylist returns a playlist with its songs in position order.
func (s *Store) GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	p, err := scanPlaylist(s.db.QueryRow(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "failed to get playlist %s", id)
	}

	entries, err := s.PlaylistEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Songs = playlist.Tracks(entries)
	return p, nil
}

// CreatePlaylist inserts a playlist.
func (s *Store) CreatePlaylist(ctx context.Context, p playlist.Playlist) (*playlist.Playlist, error) {
	created, err := scanPlaylist(s.db.QueryRow(ctx,
		`INSERT INTO playlists (name, user_id, description, image_url, is_public)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5) RETURNING `+playlistColumns,
		p.Name, p.UserID, p.Description, p.ImageURL, p.IsPublic))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create playlist")
	}
	return created, nil
}

// UpdatePlaylist applies u to a playlist.
func (s *Store) UpdatePlaylist(ctx context.Context, id string, u catalog.PlaylistUpdate) (*playlist.Playlist, error) {
	updated, err := scanPlaylist(s.db.QueryRow(ctx,
		`UPDATE playlists SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			image_url = COALESCE($4, image_url),
			is_public = COALESCE($5, is_public)
		WHERE id = $1 RETURNING `+playlistColumns,
		id, u.Name, u.Description, u.ImageURL, u.IsPublic))
	if err != nil {
		return nil, notFound(err, "failed to update playlist %s", id)
	}
	return updated, nil
}

// DeletePlaylist removes a playlist.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete playlist %s", id)
	}
	return affectedOne(tag, "playlist", id)
}

// PlaylistEntries returns the entries of a playlist with songs joined,
// ordered by position.
func (s *Store) PlaylistEntries(ctx context.Context, playlistID string) ([]playlist.Entry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT ps.id::text, ps.playlist_id::text, ps.song_id::text, ps.position, ps.created_at, `+songColumns+`
		FROM playlist_songs ps
		JOIN songs s ON s.id = ps.song_id
		LEFT JOIN artists a ON a.id = s.artist_id
		WHERE ps.playlist_id = $1 ORDER BY ps.position`, playlistID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list entries of playlist %s", playlistID)
	}
	defer rows.Close()

	entries := make([]playlist.Entry, 0)
	for rows.Next() {
		var e playlist.Entry
		song, err := scanSong(rows, &e.ID, &e.PlaylistID, &e.SongID, &e.Position, &e.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist entry")
		}
		e.Song = song
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to list playlist entries")
}

// AddPlaylistEntry adds a song at position.
func (s *Store) AddPlaylistEntry(ctx context.Context, playlistID, songID string, position int) (*playlist.Entry, error) {
	e := playlist.Entry{PlaylistID: playlistID, SongID: songID, Position: position}
	err := s.db.QueryRow(ctx,
		`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES ($1, $2, $3) RETURNING id::text, created_at`,
		playlistID, songID, position).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to add playlist entry")
	}
	return &e, nil
}

// RemovePlaylistEntry removes a playlist entry by its id.
func (s *Store) RemovePlaylistEntry(ctx context.Context, entryID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM playlist_songs WHERE id = $1`, entryID)
	if err != nil {
		return errors.Wrapf(err, "failed to remove playlist entry %s", entryID)
	}
	return affectedOne(tag, "playlist entry", entryID)
}
