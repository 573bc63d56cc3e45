package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/track"
)

const songColumns = `s.id::text, s.title, s.artist_id::text, COALESCE(s.album, ''), COALESCE(s.genre, ''),
	COALESCE(s.duration, 0), COALESCE(s.image_url, ''), s.song_url, s.is_premium, s.price, s.created_at,
	COALESCE(a.id::text, ''), COALESCE(a.name, ''), COALESCE(a.image_url, ''), COALESCE(a.bio, ''),
	COALESCE(a.created_at, s.created_at)`

const songFrom = `songs s LEFT JOIN artists a ON a.id = s.artist_id`

const artistColumns = `id::text, name, COALESCE(image_url, ''), COALESCE(bio, ''), created_at`

func scanSong(row scanner, extra ...any) (*track.Track, error) {
	var t track.Track
	var a track.Artist
	dest := append(extra,
		&t.ID, &t.Title, &t.ArtistID, &t.Album, &t.Genre,
		&t.Duration, &t.ImageURL, &t.MediaURL, &t.IsPremium, &t.Price, &t.CreatedAt,
		&a.ID, &a.Name, &a.ImageURL, &a.Bio, &a.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if a.ID != "" {
		t.Artist = &a
	}
	return &t, nil
}

func scanArtist(row scanner) (*track.Artist, error) {
	var a track.Artist
	if err := row.Scan(&a.ID, &a.Name, &a.ImageURL, &a.Bio, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetSong returns a song with its artist joined.
func (s *Store) GetSong(ctx context.Context, id string) (*track.Track, error) {
	row := s.db.QueryRow(ctx, `SELECT `+songColumns+` FROM `+songFrom+` WHERE s.id = $1`, id)
	t, err := scanSong(row)
	if err != nil {
		return nil, notFound(err, "failed to get song %s", id)
	}
	return t, nil
}

// ListSongs returns songs newest first.
func (s *Store) ListSongs(ctx context.Context, q catalog.SongQuery) ([]track.Track, error) {
	var where []string
	var args []any
	if q.ArtistID != "" {
		args = append(args, q.ArtistID)
		where = append(where, fmt.Sprintf("s.artist_id = $%d", len(args)))
	}
	if q.Genre != "" {
		args = append(args, q.Genre)
		where = append(where, fmt.Sprintf("s.genre = $%d", len(args)))
	}

	sql := `SELECT ` + songColumns + ` FROM ` + songFrom
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY s.created_at DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list songs")
	}
	defer rows.Close()

	tracks := make([]track.Track, 0)
	for rows.Next() {
		t, err := scanSong(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan song")
		}
		tracks = append(tracks, *t)
	}
	return tracks, errors.Wrap(rows.Err(), "failed to list songs")
}

// GetArtist returns an artist.
func (s *Store) GetArtist(ctx context.Context, id string) (*track.Artist, error) {
	row := s.db.QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = $1`, id)
	a, err := scanArtist(row)
	if err != nil {
		return nil, notFound(err, "failed to get artist %s", id)
	}
	return a, nil
}

// ListArtists returns artists by name.
func (s *Store) ListArtists(ctx context.Context) ([]track.Artist, error) {
	rows, err := s.db.Query(ctx, `SELECT `+artistColumns+` FROM artists ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list artists")
	}
	defer rows.Close()

	artists := make([]track.Artist, 0)
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan artist")
		}
		artists = append(artists, *a)
	}
	return artists, errors.Wrap(rows.Err(), "failed to list artists")
}

// FindArtistByName returns the artist with exactly that name.
func (s *Store) FindArtistByName(ctx context.Context, name string) (*track.Artist, error) {
	row := s.db.QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE name = $1 LIMIT 1`, name)
	a, err := scanArtist(row)
	if err != nil {
		return nil, notFound(err, "failed to find artist %q", name)
	}
	return a, nil
}

// CreateArtist inserts an artist.
func (s *Store) CreateArtist(ctx context.Context, a track.Artist) (*track.Artist, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO artists (name, image_url, bio) VALUES ($1, NULLIF($2, ''), NULLIF($3, '')) RETURNING `+artistColumns,
		a.Name, a.ImageURL, a.Bio)
	created, err := scanArtist(row)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create artist")
	}
	return created, nil
}

// CreateSong inserts a song. The returned track has no artist joined.
func (s *Store) CreateSong(ctx context.Context, t track.Track) (*track.Track, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO songs (title, artist_id, album, genre, duration, image_url, song_url, is_premium, price)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9)
		RETURNING id::text, created_at`,
		t.Title, t.ArtistID, t.Album, t.Genre, t.Duration, t.ImageURL, t.MediaURL, t.IsPremium, t.Price,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create song")
	}
	t.Artist = nil
	return &t, nil
}
