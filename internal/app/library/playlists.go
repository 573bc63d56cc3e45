package library

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/playlist"
)

// NewPlaylist holds the fields of a playlist to create.
type NewPlaylist struct {
	Name        string
	Description string
	ImageURL    string
	IsPublic    bool
}

// MyPlaylists lists the signed-in user's playlists.
func (s *Service) MyPlaylists(ctx context.Context) ([]playlist.Playlist, error) {
	userID := s.userID()
	if userID == "" {
		return nil, ErrSignInRequired
	}
	return s.catalog.ListPlaylists(s.authorize(ctx), userID)
}

// CreatePlaylist creates a playlist owned by the signed-in user.
func (s *Service) CreatePlaylist(ctx context.Context, p NewPlaylist) (*playlist.Playlist, error) {
	userID := s.userID()
	if userID == "" {
		return nil, ErrSignInRequired
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errors.Mark(errors.New("playlist name is required"), catalog.ErrInvalidInput)
	}

	created, err := s.catalog.CreatePlaylist(s.authorize(ctx), playlist.Playlist{
		Name:        name,
		UserID:      userID,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		IsPublic:    p.IsPublic,
	})
	if err != nil {
		return nil, err
	}
	zlog.Info().Msgf("library: playlist created id=%s name=%q", created.ID, created.Name)
	return created, nil
}

// owned loads a playlist and checks the signed-in user owns it.
func (s *Service) owned(ctx context.Context, playlistID string) (*playlist.Playlist, error) {
	userID := s.userID()
	if userID == "" {
		return nil, ErrSignInRequired
	}
	p, err := s.catalog.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotOwner
	}
	return p, nil
}

// UpdatePlaylist changes playlist fields.
func (s *Service) UpdatePlaylist(ctx context.Context, playlistID string, u catalog.PlaylistUpdate) (*playlist.Playlist, error) {
	ctx = s.authorize(ctx)
	if _, err := s.owned(ctx, playlistID); err != nil {
		return nil, err
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, errors.Mark(errors.New("playlist name is required"), catalog.ErrInvalidInput)
	}
	return s.catalog.UpdatePlaylist(ctx, playlistID, u)
}

// DeletePlaylist deletes a playlist.
func (s *Service) DeletePlaylist(ctx context.Context, playlistID string) error {
	ctx = s.authorize(ctx)
	if _, err := s.owned(ctx, playlistID); err != nil {
		return err
	}
	return s.catalog.DeletePlaylist(ctx, playlistID)
}

// AddToPlaylist appends a song after the last entry.
func (s *Service) AddToPlaylist(ctx context.Context, playlistID, songID string) (*playlist.Entry, error) {
	ctx = s.authorize(ctx)
	if _, err := s.owned(ctx, playlistID); err != nil {
		return nil, err
	}
	entries, err := s.catalog.PlaylistEntries(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return s.catalog.AddPlaylistEntry(ctx, playlistID, songID, playlist.NextPosition(entries))
}

// RemoveFromPlaylist removes one entry.
func (s *Service) RemoveFromPlaylist(ctx context.Context, playlistID, entryID string) error {
	ctx = s.authorize(ctx)
	if _, err := s.owned(ctx, playlistID); err != nil {
		return err
	}
	return s.catalog.RemovePlaylistEntry(ctx, entryID)
}
