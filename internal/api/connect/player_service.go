package connect

import (
	"context"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/app/library"
	"github.com/osa030/melodify/internal/app/notification"
	"github.com/osa030/melodify/internal/app/session"
	"github.com/osa030/melodify/internal/domain/playlist"
)

// PlayerService implements the player control RPCs.
type PlayerService struct {
	session *session.Manager
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(session *session.Manager) *PlayerService {
	return &PlayerService{session: session}
}

func (s *PlayerService) status() *session.Status {
	return s.session.GetStatus()
}

// GetState returns the full session state.
func (s *PlayerService) GetState(ctx context.Context, _ *Empty) (*session.Status, error) {
	return s.status(), nil
}

// Play resumes playback.
func (s *PlayerService) Play(ctx context.Context, _ *Empty) (*session.Status, error) {
	s.session.Player().Play()
	return s.status(), nil
}

// Pause pauses playback.
func (s *PlayerService) Pause(ctx context.Context, _ *Empty) (*session.Status, error) {
	s.session.Player().Pause()
	return s.status(), nil
}

// TogglePlay flips between playing and paused.
func (s *PlayerService) TogglePlay(ctx context.Context, _ *Empty) (*session.Status, error) {
	s.session.Player().TogglePlay()
	return s.status(), nil
}

// SetVolume sets the volume.
func (s *PlayerService) SetVolume(ctx context.Context, req *VolumeRequest) (*session.Status, error) {
	s.session.Player().SetVolume(req.Volume)
	return s.status(), nil
}

// ToggleMute mutes or restores the volume.
func (s *PlayerService) ToggleMute(ctx context.Context, _ *Empty) (*session.Status, error) {
	s.session.Player().ToggleMute()
	return s.status(), nil
}

// Seek moves the playback position.
func (s *PlayerService) Seek(ctx context.Context, req *SeekRequest) (*session.Status, error) {
	var err error
	if req.Fraction != nil {
		err = s.session.Adapter().SeekFraction(*req.Fraction)
	} else {
		err = s.session.Adapter().UserSeek(req.Seconds)
	}
	if err != nil {
		return nil, err
	}
	return s.status(), nil
}

// Next advances the queue.
func (s *PlayerService) Next(ctx context.Context, _ *Empty) (*session.Status, error) {
	s.session.Queue().NextSong()
	return s.status(), nil
}

// Previous steps the queue back.
func (s *PlayerService) Previous(ctx context.Context, _ *Empty) (*session.Status, error) {
	s.session.Queue().PreviousSong()
	return s.status(), nil
}

// RemoveFromQueue removes the song at an index.
func (s *PlayerService) RemoveFromQueue(ctx context.Context, req *IndexRequest) (*session.Status, error) {
	s.session.Queue().RemoveFromQueue(req.Index)
	return s.status(), nil
}

// ClearQueue empties the queue.
func (s *PlayerService) ClearQueue(ctx context.Context, _ *Empty) (*session.Status, error) {
	s.session.Queue().ClearQueue()
	return s.status(), nil
}

func playResponse(r *library.PlayResult, err error) (*PlayResponse, error) {
	if err != nil {
		return nil, err
	}
	return &PlayResponse{Queued: r.Queued, Rejected: len(r.Rejected)}, nil
}

// PlayPlaylist queues a playlist.
func (s *PlayerService) PlayPlaylist(ctx context.Context, req *PlayPlaylistRequest) (*PlayResponse, error) {
	return playResponse(s.session.Library().PlayPlaylist(ctx, req.PlaylistID, req.Start))
}

// PlayArtist queues an artist.
func (s *PlayerService) PlayArtist(ctx context.Context, req *PlayArtistRequest) (*PlayResponse, error) {
	return playResponse(s.session.Library().PlayArtist(ctx, req.ArtistID))
}

// PlayGenre queues a genre.
func (s *PlayerService) PlayGenre(ctx context.Context, req *PlayGenreRequest) (*PlayResponse, error) {
	return playResponse(s.session.Library().PlayGenre(ctx, req.Genre))
}

// PlaySearch queues the songs matching a search.
func (s *PlayerService) PlaySearch(ctx context.Context, req *SearchRequest) (*PlayResponse, error) {
	return playResponse(s.session.Library().PlaySearch(ctx, library.SearchQuery{Text: req.Text, Genre: req.Genre}))
}

// PlaySong plays one song, or toggles it when already current.
func (s *PlayerService) PlaySong(ctx context.Context, req *SongRequest) (*session.Status, error) {
	if err := s.session.Library().PlaySong(ctx, req.SongID); err != nil {
		return nil, err
	}
	return s.status(), nil
}

// Enqueue appends a song to the queue.
func (s *PlayerService) Enqueue(ctx context.Context, req *SongRequest) (*session.Status, error) {
	if err := s.session.Library().Enqueue(ctx, req.SongID); err != nil {
		return nil, err
	}
	return s.status(), nil
}

// Search lists matching songs.
func (s *PlayerService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	songs, err := s.session.Library().Search(ctx, library.SearchQuery{Text: req.Text, Genre: req.Genre})
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Songs: songs}, nil
}

// Genres lists catalog genres.
func (s *PlayerService) Genres(ctx context.Context, _ *Empty) (*GenresResponse, error) {
	genres, err := s.session.Library().Genres(ctx)
	if err != nil {
		return nil, err
	}
	return &GenresResponse{Genres: genres}, nil
}

// Login signs in.
func (s *PlayerService) Login(ctx context.Context, req *LoginRequest) (*session.Status, error) {
	if err := s.session.Account().Login(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}
	return s.status(), nil
}

// Register creates an account.
func (s *PlayerService) Register(ctx context.Context, req *RegisterRequest) (*session.Status, error) {
	if err := s.session.Account().Register(ctx, req.Email, req.Password, req.FullName); err != nil {
		return nil, err
	}
	return s.status(), nil
}

// Logout signs out.
func (s *PlayerService) Logout(ctx context.Context, _ *Empty) (*session.Status, error) {
	if err := s.session.Account().Logout(ctx); err != nil {
		return nil, err
	}
	return s.status(), nil
}

// MyPlaylists lists the signed-in user's playlists.
func (s *PlayerService) MyPlaylists(ctx context.Context, _ *Empty) (*PlaylistsResponse, error) {
	playlists, err := s.session.Library().MyPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	return &PlaylistsResponse{Playlists: playlists}, nil
}

// CreatePlaylist creates a playlist.
func (s *PlayerService) CreatePlaylist(ctx context.Context, req *CreatePlaylistRequest) (*playlist.Playlist, error) {
	return s.session.Library().CreatePlaylist(ctx, library.NewPlaylist{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		IsPublic:    req.IsPublic,
	})
}

// UpdatePlaylist changes playlist fields.
func (s *PlayerService) UpdatePlaylist(ctx context.Context, req *UpdatePlaylistRequest) (*playlist.Playlist, error) {
	return s.session.Library().UpdatePlaylist(ctx, req.PlaylistID, req.Update)
}

// DeletePlaylist deletes a playlist.
func (s *PlayerService) DeletePlaylist(ctx context.Context, req *PlaylistRequest) (*Empty, error) {
	if err := s.session.Library().DeletePlaylist(ctx, req.PlaylistID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// AddToPlaylist appends a song to a playlist.
func (s *PlayerService) AddToPlaylist(ctx context.Context, req *PlaylistSongRequest) (*playlist.Entry, error) {
	return s.session.Library().AddToPlaylist(ctx, req.PlaylistID, req.SongID)
}

// RemoveFromPlaylist removes a playlist entry.
func (s *PlayerService) RemoveFromPlaylist(ctx context.Context, req *PlaylistEntryRequest) (*Empty, error) {
	if err := s.session.Library().RemoveFromPlaylist(ctx, req.PlaylistID, req.EntryID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// SubscribeNotifications streams the initial state followed by every
// change until the client disconnects or the session closes.
func (s *PlayerService) SubscribeNotifications(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[notification.Notification],
) error {
	adapter := &notificationStreamAdapter{stream: stream}
	defer adapter.close()
	if err := adapter.Send(s.session.InitialState()); err != nil {
		return err
	}

	notifManager := s.session.GetNotificationManager()
	subscriptionID := notifManager.Subscribe(adapter)
	defer notifManager.Unsubscribe(subscriptionID)

	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}
	return nil
}

var errStreamClosed = errors.New("notification stream closed")

type notificationSender interface {
	Send(*notification.Notification) error
}

// notificationStreamAdapter adapts connect.ServerStream to
// notification.Stream. Sends are serialized and rejected once the handler
// has returned, since a broadcast may still hold the adapter then.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream notificationSender
	closed bool
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return errors.Wrap(a.stream.Send(n), "failed to send notification")
}

// close waits for an in-flight Send and rejects later ones.
func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}
