// Package library turns catalog browsing actions into queue operations.
package library

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/app/filter"
	"github.com/osa030/melodify/internal/app/playback"
	"github.com/osa030/melodify/internal/domain/playlist"
	"github.com/osa030/melodify/internal/domain/purchase"
	"github.com/osa030/melodify/internal/domain/track"
	"github.com/osa030/melodify/internal/domain/user"
)

// Errors
var (
	ErrNothingPlayable = errors.New("no playable songs")
	ErrSignInRequired  = errors.New("sign in required")
	ErrNotOwner        = errors.New("playlist belongs to another user")
)

// Catalog is the catalog surface the library reads and writes.
type Catalog interface {
	catalog.Songs
	catalog.Playlists
	catalog.Purchases
}

// Account provides the signed-in user.
type Account interface {
	CurrentUser() *user.User
	AccessToken(ctx context.Context) (string, error)
}

// Player is the playback surface the library drives.
type Player interface {
	Snapshot() playback.Snapshot
	SetCurrentTrack(t track.Track)
	TogglePlay()
}

// Queue is the queue surface the library drives.
type Queue interface {
	SetQueue(tracks []track.Track, startIndex int)
	AddToQueue(t track.Track)
	Tracks() []track.Track
}

// SearchQuery filters the song list. Text matches title, artist name or album.
type SearchQuery struct {
	Text  string
	Genre string
}

// PlayResult reports what reached the queue.
type PlayResult struct {
	Queued   int                `json:"queued"`
	Rejected []filter.Rejection `json:"-"`
}

// Service is the library service.
type Service struct {
	catalog Catalog
	account Account
	player  Player
	queue   Queue
	chain   *filter.Chain
}

// NewService creates a new library service.
func NewService(c Catalog, account Account, player Player, queue Queue, chain *filter.Chain) *Service {
	if chain == nil {
		chain = filter.NewChain()
	}
	return &Service{catalog: c, account: account, player: player, queue: queue, chain: chain}
}

// authorize attaches the user's access token to ctx when signed in.
func (s *Service) authorize(ctx context.Context) context.Context {
	if s.account == nil {
		return ctx
	}
	token, err := s.account.AccessToken(ctx)
	if err != nil {
		return ctx
	}
	return catalog.WithAccessToken(ctx, token)
}

func (s *Service) userID() string {
	if s.account == nil {
		return ""
	}
	if u := s.account.CurrentUser(); u != nil {
		return u.ID
	}
	return ""
}

func (s *Service) subject(ctx context.Context) *filter.Subject {
	subject := &filter.Subject{UserID: s.userID()}
	if subject.UserID == "" {
		return subject
	}
	purchases, err := s.catalog.ListPurchases(ctx, subject.UserID)
	if err != nil {
		zlog.Warn().Msgf("library: failed to load purchases: %v", err)
		return subject
	}
	subject.Owned = purchase.Owned(purchases)
	return subject
}

// play filters tracks and replaces the queue. start indexes the unfiltered
// list and is moved to the next kept track when the chosen one is dropped.
func (s *Service) play(ctx context.Context, tracks []track.Track, start int, src filter.Source) (*PlayResult, error) {
	kept, rejected := s.chain.Apply(ctx, tracks, s.subject(ctx), src)
	if len(kept) == 0 {
		return &PlayResult{Rejected: rejected}, ErrNothingPlayable
	}

	dropped := make(map[int]bool, len(rejected))
	for _, r := range rejected {
		dropped[r.Index] = true
	}
	index := 0
	for i := 0; i < start && i < len(tracks); i++ {
		if !dropped[i] {
			index++
		}
	}

	s.queue.SetQueue(kept, index)
	zlog.Info().Msgf("library: queued %d songs from %s (rejected=%d start=%d)", len(kept), src, len(rejected), index)
	return &PlayResult{Queued: len(kept), Rejected: rejected}, nil
}

// PlayPlaylist queues a playlist in position order starting at start.
func (s *Service) PlayPlaylist(ctx context.Context, playlistID string, start int) (*PlayResult, error) {
	ctx = s.authorize(ctx)
	entries, err := s.catalog.PlaylistEntries(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return s.play(ctx, playlist.Tracks(entries), start, filter.SourcePlaylist)
}

// PlayArtist queues all songs of an artist.
func (s *Service) PlayArtist(ctx context.Context, artistID string) (*PlayResult, error) {
	ctx = s.authorize(ctx)
	songs, err := s.catalog.ListSongs(ctx, catalog.SongQuery{ArtistID: artistID})
	if err != nil {
		return nil, err
	}
	return s.play(ctx, songs, 0, filter.SourceArtist)
}

// PlayGenre queues all songs of a genre.
func (s *Service) PlayGenre(ctx context.Context, genre string) (*PlayResult, error) {
	ctx = s.authorize(ctx)
	songs, err := s.catalog.ListSongs(ctx, catalog.SongQuery{Genre: genre})
	if err != nil {
		return nil, err
	}
	return s.play(ctx, songs, 0, filter.SourceGenre)
}

// PlaySearch queues every song matching q.
func (s *Service) PlaySearch(ctx context.Context, q SearchQuery) (*PlayResult, error) {
	songs, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.play(s.authorize(ctx), songs, 0, filter.SourceSearch)
}

// PlaySong toggles playback when songID is already current, otherwise
// makes it the current track without touching the queue.
func (s *Service) PlaySong(ctx context.Context, songID string) error {
	if snap := s.player.Snapshot(); snap.CurrentTrack != nil && snap.CurrentTrack.ID == songID {
		s.player.TogglePlay()
		return nil
	}

	ctx = s.authorize(ctx)
	t, err := s.catalog.GetSong(ctx, songID)
	if err != nil {
		return err
	}
	result, name := s.chain.Execute(ctx, *t, s.subject(ctx), filter.SourceAppend)
	if !result.Accepted {
		return errors.Mark(errors.Newf("song %s rejected by %s: %s", songID, name, result.Code), ErrNothingPlayable)
	}
	s.player.SetCurrentTrack(*t)
	return nil
}

// Enqueue appends a song to the queue.
func (s *Service) Enqueue(ctx context.Context, songID string) error {
	ctx = s.authorize(ctx)
	t, err := s.catalog.GetSong(ctx, songID)
	if err != nil {
		return err
	}
	subject := s.subject(ctx)
	subject.Queued = s.queue.Tracks()
	result, name := s.chain.Execute(ctx, *t, subject, filter.SourceAppend)
	if !result.Accepted {
		return errors.Mark(errors.Newf("song %s rejected by %s: %s", songID, name, result.Code), ErrNothingPlayable)
	}
	s.queue.AddToQueue(*t)
	return nil
}

// Search lists songs matching q, ordered by title.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]track.Track, error) {
	songs, err := s.catalog.ListSongs(s.authorize(ctx), catalog.SongQuery{Genre: q.Genre})
	if err != nil {
		return nil, err
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	matched := make([]track.Track, 0, len(songs))
	for _, t := range songs {
		if text == "" || matches(t, text) {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return strings.ToLower(matched[i].Title) < strings.ToLower(matched[j].Title)
	})
	return matched, nil
}

func matches(t track.Track, text string) bool {
	if strings.Contains(strings.ToLower(t.Title), text) {
		return true
	}
	if t.Artist != nil && strings.Contains(strings.ToLower(t.Artist.Name), text) {
		return true
	}
	return t.Album != "" && strings.Contains(strings.ToLower(t.Album), text)
}

// Genres returns the distinct genres in the catalog, sorted.
func (s *Service) Genres(ctx context.Context) ([]string, error) {
	songs, err := s.catalog.ListSongs(s.authorize(ctx), catalog.SongQuery{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	genres := make([]string, 0)
	for _, t := range songs {
		if t.Genre != "" && !seen[t.Genre] {
			seen[t.Genre] = true
			genres = append(genres, t.Genre)
		}
	}
	sort.Strings(genres)
	return genres, nil
}
