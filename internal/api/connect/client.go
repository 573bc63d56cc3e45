package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/melodify/internal/app/notification"
	"github.com/osa030/melodify/internal/app/session"
)

// Client calls the player service.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	opts       []connect.ClientOption
}

// NewClient creates a client for the service at baseURL, authenticated
// with token.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts = append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(NewControlAuthInterceptor(token)),
	}, opts...)
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
	}
}

func call[Req, Res any](ctx context.Context, c *Client, procedure string, req *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](c.httpClient, c.baseURL+procedure, c.opts...)
	res, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// Status calls a state-returning procedure without arguments, such as
// ProcedurePlay or ProcedureNext.
func (c *Client) Status(ctx context.Context, procedure string) (*session.Status, error) {
	return call[Empty, session.Status](ctx, c, procedure, &Empty{})
}

// SetVolume sets the volume.
func (c *Client) SetVolume(ctx context.Context, volume float64) (*session.Status, error) {
	return call[VolumeRequest, session.Status](ctx, c, ProcedureSetVolume, &VolumeRequest{Volume: volume})
}

// Seek seeks to seconds.
func (c *Client) Seek(ctx context.Context, seconds float64) (*session.Status, error) {
	return call[SeekRequest, session.Status](ctx, c, ProcedureSeek, &SeekRequest{Seconds: seconds})
}

// RemoveFromQueue removes the song at index.
func (c *Client) RemoveFromQueue(ctx context.Context, index int) (*session.Status, error) {
	return call[IndexRequest, session.Status](ctx, c, ProcedureRemoveFromQueue, &IndexRequest{Index: index})
}

// PlaySong plays a song.
func (c *Client) PlaySong(ctx context.Context, songID string) (*session.Status, error) {
	return call[SongRequest, session.Status](ctx, c, ProcedurePlaySong, &SongRequest{SongID: songID})
}

// Enqueue appends a song to the queue.
func (c *Client) Enqueue(ctx context.Context, songID string) (*session.Status, error) {
	return call[SongRequest, session.Status](ctx, c, ProcedureEnqueue, &SongRequest{SongID: songID})
}

// PlayPlaylist queues a playlist.
func (c *Client) PlayPlaylist(ctx context.Context, playlistID string, start int) (*PlayResponse, error) {
	return call[PlayPlaylistRequest, PlayResponse](ctx, c, ProcedurePlayPlaylist, &PlayPlaylistRequest{PlaylistID: playlistID, Start: start})
}

// PlayArtist queues an artist.
func (c *Client) PlayArtist(ctx context.Context, artistID string) (*PlayResponse, error) {
	return call[PlayArtistRequest, PlayResponse](ctx, c, ProcedurePlayArtist, &PlayArtistRequest{ArtistID: artistID})
}

// PlayGenre queues a genre.
func (c *Client) PlayGenre(ctx context.Context, genre string) (*PlayResponse, error) {
	return call[PlayGenreRequest, PlayResponse](ctx, c, ProcedurePlayGenre, &PlayGenreRequest{Genre: genre})
}

// Search lists matching songs.
func (c *Client) Search(ctx context.Context, text, genre string) (*SearchResponse, error) {
	return call[SearchRequest, SearchResponse](ctx, c, ProcedureSearch, &SearchRequest{Text: text, Genre: genre})
}

// Login signs the player in.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Status, error) {
	return call[LoginRequest, session.Status](ctx, c, ProcedureLogin, &LoginRequest{Email: email, Password: password})
}

// MyPlaylists lists the signed-in user's playlists.
func (c *Client) MyPlaylists(ctx context.Context) (*PlaylistsResponse, error) {
	return call[Empty, PlaylistsResponse](ctx, c, ProcedureMyPlaylists, &Empty{})
}

// Subscribe streams notifications to fn until ctx is done or the stream ends.
func (c *Client) Subscribe(ctx context.Context, fn func(*notification.Notification)) error {
	client := connect.NewClient[Empty, notification.Notification](c.httpClient, c.baseURL+ProcedureSubscribeNotifications, c.opts...)
	stream, err := client.CallServerStream(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		fn(stream.Msg())
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
