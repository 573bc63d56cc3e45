package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// PlayerServiceName is the fully-qualified name of the player service.
const PlayerServiceName = "melodify.player.v1.PlayerService"

// Procedure names.
const (
	ProcedureGetState               = "/" + PlayerServiceName + "/GetState"
	ProcedurePlay                   = "/" + PlayerServiceName + "/Play"
	ProcedurePause                  = "/" + PlayerServiceName + "/Pause"
	ProcedureTogglePlay             = "/" + PlayerServiceName + "/TogglePlay"
	ProcedureSetVolume              = "/" + PlayerServiceName + "/SetVolume"
	ProcedureToggleMute             = "/" + PlayerServiceName + "/ToggleMute"
	ProcedureSeek                   = "/" + PlayerServiceName + "/Seek"
	ProcedureNext                   = "/" + PlayerServiceName + "/Next"
	ProcedurePrevious               = "/" + PlayerServiceName + "/Previous"
	ProcedureRemoveFromQueue        = "/" + PlayerServiceName + "/RemoveFromQueue"
	ProcedureClearQueue             = "/" + PlayerServiceName + "/ClearQueue"
	ProcedurePlayPlaylist           = "/" + PlayerServiceName + "/PlayPlaylist"
	ProcedurePlayArtist             = "/" + PlayerServiceName + "/PlayArtist"
	ProcedurePlayGenre              = "/" + PlayerServiceName + "/PlayGenre"
	ProcedurePlaySearch             = "/" + PlayerServiceName + "/PlaySearch"
	ProcedurePlaySong               = "/" + PlayerServiceName + "/PlaySong"
	ProcedureEnqueue                = "/" + PlayerServiceName + "/Enqueue"
	ProcedureSearch                 = "/" + PlayerServiceName + "/Search"
	ProcedureGenres                 = "/" + PlayerServiceName + "/Genres"
	ProcedureLogin                  = "/" + PlayerServiceName + "/Login"
	ProcedureRegister               = "/" + PlayerServiceName + "/Register"
	ProcedureLogout                 = "/" + PlayerServiceName + "/Logout"
	ProcedureMyPlaylists            = "/" + PlayerServiceName + "/MyPlaylists"
	ProcedureCreatePlaylist         = "/" + PlayerServiceName + "/CreatePlaylist"
	ProcedureUpdatePlaylist         = "/" + PlayerServiceName + "/UpdatePlaylist"
	ProcedureDeletePlaylist         = "/" + PlayerServiceName + "/DeletePlaylist"
	ProcedureAddToPlaylist          = "/" + PlayerServiceName + "/AddToPlaylist"
	ProcedureRemoveFromPlaylist     = "/" + PlayerServiceName + "/RemoveFromPlaylist"
	ProcedureSubscribeNotifications = "/" + PlayerServiceName + "/SubscribeNotifications"
)

// NewPlayerServiceHandler builds an HTTP handler for svc. It returns the
// path on which to mount the handler and the handler itself.
func NewPlayerServiceHandler(svc *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()

	unary(mux, ProcedureGetState, svc.GetState, opts)
	unary(mux, ProcedurePlay, svc.Play, opts)
	unary(mux, ProcedurePause, svc.Pause, opts)
	unary(mux, ProcedureTogglePlay, svc.TogglePlay, opts)
	unary(mux, ProcedureSetVolume, svc.SetVolume, opts)
	unary(mux, ProcedureToggleMute, svc.ToggleMute, opts)
	unary(mux, ProcedureSeek, svc.Seek, opts)
	unary(mux, ProcedureNext, svc.Next, opts)
	unary(mux, ProcedurePrevious, svc.Previous, opts)
	unary(mux, ProcedureRemoveFromQueue, svc.RemoveFromQueue, opts)
	unary(mux, ProcedureClearQueue, svc.ClearQueue, opts)
	unary(mux, ProcedurePlayPlaylist, svc.PlayPlaylist, opts)
	unary(mux, ProcedurePlayArtist, svc.PlayArtist, opts)
	unary(mux, ProcedurePlayGenre, svc.PlayGenre, opts)
	unary(mux, ProcedurePlaySearch, svc.PlaySearch, opts)
	unary(mux, ProcedurePlaySong, svc.PlaySong, opts)
	unary(mux, ProcedureEnqueue, svc.Enqueue, opts)
	unary(mux, ProcedureSearch, svc.Search, opts)
	unary(mux, ProcedureGenres, svc.Genres, opts)
	unary(mux, ProcedureLogin, svc.Login, opts)
	unary(mux, ProcedureRegister, svc.Register, opts)
	unary(mux, ProcedureLogout, svc.Logout, opts)
	unary(mux, ProcedureMyPlaylists, svc.MyPlaylists, opts)
	unary(mux, ProcedureCreatePlaylist, svc.CreatePlaylist, opts)
	unary(mux, ProcedureUpdatePlaylist, svc.UpdatePlaylist, opts)
	unary(mux, ProcedureDeletePlaylist, svc.DeletePlaylist, opts)
	unary(mux, ProcedureAddToPlaylist, svc.AddToPlaylist, opts)
	unary(mux, ProcedureRemoveFromPlaylist, svc.RemoveFromPlaylist, opts)

	mux.Handle(ProcedureSubscribeNotifications, connect.NewServerStreamHandler(
		ProcedureSubscribeNotifications,
		svc.SubscribeNotifications,
		opts...,
	))

	return "/" + PlayerServiceName + "/", mux
}

func unary[Req, Res any](
	mux *http.ServeMux,
	procedure string,
	fn func(context.Context, *Req) (*Res, error),
	opts []connect.HandlerOption,
) {
	mux.Handle(procedure, connect.NewUnaryHandler(
		procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, toConnectError(err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	))
}
