// Package main provides the player control CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/melodify/internal/api/connect"
	"github.com/osa030/melodify/internal/app/notification"
	"github.com/osa030/melodify/internal/app/playback"
	"github.com/osa030/melodify/internal/app/session"
	"github.com/osa030/melodify/internal/domain/track"
)

var (
	app    = kingpin.New("melodify-playerctl", "Melodify player control client")
	server = app.Flag("server", "Player control address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token").Envar("CONTROL_TOKEN").Required().String()

	statusCmd = app.Command("status", "Show the player state")
	playCmd   = app.Command("play", "Resume playback")
	pauseCmd  = app.Command("pause", "Pause playback")
	toggleCmd = app.Command("toggle", "Toggle play/pause")
	nextCmd   = app.Command("next", "Skip to the next song")
	prevCmd   = app.Command("prev", "Go back to the previous song")
	muteCmd   = app.Command("mute", "Toggle mute")
	clearCmd  = app.Command("clear", "Clear the queue")

	volumeCmd   = app.Command("volume", "Set the volume")
	volumeValue = volumeCmd.Arg("value", "Volume, 0..1").Required().Float64()

	seekCmd     = app.Command("seek", "Seek within the current song")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	playSongCmd = app.Command("play-song", "Play a song, or toggle it when it is current")
	playSongID  = playSongCmd.Arg("song-id", "Song ID").Required().String()

	enqueueCmd = app.Command("enqueue", "Append a song to the queue")
	enqueueID  = enqueueCmd.Arg("song-id", "Song ID").Required().String()

	playPlaylistCmd   = app.Command("play-playlist", "Queue a playlist")
	playPlaylistID    = playPlaylistCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playPlaylistStart = playPlaylistCmd.Flag("start", "Index of the first song").Default("0").Int()

	playArtistCmd = app.Command("play-artist", "Queue an artist's songs")
	playArtistID  = playArtistCmd.Arg("artist-id", "Artist ID").Required().String()

	playGenreCmd = app.Command("play-genre", "Queue a genre")
	playGenre    = playGenreCmd.Arg("genre", "Genre").Required().String()

	searchCmd   = app.Command("search", "Search songs")
	searchText  = searchCmd.Arg("text", "Title or artist text").String()
	searchGenre = searchCmd.Flag("genre", "Genre").String()

	removeCmd   = app.Command("remove", "Remove a queue position")
	removeIndex = removeCmd.Arg("index", "Queue index").Required().Int()

	loginCmd      = app.Command("login", "Sign the player in")
	loginEmail    = loginCmd.Arg("email", "Email").Required().String()
	loginPassword = loginCmd.Arg("password", "Password").Envar("MELODIFY_PASSWORD").Required().String()

	logoutCmd    = app.Command("logout", "Sign the player out")
	playlistsCmd = app.Command("playlists", "List the signed-in user's playlists")
	subscribeCmd = app.Command("subscribe", "Stream notifications")
)

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)
	ctx := context.Background()

	var (
		st  *session.Status
		err error
	)

	switch command {
	case statusCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedureGetState)
	case playCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedurePlay)
	case pauseCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedurePause)
	case toggleCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedureTogglePlay)
	case nextCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedureNext)
	case prevCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedurePrevious)
	case muteCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedureToggleMute)
	case clearCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedureClearQueue)
	case logoutCmd.FullCommand():
		st, err = client.Status(ctx, apiconnect.ProcedureLogout)
	case volumeCmd.FullCommand():
		st, err = client.SetVolume(ctx, *volumeValue)
	case seekCmd.FullCommand():
		st, err = client.Seek(ctx, *seekSeconds)
	case playSongCmd.FullCommand():
		st, err = client.PlaySong(ctx, *playSongID)
	case enqueueCmd.FullCommand():
		st, err = client.Enqueue(ctx, *enqueueID)
	case removeCmd.FullCommand():
		st, err = client.RemoveFromQueue(ctx, *removeIndex)
	case loginCmd.FullCommand():
		st, err = client.Login(ctx, *loginEmail, *loginPassword)
	case playPlaylistCmd.FullCommand():
		res, err := client.PlayPlaylist(ctx, *playPlaylistID, *playPlaylistStart)
		exitOnError(err)
		printPlayResult(res)
		return
	case playArtistCmd.FullCommand():
		res, err := client.PlayArtist(ctx, *playArtistID)
		exitOnError(err)
		printPlayResult(res)
		return
	case playGenreCmd.FullCommand():
		res, err := client.PlayGenre(ctx, *playGenre)
		exitOnError(err)
		printPlayResult(res)
		return
	case searchCmd.FullCommand():
		res, err := client.Search(ctx, *searchText, *searchGenre)
		exitOnError(err)
		for _, s := range res.Songs {
			printSong(s)
		}
		fmt.Printf("%d songs\n", len(res.Songs))
		return
	case playlistsCmd.FullCommand():
		res, err := client.MyPlaylists(ctx)
		exitOnError(err)
		for _, p := range res.Playlists {
			fmt.Printf("  %s  %-30s public=%v\n", p.ID, p.Name, p.IsPublic)
		}
		return
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
		return
	}

	exitOnError(err)
	printStatus(st)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printPlayResult(res *apiconnect.PlayResponse) {
	fmt.Printf("Queued %d songs (%d not playable)\n", res.Queued, res.Rejected)
}

func printSong(s track.Track) {
	premium := ""
	if s.IsPremium {
		premium = " [premium]"
	}
	fmt.Printf("  %s  %s - %s (%s)%s\n", s.ID, s.Title, s.ArtistName(), playback.FormatTime(float64(s.Duration)), premium)
}

func printStatus(st *session.Status) {
	p := st.Player
	if p.CurrentTrack == nil {
		fmt.Println("Nothing selected")
	} else {
		state := "Paused"
		if p.IsPlaying {
			state = "Playing"
		}
		fmt.Printf("%s: %s - %s\n", state, p.CurrentTrack.Title, p.CurrentTrack.ArtistName())
		fmt.Printf("  %s / %s\n", playback.FormatTime(p.Progress), playback.FormatTime(p.Duration))
	}
	if p.IsMuted {
		fmt.Println("  Volume: muted")
	} else {
		fmt.Printf("  Volume: %.0f%%\n", p.Volume*100)
	}
	if st.MediaID != "" {
		fmt.Printf("  Media: %s\n", playback.WatchURL(st.MediaID))
	}
	fmt.Printf("  Queue: %d songs, index %d\n", len(st.Queue.Tracks), st.Queue.CurrentIndex)
	if u := st.Account.User; u != nil {
		fmt.Printf("  Signed in as %s\n", u.DisplayName())
	}
	if st.Account.Error != "" {
		fmt.Printf("  Account error: %s\n", st.Account.Error)
	}
}

func subscribe(ctx context.Context, client *apiconnect.Client) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	err := client.Subscribe(ctx, printNotification)
	exitOnError(err)
}

func printNotification(n *notification.Notification) {
	fmt.Printf("\n[Sequence: %d] ", n.SequenceNo)

	switch n.Type {
	case notification.TypeInitialState:
		fmt.Println("=== INITIAL STATE ===")
	case notification.TypePlayer:
		fmt.Println("=== PLAYER ===")
	case notification.TypeQueue:
		fmt.Println("=== QUEUE ===")
	case notification.TypeAccount:
		fmt.Println("=== ACCOUNT ===")
	case notification.TypePurchase:
		fmt.Println("=== PURCHASE ===")
	default:
		fmt.Printf("=== UNKNOWN EVENT (%v) ===\n", n.Type)
	}

	if n.Player != nil {
		title := "-"
		if n.Player.CurrentTrack != nil {
			title = n.Player.CurrentTrack.Title
		}
		fmt.Printf("  Track: %s playing=%v %s/%s volume=%.2f\n", title, n.Player.IsPlaying,
			playback.FormatTime(n.Player.Progress), playback.FormatTime(n.Player.Duration), n.Player.Volume)
	}
	if n.Queue != nil {
		fmt.Printf("  Queue: %d songs, index %d\n", len(n.Queue.Tracks), n.Queue.CurrentIndex)
	}
	if n.Account != nil {
		if n.Account.User != nil {
			fmt.Printf("  User: %s\n", n.Account.User.DisplayName())
		} else {
			fmt.Println("  User: signed out")
		}
	}
	if n.Purchase != nil {
		fmt.Printf("  Purchased: song=%s purchase=%s\n", n.Purchase.SongID, n.Purchase.PurchaseID)
	}
}
