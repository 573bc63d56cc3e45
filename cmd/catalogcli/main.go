// Package main provides the catalog CLI for uploading and listing songs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/app/playback"
	"github.com/osa030/melodify/internal/app/upload"
	"github.com/osa030/melodify/internal/infra/backend"
	"github.com/osa030/melodify/internal/infra/config"
	"github.com/osa030/melodify/internal/infra/lastfm"
	"github.com/osa030/melodify/internal/infra/logger"
	"github.com/osa030/melodify/internal/infra/spotify"
)

var (
	app        = kingpin.New("melodify-catalog", "Melodify catalog tool")
	configPath = app.Flag("config", "Path to config file").Default("config/melodify.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	uploadCmd      = app.Command("upload", "Add a song").Alias("import")
	uploadMediaURL = uploadCmd.Arg("media-url", "YouTube watch, short or embed URL").Required().String()
	uploadTitle    = uploadCmd.Flag("title", "Song title").String()
	uploadArtist   = uploadCmd.Flag("artist", "Artist name; created when missing").String()
	uploadAlbum    = uploadCmd.Flag("album", "Album").String()
	uploadGenre    = uploadCmd.Flag("genre", "Genre (default: Last.fm top tag)").String()
	uploadDuration = uploadCmd.Flag("duration", "Duration in seconds").Int()
	uploadImage    = uploadCmd.Flag("image", "Artwork URL").String()
	uploadPremium  = uploadCmd.Flag("premium", "Sell the song").Bool()
	uploadPrice    = uploadCmd.Flag("price", "Price of a premium song").Float64()
	uploadSpotify  = uploadCmd.Flag("spotify", "Spotify track URL, URI or ID to fill empty fields from").String()

	listSongsCmd    = app.Command("list-songs", "List songs")
	listSongsArtist = listSongsCmd.Flag("artist", "Artist ID").String()
	listSongsGenre  = listSongsCmd.Flag("genre", "Genre").String()
	listSongsLimit  = listSongsCmd.Flag("limit", "Maximum number of songs").Default("50").Int()

	listArtistsCmd = app.Command("list-artists", "List artists")
)

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "info"
	if *verbose {
		level = "debug"
	}
	if _, err := logger.Init(logger.Config{Output: "stderr", Level: level}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.Load(*configPath)
	exitOnError(err)

	ctx := context.Background()

	// Writes bypass row-level security, reads work with either key.
	apiKey := cfg.Supabase.ServiceRoleKey
	if apiKey == "" {
		apiKey = cfg.Supabase.AnonKey
	}
	b, err := backend.Open(ctx, cfg, apiKey)
	exitOnError(err)
	defer b.Close()

	switch command {
	case uploadCmd.FullCommand():
		runUpload(ctx, cfg, b.Catalog)
	case listSongsCmd.FullCommand():
		songs, err := b.Catalog.ListSongs(ctx, catalog.SongQuery{
			ArtistID: *listSongsArtist,
			Genre:    *listSongsGenre,
			Limit:    *listSongsLimit,
		})
		exitOnError(err)
		for _, s := range songs {
			premium := ""
			if s.IsPurchasable() {
				premium = fmt.Sprintf(" [%.2f]", *s.Price)
			}
			fmt.Printf("  %s  %-30s %-20s %-10s %s%s\n", s.ID, s.Title, s.ArtistName(), s.Genre, playback.FormatTime(float64(s.Duration)), premium)
		}
		fmt.Printf("%d songs\n", len(songs))
	case listArtistsCmd.FullCommand():
		artists, err := b.Catalog.ListArtists(ctx)
		exitOnError(err)
		for _, a := range artists {
			fmt.Printf("  %s  %s\n", a.ID, a.Name)
		}
	}
}

func runUpload(ctx context.Context, cfg *config.Config, store catalog.Store) {
	var metadata upload.MetadataSource
	if *uploadSpotify != "" {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		})
		exitOnError(err)
		metadata = client
	}

	var genres upload.GenreSource
	if *uploadGenre == "" && cfg.LastFM.APIKey != "" {
		client, err := lastfm.New(lastfm.Config{APIKey: cfg.LastFM.APIKey})
		exitOnError(err)
		genres = client
	}

	song, err := upload.NewService(store, metadata, genres).Upload(ctx, upload.Request{
		Title:      *uploadTitle,
		Artist:     *uploadArtist,
		Album:      *uploadAlbum,
		Genre:      *uploadGenre,
		Duration:   *uploadDuration,
		ImageURL:   *uploadImage,
		MediaURL:   *uploadMediaURL,
		IsPremium:  *uploadPremium,
		Price:      *uploadPrice,
		SpotifyRef: *uploadSpotify,
	})
	exitOnError(err)

	fmt.Printf("Uploaded %s: %s - %s\n", song.ID, song.Title, song.ArtistName())
	if song.Genre != "" {
		fmt.Printf("  Genre: %s\n", song.Genre)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
