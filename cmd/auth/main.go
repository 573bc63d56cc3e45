// Package main provides the account tool. It signs in against the identity
// service and keeps the session in the file the player restores from.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/melodify/internal/app/account"
	"github.com/osa030/melodify/internal/infra/config"
	"github.com/osa030/melodify/internal/infra/gotrue"
	"github.com/osa030/melodify/internal/infra/logger"
)

var (
	app         = kingpin.New("melodify-auth", "Melodify account tool")
	configPath  = app.Flag("config", "Path to config file").Default("config/melodify.yaml").String()
	sessionFile = app.Flag("session-file", "Session file (default: player.session_file)").String()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	loginCmd      = app.Command("login", "Sign in")
	loginEmail    = loginCmd.Arg("email", "Email").Required().String()
	loginPassword = loginCmd.Arg("password", "Password").Envar("MELODIFY_PASSWORD").Required().String()

	registerCmd      = app.Command("register", "Create an account")
	registerEmail    = registerCmd.Arg("email", "Email").Required().String()
	registerPassword = registerCmd.Arg("password", "Password").Envar("MELODIFY_PASSWORD").Required().String()
	registerName     = registerCmd.Flag("name", "Full name").String()

	logoutCmd = app.Command("logout", "Sign out and remove the saved session")
	whoamiCmd = app.Command("whoami", "Show the signed-in user")
	tokenCmd  = app.Command("token", "Print a valid access token")
)

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if _, err := logger.Init(logger.Config{Output: "stderr", Level: level}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.Load(*configPath)
	exitOnError(err)

	identity, err := gotrue.New(gotrue.Config{URL: cfg.Supabase.URL, APIKey: cfg.Supabase.AnonKey})
	exitOnError(err)

	path := cfg.Player.SessionFile
	if *sessionFile != "" {
		path = *sessionFile
	}
	svc := account.NewService(identity, account.NewSessionFile(path))

	ctx := context.Background()

	switch command {
	case loginCmd.FullCommand():
		exitOnError(svc.Login(ctx, *loginEmail, *loginPassword))
		printUser(svc)
	case registerCmd.FullCommand():
		exitOnError(svc.Register(ctx, *registerEmail, *registerPassword, *registerName))
		if _, err := svc.AccessToken(ctx); err != nil {
			fmt.Println("Registered. Confirm your email, then run login.")
			return
		}
		printUser(svc)
	case logoutCmd.FullCommand():
		exitOnError(svc.Restore(ctx))
		exitOnError(svc.Logout(ctx))
		fmt.Println("Signed out")
	case whoamiCmd.FullCommand():
		exitOnError(svc.Restore(ctx))
		printUser(svc)
	case tokenCmd.FullCommand():
		exitOnError(svc.Restore(ctx))
		token, err := svc.AccessToken(ctx)
		exitOnError(err)
		fmt.Println(token)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUser(svc *account.Service) {
	u := svc.CurrentUser()
	if u == nil {
		fmt.Println("Not signed in")
		return
	}
	fmt.Printf("Signed in as %s\n", u.DisplayName())
	fmt.Printf("  ID:    %s\n", u.ID)
	fmt.Printf("  Email: %s\n", u.Email)
}
