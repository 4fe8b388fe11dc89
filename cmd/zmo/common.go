package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/franz/zmusic-organizer/internal/report"
	"github.com/franz/zmusic-organizer/internal/spotify"
	"github.com/franz/zmusic-organizer/internal/store"
	"github.com/franz/zmusic-organizer/internal/util"
)

// setupLogging applies the global verbosity flags to the logger
func setupLogging() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// requireLibraryRoot returns the configured library root or an error
func requireLibraryRoot() (string, error) {
	root := viper.GetString("library-root")
	if root == "" {
		return "", fmt.Errorf("library root is required (use --library-root/-r or set in config)")
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return "", fmt.Errorf("library root does not exist: %s", root)
	}
	return root, nil
}

// openStore opens the destination database
func openStore() (*store.Store, error) {
	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newEventLogger creates the JSONL event logger under the log directory
func newEventLogger() *report.EventLogger {
	return report.NewEventLogger(viper.GetString("log-dir"))
}

// newSpotifyClient builds the catalog client from configuration
func newSpotifyClient() (*spotify.Client, error) {
	cfg := &spotify.Config{
		CredentialsPath: GetConfigString("credentials", defaultCredentialsPath),
		TokenCachePath:  GetConfigString("token-cache", defaultTokenCachePath),
		MinInterval:     GetConfigDuration("spotify-min-interval", defaultMinInterval),
		Max429:          GetConfigInt("spotify-max-429", spotify.DefaultMax429),
		RateLog:         report.NewRateLimitLogger(viper.GetString("log-dir")),
	}
	client, err := spotify.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify client: %w", err)
	}
	return client, nil
}
