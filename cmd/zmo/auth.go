package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/zmusic-organizer/internal/spotify"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect and verify Spotify authentication",
}

// authInfoCmd reports the state of the credential store and token cache.
// It never prints secret material, only presence and expiry.
var authInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show credential and token-cache status",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		credPath := GetConfigString("credentials", defaultCredentialsPath)
		creds, err := spotify.LoadCredentials(credPath)
		if err != nil {
			return err
		}
		fmt.Printf("Credentials:   %s\n", credPath)
		fmt.Printf("  client id:     %s\n", presence(creds.ClientID != ""))
		fmt.Printf("  client secret: %s\n", presence(creds.ClientSecret != ""))
		fmt.Printf("  refresh token: %s\n", presence(creds.RefreshToken != ""))

		tokenPath := GetConfigString("token-cache", defaultTokenCachePath)
		token, err := spotify.LoadToken(tokenPath)
		if err != nil {
			return err
		}
		fmt.Printf("Token cache:   %s\n", tokenPath)
		if token == nil {
			fmt.Println("  no cached token")
		} else if token.Valid(time.Now()) {
			fmt.Printf("  valid, expires in %s\n", token.Remaining(time.Now()).Round(time.Second))
		} else {
			fmt.Println("  expired, will be refreshed on next use")
		}
		return nil
	},
}

// authVerifyCmd performs one authenticated API call to prove the
// credentials work end to end
var authVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify credentials with a live API call",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		client, err := newSpotifyClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := client.Me(ctx)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		name := user.DisplayName
		if name == "" {
			name = user.ID
		}
		fmt.Printf("Authenticated as %s\n", name)
		return nil
	},
}

func init() {
	authCmd.AddCommand(authInfoCmd, authVerifyCmd)
	rootCmd.AddCommand(authCmd)
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "MISSING"
}
