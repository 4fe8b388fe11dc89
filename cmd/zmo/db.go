package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/zmusic-organizer/internal/spotify"
	"github.com/franz/zmusic-organizer/internal/util"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the destination database",
}

var dbCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the database and apply the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if force, _ := cmd.Flags().GetBool("force"); force {
			if !confirm(cmd, "Recreate the tracks table, discarding all rows?") {
				return nil
			}
			if err := db.RecreateTracks(); err != nil {
				return err
			}
		}

		if err := db.VerifySchema(); err != nil {
			return err
		}
		util.SuccessLog("Database ready: %s", viper.GetString("db"))
		return nil
	},
}

var dbInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		dbPath := viper.GetString("db")

		info, err := os.Stat(dbPath)
		if err != nil {
			return fmt.Errorf("database does not exist: %s", dbPath)
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		tracks, err := db.CountTracks()
		if err != nil {
			return fmt.Errorf("failed to count tracks: %w", err)
		}

		fmt.Printf("Database: %s (%s)\n", dbPath, humanize.Bytes(uint64(info.Size())))
		fmt.Printf("Tracks:   %d\n", tracks)

		cache, err := spotify.NewCache(db.DB())
		if err == nil {
			if entries, hits, err := cache.Stats(); err == nil {
				fmt.Printf("Spotify cache: %d entries, %d hits\n", entries, hits)
			}
		}
		return nil
	},
}

var dbClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all track rows but keep the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		if !confirm(cmd, "Delete ALL rows from the tracks table?") {
			return nil
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearTracks()
		if err != nil {
			return fmt.Errorf("failed to clear tracks: %w", err)
		}
		util.SuccessLog("Deleted %d rows", n)
		return nil
	},
}

var dbDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the tracks table entirely",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		if !confirm(cmd, "Drop the tracks table?") {
			return nil
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DropTracks(); err != nil {
			return fmt.Errorf("failed to drop tracks: %w", err)
		}
		util.SuccessLog("Dropped tracks table")
		return nil
	},
}

func init() {
	dbCreateCmd.Flags().Bool("force", false, "drop and recreate the tracks table")
	dbCreateCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	dbClearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	dbDropCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	dbCmd.AddCommand(dbCreateCmd, dbInfoCmd, dbClearCmd, dbDropCmd)
	rootCmd.AddCommand(dbCmd)
}

func confirm(cmd *cobra.Command, prompt string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
