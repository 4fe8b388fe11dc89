package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/franz/zmusic-organizer/internal/download"
	"github.com/franz/zmusic-organizer/internal/util"
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate download batch descriptors from the catalog",
	Long: `Discover candidate tracks in the catalog and write them as batch
descriptors into the batch directory, where "zmo queue" picks them up.
Nothing is downloaded by this command.`,
}

var genCollectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "One descriptor covering every album of an artist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGen(cmd, "collection", func(ctx context.Context, gen *download.Generator) ([]download.Want, error) {
			artistID, err := resolveArtistFlag(ctx, cmd, gen)
			if err != nil {
				return nil, err
			}
			includeSingles, _ := cmd.Flags().GetBool("include-singles")
			return gen.Collection(ctx, artistID, includeSingles)
		})
	},
}

var genAlbumCmd = &cobra.Command{
	Use:   "album",
	Short: "One descriptor for a single album",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGen(cmd, "album", func(ctx context.Context, gen *download.Generator) ([]download.Want, error) {
			if albumID, _ := cmd.Flags().GetString("album-id"); albumID != "" {
				return gen.Album(ctx, albumID)
			}
			artistID, err := resolveArtistFlag(ctx, cmd, gen)
			if err != nil {
				return nil, err
			}
			name, _ := cmd.Flags().GetString("album")
			return gen.AlbumByName(ctx, artistID, name)
		})
	},
}

var genTrackCmd = &cobra.Command{
	Use:   "track",
	Short: "One descriptor for a single track",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGen(cmd, "track", func(ctx context.Context, gen *download.Generator) ([]download.Want, error) {
			trackID, _ := cmd.Flags().GetString("track-id")
			artist, _ := cmd.Flags().GetString("artist")
			title, _ := cmd.Flags().GetString("track")
			return gen.Track(ctx, trackID, artist, title)
		})
	},
}

var genSimilarCmd = &cobra.Command{
	Use:   "similar",
	Short: "One descriptor of recommendations for seed artists/tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGen(cmd, "similar", func(ctx context.Context, gen *download.Generator) ([]download.Want, error) {
			seedArtists, _ := cmd.Flags().GetStringSlice("seed-artist")
			seedTracks, _ := cmd.Flags().GetStringSlice("seed-track")
			limit, _ := cmd.Flags().GetInt("limit")
			return gen.Similar(ctx, seedArtists, seedTracks, limit)
		})
	},
}

func init() {
	genCollectionCmd.Flags().String("artist", "", "artist name (resolved via catalog search)")
	genCollectionCmd.Flags().String("artist-id", "", "catalog artist id")
	genCollectionCmd.Flags().Bool("include-singles", false, "include single releases")

	genAlbumCmd.Flags().String("artist", "", "artist name (resolved via catalog search)")
	genAlbumCmd.Flags().String("artist-id", "", "catalog artist id")
	genAlbumCmd.Flags().String("album", "", "album title")
	genAlbumCmd.Flags().String("album-id", "", "catalog album id")

	genTrackCmd.Flags().String("artist", "", "artist name")
	genTrackCmd.Flags().String("track", "", "track title")
	genTrackCmd.Flags().String("track-id", "", "catalog track id")

	genSimilarCmd.Flags().StringSlice("seed-artist", nil, "seed artist id (repeatable)")
	genSimilarCmd.Flags().StringSlice("seed-track", nil, "seed track id (repeatable)")
	genSimilarCmd.Flags().Int("limit", 20, "number of recommendations to request")

	genCmd.AddCommand(genCollectionCmd, genAlbumCmd, genTrackCmd, genSimilarCmd)
	rootCmd.AddCommand(genCmd)
}

func runGen(cmd *cobra.Command, label string, discover func(context.Context, *download.Generator) ([]download.Want, error)) error {
	setupLogging()

	client, err := newSpotifyClient()
	if err != nil {
		return err
	}
	gen := download.NewGenerator(client, GetConfigString("batch-dir", "batches"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wants, err := discover(ctx, gen)
	if err != nil {
		return err
	}

	path, err := gen.WriteBatch(wants, label)
	if err != nil {
		return err
	}
	util.SuccessLog("Wrote %d tracks to %s", len(wants), path)
	return nil
}

func resolveArtistFlag(ctx context.Context, cmd *cobra.Command, gen *download.Generator) (string, error) {
	name, _ := cmd.Flags().GetString("artist")
	id, _ := cmd.Flags().GetString("artist-id")
	return gen.ResolveArtist(ctx, name, id)
}
