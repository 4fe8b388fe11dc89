package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/zmusic-organizer/internal/analyze"
	"github.com/franz/zmusic-organizer/internal/load"
	"github.com/franz/zmusic-organizer/internal/match"
	"github.com/franz/zmusic-organizer/internal/merge"
	"github.com/franz/zmusic-organizer/internal/pipeline"
	"github.com/franz/zmusic-organizer/internal/spotify"
	"github.com/franz/zmusic-organizer/internal/util"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Run the full enrichment pipeline over the library",
	Long: `Walk the library root and run the four enrichment stages over every
audio file: match against the Spotify catalog, run acoustic analysis,
merge both results into a final sidecar, and load it into the tracks
table.

Each stage records its result as a sidecar file next to the audio file,
so a re-run only does the work that is missing or stale. A failing track
is logged and skipped; the run continues with the next file.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "report what would be done without writing anything")
	importCmd.Flags().Int("max-tracks", 0, "stop after this many tracks (0 = no limit)")
	importCmd.Flags().Bool("info", false, "print the run summary as JSON")

	importCmd.Flags().Bool("skip-match", false, "skip the MATCH stage")
	importCmd.Flags().Bool("skip-analyze", false, "skip the ANALYZE stage")
	importCmd.Flags().Bool("skip-merge", false, "skip the MERGE stage")
	importCmd.Flags().Bool("skip-load", false, "skip the LOAD stage")

	importCmd.Flags().Bool("force-match", false, "re-run MATCH even when a sidecar exists")
	importCmd.Flags().Bool("force-analyze", false, "re-run ANALYZE even when a sidecar exists")
	importCmd.Flags().Bool("force-merge", false, "re-run MERGE even when the final sidecar is fresh")
	importCmd.Flags().Bool("force-load", false, "re-run LOAD for every track")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging()

	root, err := requireLibraryRoot()
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	maxTracks, _ := cmd.Flags().GetInt("max-tracks")
	infoJSON, _ := cmd.Flags().GetBool("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	client, err := newSpotifyClient()
	if err != nil {
		return err
	}

	cache, err := spotify.NewCache(db.DB())
	if err != nil {
		return fmt.Errorf("failed to create request cache: %w", err)
	}

	matcher := match.New(&match.Config{
		Catalog:   client,
		Cache:     cache,
		Threshold: GetConfigFloat("match-threshold", match.DefaultThreshold),
		Logger:    logger,
	})

	extractor, err := analyze.NewExecExtractor(GetConfigString("analyzer-cmd", defaultAnalyzerCmd))
	if err != nil {
		return err
	}
	analyzer := analyze.New(extractor, logger)

	merger := merge.New(GetConfigFloat("duration-tolerance", merge.DefaultDurationTolerance), logger)

	loader, err := load.New(db, logger)
	if err != nil {
		return err
	}

	p := pipeline.New(&pipeline.Config{
		LibraryRoot: root,
		Extensions:  GetConfigStringSlice("extensions"),

		Matcher:  matcher,
		Analyzer: analyzer,
		Merger:   merger,
		Loader:   loader,
		Logger:   logger,

		SkipMatch:   flagBool(cmd, "skip-match"),
		SkipAnalyze: flagBool(cmd, "skip-analyze"),
		SkipMerge:   flagBool(cmd, "skip-merge"),
		SkipLoad:    flagBool(cmd, "skip-load"),

		ForceMatch:   flagBool(cmd, "force-match"),
		ForceAnalyze: flagBool(cmd, "force-analyze"),
		ForceMerge:   flagBool(cmd, "force-merge"),
		ForceLoad:    flagBool(cmd, "force-load"),

		DryRun:    dryRun,
		MaxTracks: maxTracks,

		CatalogCalls: client.Calls,
	})

	stats, runErr := p.Run(ctx)

	if infoJSON {
		if err := stats.WriteJSON(os.Stdout); err != nil {
			util.WarnLog("Failed to write summary JSON: %v", err)
		}
	} else if !viper.GetBool("quiet") {
		stats.Render(os.Stderr)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("import failed: %w", runErr)
	}
	return nil
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
