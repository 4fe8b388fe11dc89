package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/franz/zmusic-organizer/internal/analyze"
	"github.com/franz/zmusic-organizer/internal/load"
	"github.com/franz/zmusic-organizer/internal/match"
	"github.com/franz/zmusic-organizer/internal/merge"
	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/spotify"
	"github.com/franz/zmusic-organizer/internal/util"
)

// Ad-hoc single-track commands. Each runs exactly one stage for one file,
// unconditionally, which makes debugging a stubborn track much easier than
// forcing a full pipeline run.

var matchCmd = &cobra.Command{
	Use:   "match <audio-file>",
	Short: "Run the MATCH stage for a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		client, err := newSpotifyClient()
		if err != nil {
			return err
		}
		cache, err := spotify.NewCache(db.DB())
		if err != nil {
			return err
		}

		matcher := match.New(&match.Config{
			Catalog:   client,
			Cache:     cache,
			Threshold: GetConfigFloat("match-threshold", match.DefaultThreshold),
		})

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		outcome, err := matcher.Run(context.Background(), path, dryRun)
		if err != nil {
			return err
		}
		if !outcome.Matched {
			return fmt.Errorf("no acceptable match (best score %.1f)", outcome.Score)
		}
		util.SuccessLog("Matched with score %.1f -> %s", outcome.Score, sidecar.SpotifyPath(path))
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio-file>",
	Short: "Run the ANALYZE stage for a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		extractor, err := analyze.NewExecExtractor(GetConfigString("analyzer-cmd", defaultAnalyzerCmd))
		if err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if err := analyze.New(extractor, nil).Run(context.Background(), path, dryRun); err != nil {
			return err
		}
		util.SuccessLog("Analysis written -> %s", sidecar.AnalysisPath(path))
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <audio-file>",
	Short: "Run the MERGE stage for a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		merger := merge.New(GetConfigFloat("duration-tolerance", merge.DefaultDurationTolerance), nil)
		if err := merger.Run(path, dryRun); err != nil {
			return err
		}
		util.SuccessLog("Final sidecar written -> %s", sidecar.FinalPath(path))
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <audio-file>",
	Short: "Run the LOAD stage for a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		loader, err := load.New(db, nil)
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if err := loader.Run(context.Background(), path, dryRun); err != nil {
			return err
		}
		util.SuccessLog("Loaded %s", filepath.Base(path))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{matchCmd, analyzeCmd, mergeCmd, loadCmd} {
		cmd.Flags().Bool("dry-run", false, "run the stage without writing anything")
	}
	rootCmd.AddCommand(matchCmd, analyzeCmd, mergeCmd, loadCmd)
}
