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

	"github.com/franz/zmusic-organizer/internal/download"
	"github.com/franz/zmusic-organizer/internal/pipeline"
	"github.com/franz/zmusic-organizer/internal/util"
)

var downloadCmd = &cobra.Command{
	Use:   "download <artist> <title>",
	Short: "Download one track into its canonical library location",
	Long: `Run the external downloader for a single wanted track. The staging
directory is snapshotted before and after the downloader runs; exactly
one new audio file must appear, and it is moved atomically to
<library-root>/<artist>/[<year>/][<album>/]<artist> - <title>.<ext>.`,
	Args: cobra.ExactArgs(2),
	RunE: runDownload,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Process batch descriptors from the batch directory",
	Long: `Drain the batch directory: each pending *.json descriptor lists wanted
tracks, which are downloaded one by one. A fully successful descriptor
is renamed with a .done suffix; descriptors with failures stay in place
and are retried on the next drain. With --watch the command keeps
running and picks up new descriptors as they appear.`,
	RunE: runQueue,
}

func init() {
	downloadCmd.Flags().Bool("dry-run", false, "report what would be done without downloading")
	downloadCmd.Flags().String("album", "", "album directory for the canonical path")
	downloadCmd.Flags().Int("year", 0, "release year for the canonical path")

	queueCmd.Flags().Bool("dry-run", false, "report what would be done without downloading")
	queueCmd.Flags().Bool("watch", false, "keep watching the batch directory for new descriptors")

	rootCmd.AddCommand(downloadCmd, queueCmd)
}

func newDownloader() (*download.Downloader, error) {
	root, err := requireLibraryRoot()
	if err != nil {
		return nil, err
	}

	command := viper.GetString("downloader-cmd")
	if command == "" {
		return nil, fmt.Errorf("downloader command is required (set downloader-cmd in config)")
	}

	exts := GetConfigStringSlice("extensions")
	if len(exts) == 0 {
		exts = pipeline.AudioExtensions
	}

	return download.New(&download.Config{
		LibraryRoot: root,
		StagingDir:  GetConfigString("staging-dir", "staging"),
		Command:     command,
		Extensions:  exts,
		Logger:      newEventLogger(),
	})
}

func runDownload(cmd *cobra.Command, args []string) error {
	setupLogging()

	dl, err := newDownloader()
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	album, _ := cmd.Flags().GetString("album")
	year, _ := cmd.Flags().GetInt("year")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	want := &download.Want{
		Artist: args[0],
		Title:  args[1],
		Album:  album,
		Year:   year,
	}

	path, err := dl.Fetch(ctx, want, dryRun)
	if err != nil {
		return err
	}
	if path != "" {
		util.SuccessLog("Track available at %s", path)
	}
	return nil
}

func runQueue(cmd *cobra.Command, args []string) error {
	setupLogging()

	dl, err := newDownloader()
	if err != nil {
		return err
	}

	batchDir := GetConfigString("batch-dir", "batches")
	if _, err := os.Stat(batchDir); os.IsNotExist(err) {
		return fmt.Errorf("batch directory does not exist: %s", batchDir)
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	watch, _ := cmd.Flags().GetBool("watch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := download.NewQueue(batchDir, dl)
	if watch {
		err = queue.Watch(ctx, dryRun)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return queue.Drain(ctx, dryRun)
}
