package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/franz/zmusic-organizer/internal/util"
)

// DoneSuffix marks a fully processed batch descriptor
const DoneSuffix = ".done"

// settleDelay gives a writer time to finish a descriptor before the
// watcher picks it up
const settleDelay = 500 * time.Millisecond

// Queue processes batch descriptors from a spool directory
type Queue struct {
	batchDir   string
	downloader *Downloader
}

// NewQueue creates a Queue over a batch directory
func NewQueue(batchDir string, downloader *Downloader) *Queue {
	return &Queue{batchDir: batchDir, downloader: downloader}
}

// Drain processes every pending descriptor in the batch directory, in
// name order. A descriptor whose tracks all succeeded (or were already
// present) is renamed with the done suffix; a descriptor with failures is
// left in place so the next drain retries it.
func (q *Queue) Drain(ctx context.Context, dryRun bool) error {
	pending, err := q.pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		util.InfoLog("No pending batches in %s", q.batchDir)
		return nil
	}

	for _, path := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := q.processBatch(ctx, path, dryRun); err != nil {
			return err
		}
	}
	return nil
}

// Watch drains once, then blocks processing new descriptors as they
// appear, until the context is cancelled
func (q *Queue) Watch(ctx context.Context, dryRun bool) error {
	if err := q.Drain(ctx, dryRun); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(q.batchDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", q.batchDir, err)
	}
	util.InfoLog("Watching %s for new batches", q.batchDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isPendingName(event.Name) {
				continue
			}
			time.Sleep(settleDelay)
			if err := q.processBatch(ctx, event.Name, dryRun); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			util.WarnLog("Watcher error: %v", err)
		}
	}
}

// pending lists unprocessed descriptors in deterministic name order
func (q *Queue) pending() ([]string, error) {
	entries, err := os.ReadDir(q.batchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := filepath.Join(q.batchDir, entry.Name())
		if isPendingName(name) {
			paths = append(paths, name)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func isPendingName(path string) bool {
	return strings.HasSuffix(path, ".json") && !strings.HasSuffix(path, DoneSuffix)
}

// processBatch downloads every wanted track of one descriptor. Per-track
// failures are logged and counted but do not stop the batch.
func (q *Queue) processBatch(ctx context.Context, path string, dryRun bool) error {
	wants, err := ReadBatch(path)
	if err != nil {
		util.ErrorLog("Skipping unreadable batch %s: %v", path, err)
		return nil
	}

	util.InfoLog("Processing batch %s (%d tracks)", filepath.Base(path), len(wants))

	failures := 0
	for i := range wants {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := q.downloader.Fetch(ctx, &wants[i], dryRun); err != nil {
			failures++
			util.ErrorLog("Download failed for %s — %s: %v", wants[i].Artist, wants[i].Title, err)
		}
	}

	if failures > 0 {
		util.WarnLog("Batch %s: %d/%d tracks failed, leaving descriptor for retry",
			filepath.Base(path), failures, len(wants))
		return nil
	}

	if dryRun {
		return nil
	}
	if err := os.Rename(path, path+DoneSuffix); err != nil {
		return fmt.Errorf("failed to mark batch done: %w", err)
	}
	util.InfoLog("Batch %s complete", filepath.Base(path))
	return nil
}
