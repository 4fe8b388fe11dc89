package pipeline

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/zmusic-organizer/internal/analyze"
	"github.com/franz/zmusic-organizer/internal/load"
	"github.com/franz/zmusic-organizer/internal/match"
	"github.com/franz/zmusic-organizer/internal/merge"
	"github.com/franz/zmusic-organizer/internal/report"
	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/util"
)

// Config wires the four stage drivers into one pipeline run
type Config struct {
	LibraryRoot string
	Extensions  []string

	Matcher  *match.Matcher
	Analyzer *analyze.Analyzer
	Merger   *merge.Merger
	Loader   *load.Loader

	Logger *report.EventLogger

	// Per-stage skip and force switches. Skip wins over force.
	SkipMatch   bool
	SkipAnalyze bool
	SkipMerge   bool
	SkipLoad    bool

	ForceMatch   bool
	ForceAnalyze bool
	ForceMerge   bool
	ForceLoad    bool

	DryRun    bool
	MaxTracks int

	// CatalogCalls reports the outbound API call count for the summary
	CatalogCalls func() int64
}

// Pipeline runs the import stages over a library
type Pipeline struct {
	cfg   *Config
	stats *report.Stats
}

// New creates a Pipeline
func New(cfg *Config) *Pipeline {
	return &Pipeline{cfg: cfg, stats: report.NewStats()}
}

// Run processes every audio file under the library root. A categorized
// failure stops the remaining stages for that track only; the run continues
// with the next file. Fatal errors (authentication, destination schema)
// abort the whole run.
func (p *Pipeline) Run(ctx context.Context) (*report.Stats, error) {
	start := time.Now()

	files, err := CollectAudioFiles(p.cfg.LibraryRoot, p.cfg.Extensions)
	if err != nil {
		return p.stats, err
	}
	if p.cfg.MaxTracks > 0 && len(files) > p.cfg.MaxTracks {
		files = files[:p.cfg.MaxTracks]
	}
	p.stats.Total = len(files)

	util.InfoLog("Importing %d tracks from %s", len(files), p.cfg.LibraryRoot)

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("tracks"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return p.finish(start), err
		}

		if err := p.processTrack(ctx, path); err != nil {
			if util.IsFatal(err) {
				util.ErrorLog("Aborting run: %v", err)
				return p.finish(start), err
			}
			p.recordFailure(path, err)
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}
	return p.finish(start), nil
}

func (p *Pipeline) finish(start time.Time) *report.Stats {
	p.stats.ElapsedSec = time.Since(start).Seconds()
	if p.cfg.CatalogCalls != nil {
		p.stats.SpotifyCalls = int(p.cfg.CatalogCalls())
	}
	return p.stats
}

// processTrack runs the stages one track needs, in order. Each stage
// decision is made from sidecar presence and freshness alone, so an
// interrupted run resumes exactly where it stopped.
func (p *Pipeline) processTrack(ctx context.Context, path string) error {
	if !p.cfg.SkipMatch && p.needsMatch(path) {
		outcome, err := p.cfg.Matcher.Run(ctx, path, p.cfg.DryRun)
		if err != nil {
			return err
		}
		if outcome.Matched {
			p.stats.Matched++
		}
	}

	if !p.cfg.SkipAnalyze && p.needsAnalyze(path) {
		if err := p.cfg.Analyzer.Run(ctx, path, p.cfg.DryRun); err != nil {
			return err
		}
		p.stats.Analyzed++
	}

	if !p.cfg.SkipMerge && p.needsMerge(path) {
		if err := p.cfg.Merger.Run(path, p.cfg.DryRun); err != nil {
			return err
		}
		if !p.cfg.DryRun {
			p.stats.Merged++
		}
	}

	if !p.cfg.SkipLoad && p.needsLoad(path) {
		if err := p.cfg.Loader.Run(ctx, path, p.cfg.DryRun); err != nil {
			return err
		}
		if !p.cfg.DryRun {
			p.stats.Loaded++
		}
	}

	return nil
}

func (p *Pipeline) needsMatch(path string) bool {
	return p.cfg.ForceMatch || !sidecar.Exists(sidecar.SpotifyPath(path))
}

func (p *Pipeline) needsAnalyze(path string) bool {
	return p.cfg.ForceAnalyze || !sidecar.Exists(sidecar.AnalysisPath(path))
}

// needsMerge reruns the merge when the final sidecar is missing or older
// than either of its inputs
func (p *Pipeline) needsMerge(path string) bool {
	if p.cfg.ForceMerge {
		return true
	}
	finalPath := sidecar.FinalPath(path)
	if !sidecar.Exists(finalPath) {
		return true
	}
	return sidecar.NewerThan(sidecar.SpotifyPath(path), finalPath) ||
		sidecar.NewerThan(sidecar.AnalysisPath(path), finalPath)
}

// needsLoad runs whenever a final sidecar exists; the upsert is keyed by
// content hash, so a repeated load of an unchanged track is harmless
func (p *Pipeline) needsLoad(path string) bool {
	if p.cfg.ForceLoad {
		return true
	}
	return sidecar.Exists(sidecar.FinalPath(path))
}

// recordFailure routes a categorized per-track failure to its stage counter
// and log stream
func (p *Pipeline) recordFailure(path string, err error) {
	kind := util.KindOf(err)
	stage := stageOf(kind)
	p.stats.RecordFailure(stage)
	util.ErrorLog("%s failed for %s: %v", stage, path, err)
	if p.cfg.Logger != nil {
		p.cfg.Logger.LogFailure(stage, path, "", string(kind), err)
	}
}

// stageOf maps a failure category onto its pipeline stage
func stageOf(kind util.ErrorKind) report.Stage {
	s := string(kind)
	switch {
	case strings.HasPrefix(s, "match"), kind == util.KindRateLimitExhausted, kind == util.KindAuthFatal:
		return report.StageMatch
	case strings.HasPrefix(s, "analyze"):
		return report.StageAnalyze
	case strings.HasPrefix(s, "merge"):
		return report.StageMerge
	case strings.HasPrefix(s, "load"):
		return report.StageLoad
	case strings.HasPrefix(s, "download"):
		return report.StageDownload
	}
	return report.StageMatch
}
