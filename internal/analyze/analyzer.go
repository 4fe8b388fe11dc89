package analyze

import (
	"context"
	"time"

	"github.com/franz/zmusic-organizer/internal/report"
	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/util"
)

// Analyzer drives the ANALYZE stage for one track at a time
type Analyzer struct {
	extractor Extractor
	logger    *report.EventLogger
}

// New creates an Analyzer
func New(extractor Extractor, logger *report.EventLogger) *Analyzer {
	return &Analyzer{extractor: extractor, logger: logger}
}

// Run analyzes one audio file and writes its analysis sidecar. The stage is
// independent of MATCH: it runs even when no catalog match was found.
func (a *Analyzer) Run(ctx context.Context, audioPath string, dryRun bool) error {
	fileInfo, err := sidecar.NewFileInfo(audioPath)
	if err != nil {
		return util.NewStageError(util.KindAnalyzeIO, err)
	}

	start := time.Now()
	res, err := a.extractor.Extract(ctx, audioPath)
	if err != nil {
		return util.NewStageError(util.KindAnalyzeExtractor, err)
	}
	elapsed := time.Since(start)

	util.InfoLog("Analyzed %s in %s (tempo %.1f, key %s, genre %s)",
		fileInfo.Stem, elapsed.Round(100*time.Millisecond),
		res.Features.Tempo, res.Features.Key, res.Genre.Primary)

	if dryRun {
		return nil
	}

	sc := &sidecar.Audio{
		Schema:      sidecar.Schema{Type: "audio_analysis", Version: 1},
		HashSHA256:  fileInfo.HashSHA256,
		File:        fileInfo,
		Features:    res.Features,
		Genre:       res.Genre,
		Mood:        res.Mood,
		Instruments: res.Instruments,
		Embedding:   res.Embedding,
	}

	if err := sidecar.WriteJSON(sidecar.AnalysisPath(audioPath), sc); err != nil {
		return util.NewStageError(util.KindAnalyzeIO, err)
	}

	if a.logger != nil {
		a.logger.Log(&report.Event{
			Level:    report.LevelInfo,
			Stage:    report.StageAnalyze,
			Hash:     fileInfo.HashSHA256,
			Path:     audioPath,
			Action:   "analyzed",
			Duration: elapsed.Milliseconds(),
		})
	}

	return nil
}
