// Package merge implements the MERGE stage: join the match and analysis
// sidecars of a track into the single final sidecar that LOAD consumes.
package merge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/zmusic-organizer/internal/report"
	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/util"
)

// DefaultDurationTolerance is the maximum accepted gap, in seconds, between
// the probed local duration and the catalog duration before a warning is
// emitted. The merge still proceeds; the gap only signals a suspect match.
const DefaultDurationTolerance = 5.0

// Merger drives the MERGE stage for one track at a time
type Merger struct {
	durationTolerance float64
	logger            *report.EventLogger
}

// New creates a Merger. A non-positive tolerance selects the default.
func New(durationTolerance float64, logger *report.EventLogger) *Merger {
	if durationTolerance <= 0 {
		durationTolerance = DefaultDurationTolerance
	}
	return &Merger{durationTolerance: durationTolerance, logger: logger}
}

// Run merges the two stage sidecars of one audio file. Both inputs must
// exist and both must carry the live content hash of the audio file; a
// missing input or a hash mismatch fails the track.
func (m *Merger) Run(audioPath string, dryRun bool) error {
	spotifyPath := sidecar.SpotifyPath(audioPath)
	audioSCPath := sidecar.AnalysisPath(audioPath)

	spot, err := sidecar.ReadSpotify(spotifyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return util.NewStageError(util.KindMergeMissingInput,
				fmt.Errorf("no match sidecar for %s", audioPath))
		}
		return util.NewStageError(util.KindMergeMissingInput, err)
	}

	audio, err := sidecar.ReadAudio(audioSCPath)
	if err != nil {
		if os.IsNotExist(err) {
			return util.NewStageError(util.KindMergeMissingInput,
				fmt.Errorf("no analysis sidecar for %s", audioPath))
		}
		return util.NewStageError(util.KindMergeMissingInput, err)
	}

	// Identity check against the file as it exists right now. A sidecar
	// carrying a stale hash describes a different file contents and must
	// not be merged.
	liveInfo, err := os.Stat(audioPath)
	if err != nil {
		return util.NewStageError(util.KindMergeMissingInput, err)
	}
	liveHash, err := util.HashFileSHA256(audioPath)
	if err != nil {
		return util.NewStageError(util.KindMergeMissingInput, err)
	}
	if spot.HashSHA256 != liveHash {
		return util.NewStageError(util.KindMergeIdentity,
			fmt.Errorf("match sidecar hash %.12s does not match live hash %.12s", spot.HashSHA256, liveHash))
	}
	if audio.HashSHA256 != liveHash {
		return util.NewStageError(util.KindMergeIdentity,
			fmt.Errorf("analysis sidecar hash %.12s does not match live hash %.12s", audio.HashSHA256, liveHash))
	}

	m.checkDuration(audioPath, spot, audio)

	if dryRun {
		return nil
	}

	// The file block is rebuilt from the live stat; the inputs carry the
	// size and mtime their stage observed, which may since have changed
	// without touching the contents.
	final := &sidecar.Final{
		Schema:     sidecar.Schema{Type: "final_segment", Version: 1},
		HashSHA256: liveHash,
		File: sidecar.FileInfo{
			Path:       audioPath,
			Stem:       sidecar.Stem(audioPath),
			Extension:  filepath.Ext(audioPath),
			SizeBytes:  liveInfo.Size(),
			MTime:      liveInfo.ModTime().Unix(),
			HashSHA256: liveHash,
		},
		LocalTags: spot.LocalTags,
		Spotify:   spot.Spotify,
		Match:     spot.Match,
		Audio: sidecar.AudioPayload{
			Features:    audio.Features,
			Genre:       audio.Genre,
			Mood:        audio.Mood,
			Instruments: audio.Instruments,
			Embedding:   audio.Embedding,
		},
	}

	if err := sidecar.WriteJSON(sidecar.FinalPath(audioPath), final); err != nil {
		return util.NewStageError(util.KindMergeMissingInput, err)
	}

	if m.logger != nil {
		m.logger.Log(&report.Event{
			Level:  report.LevelInfo,
			Stage:  report.StageMerge,
			Hash:   liveHash,
			Path:   audioPath,
			Action: "merged",
		})
	}

	return nil
}

// checkDuration warns when the probed duration and the catalog duration
// disagree beyond the tolerance
func (m *Merger) checkDuration(audioPath string, spot *sidecar.Spotify, audio *sidecar.Audio) {
	local := audio.Features.Duration
	catalog := float64(spot.Spotify.DurationMS) / 1000.0
	if local <= 0 || catalog <= 0 {
		return
	}

	delta := local - catalog
	if delta < 0 {
		delta = -delta
	}
	if delta <= m.durationTolerance {
		return
	}

	util.WarnLog("Duration mismatch for %s: local %.1fs vs catalog %.1fs", audioPath, local, catalog)
	if m.logger != nil {
		m.logger.Log(&report.Event{
			Level:  report.LevelWarning,
			Stage:  report.StageMerge,
			Hash:   spot.HashSHA256,
			Path:   audioPath,
			Action: "duration-mismatch",
			Reason: fmt.Sprintf("local %.1fs vs catalog %.1fs", local, catalog),
		})
	}
}
