package merge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/util"
)

func writeTrack(t *testing.T, dir string) (path, hash string) {
	t.Helper()
	path = filepath.Join(dir, "Track.flac")
	if err := os.WriteFile(path, []byte("audio bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	hash, err := util.HashFileSHA256(path)
	if err != nil {
		t.Fatal(err)
	}
	return path, hash
}

func writeInputs(t *testing.T, audioPath, hash string) {
	t.Helper()
	info, err := sidecar.NewFileInfo(audioPath)
	if err != nil {
		t.Fatal(err)
	}

	spot := &sidecar.Spotify{
		Schema:     sidecar.Schema{Type: "spotify_segment", Version: 1},
		HashSHA256: hash,
		File:       info,
		LocalTags:  sidecar.LocalTags{Artist: "Artist", Title: "Track"},
		Spotify: sidecar.SpotifyTrack{
			ID: "track-1", Name: "Track", Artists: []string{"Artist"},
			DurationMS: 180000,
		},
		Match: sidecar.MatchInfo{Status: "matched", ScorePercent: 90},
	}
	if err := sidecar.WriteJSON(sidecar.SpotifyPath(audioPath), spot); err != nil {
		t.Fatal(err)
	}

	audio := &sidecar.Audio{
		Schema:     sidecar.Schema{Type: "audio_analysis", Version: 1},
		HashSHA256: hash,
		File:       info,
		Features:   sidecar.Features{Duration: 180.2, Tempo: 120, Key: "Am"},
		Genre:      sidecar.Genre{Primary: "rock", Confidence: 0.8},
		Embedding:  []float64{0.1, 0.2},
	}
	if err := sidecar.WriteJSON(sidecar.AnalysisPath(audioPath), audio); err != nil {
		t.Fatal(err)
	}
}

func TestRunMergesBothInputs(t *testing.T) {
	dir := t.TempDir()
	path, hash := writeTrack(t, dir)
	writeInputs(t, path, hash)

	if err := New(0, nil).Run(path, false); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	final, err := sidecar.ReadFinal(sidecar.FinalPath(path))
	if err != nil {
		t.Fatalf("no final sidecar: %v", err)
	}
	if final.HashSHA256 != hash {
		t.Error("final sidecar carries the wrong hash")
	}
	if final.Spotify.ID != "track-1" {
		t.Errorf("spotify block lost: %+v", final.Spotify)
	}
	if final.Audio.Features.Tempo != 120 {
		t.Errorf("audio block lost: %+v", final.Audio)
	}
	if len(final.Audio.Embedding) != 2 {
		t.Errorf("embedding lost: %v", final.Audio.Embedding)
	}
}

func TestRunRebuildsFileBlockFromLiveStat(t *testing.T) {
	dir := t.TempDir()
	path, hash := writeTrack(t, dir)
	writeInputs(t, path, hash)

	// Touch the file without changing its contents; the merge must record
	// the current mtime, not the one the earlier stages captured
	touched := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(path, touched, touched); err != nil {
		t.Fatal(err)
	}

	if err := New(0, nil).Run(path, false); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	final, err := sidecar.ReadFinal(sidecar.FinalPath(path))
	if err != nil {
		t.Fatal(err)
	}
	if final.File.MTime != touched.Unix() {
		t.Errorf("final mtime = %d, expected the live %d", final.File.MTime, touched.Unix())
	}
	if final.File.Path != path || final.File.HashSHA256 != hash {
		t.Errorf("file block inconsistent: %+v", final.File)
	}
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeTrack(t, dir)
	// No sidecars at all

	err := New(0, nil).Run(path, false)
	if util.KindOf(err) != util.KindMergeMissingInput {
		t.Fatalf("expected merge-missing-input, got: %v", err)
	}
	if sidecar.Exists(sidecar.FinalPath(path)) {
		t.Error("final sidecar written despite missing inputs")
	}
}

func TestRunIdentityMismatch(t *testing.T) {
	dir := t.TempDir()
	path, hash := writeTrack(t, dir)
	writeInputs(t, path, hash)

	// The audio file changes after the sidecars were written
	if err := os.WriteFile(path, []byte("different audio bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	err := New(0, nil).Run(path, false)
	if util.KindOf(err) != util.KindMergeIdentity {
		t.Fatalf("expected merge-identity-mismatch, got: %v", err)
	}
	if sidecar.Exists(sidecar.FinalPath(path)) {
		t.Error("final sidecar written despite identity mismatch")
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path, hash := writeTrack(t, dir)
	writeInputs(t, path, hash)

	if err := New(0, nil).Run(path, true); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if sidecar.Exists(sidecar.FinalPath(path)) {
		t.Error("dry run wrote a final sidecar")
	}
}

func TestRunErrorsAreCategorized(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeTrack(t, dir)

	err := New(0, nil).Run(path, false)
	var se *util.StageError
	if !errors.As(err, &se) {
		t.Fatalf("merge failure is not a StageError: %v", err)
	}
}
