package analyze

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/util"
)

const sampleOutput = `{
  "features": {"duration": 183.4, "sample_rate": 44100, "tempo": 128.0, "key": "Am", "energy": 0.72, "beat_density": 2.1},
  "genre": {"primary": "techno", "alt_1": "house", "confidence": 0.81},
  "mood": {"tag": "dark", "valence": 0.3, "arousal": 0.7},
  "instruments": {"lead_instrument": "synth", "bass_type": "sub", "drums_pattern": "four-on-floor"},
  "embedding": [0.1, 0.2, 0.3]
}`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-analyzer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Track.flac")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecExtractor(t *testing.T) {
	script := writeScript(t, "cat <<'EOF'\n"+sampleOutput+"\nEOF")

	ex, err := NewExecExtractor(script)
	if err != nil {
		t.Fatal(err)
	}

	res, err := ex.Extract(context.Background(), "/music/Track.flac")
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if res.Features.Tempo != 128.0 || res.Features.Key != "Am" {
		t.Errorf("features = %+v", res.Features)
	}
	if res.Genre.Primary != "techno" || res.Genre.Confidence != 0.81 {
		t.Errorf("genre = %+v", res.Genre)
	}
	if len(res.Embedding) != 3 {
		t.Errorf("embedding = %v", res.Embedding)
	}
}

func TestExecExtractorReceivesAudioPath(t *testing.T) {
	// The script echoes its last argument back as the key field
	script := writeScript(t, `printf '{"features": {"key": "%s"}}' "$1"`)

	ex, err := NewExecExtractor(script)
	if err != nil {
		t.Fatal(err)
	}

	res, err := ex.Extract(context.Background(), "/music/My Track.flac")
	if err != nil {
		t.Fatal(err)
	}
	if res.Features.Key != "/music/My Track.flac" {
		t.Errorf("audio path not passed through: %q", res.Features.Key)
	}
}

func TestExecExtractorInvalidJSON(t *testing.T) {
	script := writeScript(t, "echo not-json")

	ex, err := NewExecExtractor(script)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Extract(context.Background(), "x.flac"); err == nil {
		t.Fatal("Extract() accepted invalid JSON")
	}
}

func TestExecExtractorCommandFailure(t *testing.T) {
	script := writeScript(t, "echo model not loaded >&2; exit 2")

	ex, err := NewExecExtractor(script)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Extract(context.Background(), "x.flac"); err == nil {
		t.Fatal("Extract() ignored command failure")
	}
}

func TestNewExecExtractorEmptyCommand(t *testing.T) {
	if _, err := NewExecExtractor("  "); err == nil {
		t.Fatal("NewExecExtractor() accepted an empty command")
	}
}

func TestRunWritesSidecar(t *testing.T) {
	audio := writeAudio(t)
	script := writeScript(t, "cat <<'EOF'\n"+sampleOutput+"\nEOF")

	ex, err := NewExecExtractor(script)
	if err != nil {
		t.Fatal(err)
	}

	if err := New(ex, nil).Run(context.Background(), audio, false); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	sc, err := sidecar.ReadAudio(sidecar.AnalysisPath(audio))
	if err != nil {
		t.Fatalf("no analysis sidecar: %v", err)
	}
	if sc.HashSHA256 == "" || sc.HashSHA256 != sc.File.HashSHA256 {
		t.Error("sidecar hash missing or inconsistent")
	}
	if sc.Features.Tempo != 128.0 {
		t.Errorf("features lost: %+v", sc.Features)
	}
}

func TestRunExtractorFailureIsCategorized(t *testing.T) {
	audio := writeAudio(t)
	script := writeScript(t, "exit 1")

	ex, err := NewExecExtractor(script)
	if err != nil {
		t.Fatal(err)
	}

	err = New(ex, nil).Run(context.Background(), audio, false)
	if util.KindOf(err) != util.KindAnalyzeExtractor {
		t.Fatalf("expected analyze-extractor, got: %v", err)
	}
	if sidecar.Exists(sidecar.AnalysisPath(audio)) {
		t.Error("sidecar written despite extractor failure")
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	audio := writeAudio(t)
	script := writeScript(t, "cat <<'EOF'\n"+sampleOutput+"\nEOF")

	ex, err := NewExecExtractor(script)
	if err != nil {
		t.Fatal(err)
	}
	if err := New(ex, nil).Run(context.Background(), audio, true); err != nil {
		t.Fatal(err)
	}
	if sidecar.Exists(sidecar.AnalysisPath(audio)) {
		t.Error("dry run wrote a sidecar")
	}
}
