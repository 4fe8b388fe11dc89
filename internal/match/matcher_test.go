package match

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/spotify"
	"github.com/franz/zmusic-organizer/internal/util"
)

// fakeCatalog serves canned search results without any network
type fakeCatalog struct {
	results   []spotify.Track
	searched  []string
	getCalled bool
}

func (f *fakeCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]spotify.Track, error) {
	f.searched = append(f.searched, query)
	return f.results, nil
}

func (f *fakeCatalog) GetTrack(ctx context.Context, id string) (*spotify.Track, error) {
	f.getCalled = true
	for i := range f.results {
		if f.results[i].ID == id {
			return &f.results[i], nil
		}
	}
	return nil, util.ErrNotFound
}

// writeAudioFile creates an untagged file whose name carries the metadata,
// exercising the filename fallback
func writeAudioFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWritesSidecarOnMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeAudioFile(t, dir, "Radiohead - Karma Police.mp3")

	catalog := &fakeCatalog{results: []spotify.Track{
		{
			ID:      "track-1",
			Name:    "Karma Police",
			Artists: []spotify.Artist{{Name: "Radiohead"}},
			Album:   spotify.Album{ID: "album-1", Name: "OK Computer", ReleaseDate: "1997-06-16"},
		},
	}}

	m := New(&Config{Catalog: catalog})
	outcome, err := m.Run(context.Background(), path, false)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !outcome.Matched {
		t.Fatalf("Run() did not match, score %.1f", outcome.Score)
	}
	if !catalog.getCalled {
		t.Error("Run() never fetched the full track object")
	}

	sc, err := sidecar.ReadSpotify(sidecar.SpotifyPath(path))
	if err != nil {
		t.Fatalf("no match sidecar written: %v", err)
	}
	if sc.Spotify.ID != "track-1" {
		t.Errorf("sidecar records track %q, expected track-1", sc.Spotify.ID)
	}
	if sc.HashSHA256 == "" || sc.HashSHA256 != sc.File.HashSHA256 {
		t.Error("sidecar hash is missing or inconsistent")
	}
	if sc.Match.Status != "matched" {
		t.Errorf("sidecar match status = %q", sc.Match.Status)
	}
}

func TestRunLowScoreIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := writeAudioFile(t, dir, "Radiohead - Karma Police.mp3")

	catalog := &fakeCatalog{results: []spotify.Track{
		{
			ID:      "wrong-1",
			Name:    "Completely Different Song",
			Artists: []spotify.Artist{{Name: "Someone Else"}},
		},
	}}

	m := New(&Config{Catalog: catalog})
	outcome, err := m.Run(context.Background(), path, false)
	if err != nil {
		t.Fatalf("low score must not be an error, got: %v", err)
	}
	if outcome.Matched {
		t.Error("Run() reported a match for an unrelated candidate")
	}
	if sidecar.Exists(sidecar.SpotifyPath(path)) {
		t.Error("sidecar written despite sub-threshold score")
	}
}

func TestRunFreeTextFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeAudioFile(t, dir, "Radiohead - Karma Police.mp3")

	// First (fielded) search returns nothing; the matcher must retry with
	// a free-text query
	catalog := &fakeCatalog{}
	m := New(&Config{Catalog: catalog})

	outcome, err := m.Run(context.Background(), path, false)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if outcome.Matched {
		t.Error("Run() matched with no candidates")
	}
	if len(catalog.searched) != 2 {
		t.Fatalf("expected 2 search attempts, got %d: %v", len(catalog.searched), catalog.searched)
	}
	if catalog.searched[1] != "Radiohead Karma Police" {
		t.Errorf("free-text fallback query = %q", catalog.searched[1])
	}
}

func TestRunSidecarWriteFailureIsIOKind(t *testing.T) {
	dir := t.TempDir()
	path := writeAudioFile(t, dir, "Radiohead - Karma Police.mp3")

	// A directory squatting on the sidecar path makes the atomic rename fail
	if err := os.Mkdir(sidecar.SpotifyPath(path), 0755); err != nil {
		t.Fatal(err)
	}

	catalog := &fakeCatalog{results: []spotify.Track{
		{
			ID:      "track-1",
			Name:    "Karma Police",
			Artists: []spotify.Artist{{Name: "Radiohead"}},
		},
	}}

	m := New(&Config{Catalog: catalog})
	_, err := m.Run(context.Background(), path, false)
	if util.KindOf(err) != util.KindMatchIO {
		t.Fatalf("expected match-io, got: %v", err)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeAudioFile(t, dir, "Radiohead - Karma Police.mp3")

	catalog := &fakeCatalog{results: []spotify.Track{
		{
			ID:      "track-1",
			Name:    "Karma Police",
			Artists: []spotify.Artist{{Name: "Radiohead"}},
		},
	}}

	m := New(&Config{Catalog: catalog})
	outcome, err := m.Run(context.Background(), path, true)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !outcome.Matched {
		t.Error("dry run should still report the match")
	}
	if sidecar.Exists(sidecar.SpotifyPath(path)) {
		t.Error("dry run wrote a sidecar")
	}
}
