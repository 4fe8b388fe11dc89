package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/zmusic-organizer/internal/util"
)

func TestSanitizeComponent(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"AC/DC", "AC-DC"},
		{`What? "Why" <Now>`, "What- -Why- -Now-"},
		{"Back\\Slash:Colon*Star|Pipe", "Back-Slash-Colon-Star-Pipe"},
		{"  trimmed  ", "trimmed"},
		{"trailing dots...", "trailing dots"},
		{"", "_"},
		{"???", "---"},
		{"Normal Name", "Normal Name"},
	}
	for _, tc := range testCases {
		if got := SanitizeComponent(tc.in); got != tc.expected {
			t.Errorf("SanitizeComponent(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}

// writeScript creates an executable downloader stand-in
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-downloader.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestDownloader(t *testing.T, scriptBody string) (*Downloader, string, string) {
	t.Helper()
	root := t.TempDir()
	staging := t.TempDir()
	script := writeScript(t, t.TempDir(), scriptBody)

	dl, err := New(&Config{
		LibraryRoot: root,
		StagingDir:  staging,
		Command:     script,
		Extensions:  []string{".mp3", ".flac"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return dl, root, staging
}

func TestCanonicalDir(t *testing.T) {
	dl, root, _ := newTestDownloader(t, "true")

	testCases := []struct {
		want     Want
		expected string
	}{
		{
			Want{Artist: "Radiohead", Album: "OK Computer", Year: 1997, Title: "Airbag"},
			filepath.Join(root, "Radiohead", "1997", "OK Computer"),
		},
		{
			Want{Artist: "Radiohead", Title: "Airbag"},
			filepath.Join(root, "Radiohead"),
		},
		{
			Want{Artist: "AC/DC", Album: "Back in Black", Title: "Hells Bells"},
			filepath.Join(root, "AC-DC", "Back in Black"),
		},
	}
	for _, tc := range testCases {
		if got := dl.CanonicalDir(&tc.want); got != tc.expected {
			t.Errorf("CanonicalDir(%+v) = %q, expected %q", tc.want, got, tc.expected)
		}
	}
}

func TestFetchRelocatesSingleNewFile(t *testing.T) {
	dl, root, _ := newTestDownloader(t, `echo fake-audio > "./fetched.mp3"`)

	want := &Want{Artist: "Artist", Album: "Album", Year: 2020, Title: "Song"}
	path, err := dl.Fetch(context.Background(), want, false)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	expected := filepath.Join(root, "Artist", "2020", "Album", "Artist - Song.mp3")
	if path != expected {
		t.Errorf("Fetch() = %q, expected %q", path, expected)
	}
	if _, err := os.Stat(expected); err != nil {
		t.Errorf("destination file missing: %v", err)
	}
}

func TestFetchPassesCatalogURL(t *testing.T) {
	dl, _, staging := newTestDownloader(t,
		`printf '%s' "$1" > "./query.txt"; echo fake-audio > "./fetched.mp3"`)

	want := &Want{ID: "4uLU6hMCjMI75M1A2tKUQC", Artist: "Artist", Title: "Song"}
	if _, err := dl.Fetch(context.Background(), want, false); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	query, err := os.ReadFile(filepath.Join(staging, "query.txt"))
	if err != nil {
		t.Fatal(err)
	}
	expected := "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"
	if string(query) != expected {
		t.Errorf("downloader argument = %q, expected the catalog URL %q", query, expected)
	}
}

func TestFetchFallsBackToTextQuery(t *testing.T) {
	dl, _, staging := newTestDownloader(t,
		`printf '%s' "$1" > "./query.txt"; echo fake-audio > "./fetched.mp3"`)

	want := &Want{Artist: "Artist", Title: "Song"}
	if _, err := dl.Fetch(context.Background(), want, false); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	query, err := os.ReadFile(filepath.Join(staging, "query.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(query) != "Artist - Song" {
		t.Errorf("downloader argument = %q, expected the text query", query)
	}
}

func TestFetchStagingLeftoversIgnored(t *testing.T) {
	dl, _, staging := newTestDownloader(t, `echo fake-audio > "./fetched.flac"`)

	// Pre-existing junk in staging must not confuse the diff
	if err := os.WriteFile(filepath.Join(staging, "leftover.mp3"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staging, "partial.part"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	want := &Want{Artist: "Artist", Title: "Song"}
	if _, err := dl.Fetch(context.Background(), want, false); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	// The leftover must still be there, untouched
	if _, err := os.Stat(filepath.Join(staging, "leftover.mp3")); err != nil {
		t.Errorf("pre-existing staging file was moved: %v", err)
	}
}

func TestFetchNoNewFileIsAmbiguous(t *testing.T) {
	dl, _, _ := newTestDownloader(t, "true")

	_, err := dl.Fetch(context.Background(), &Want{Artist: "Artist", Title: "Song"}, false)
	if util.KindOf(err) != util.KindDownloadAmbiguous {
		t.Fatalf("expected downloader-diff-ambiguous, got: %v", err)
	}
}

func TestFetchMultipleNewFilesIsAmbiguous(t *testing.T) {
	dl, root, staging := newTestDownloader(t,
		`echo a > "./one.mp3"; echo b > "./two.mp3"`)

	_, err := dl.Fetch(context.Background(), &Want{Artist: "Artist", Title: "Song"}, false)
	if util.KindOf(err) != util.KindDownloadAmbiguous {
		t.Fatalf("expected downloader-diff-ambiguous, got: %v", err)
	}

	// Nothing may be relocated on an ambiguous diff
	if _, err := os.Stat(filepath.Join(staging, "one.mp3")); err != nil {
		t.Error("staging file moved despite ambiguous diff")
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("library root polluted: %v", entries)
	}
}

func TestFetchSkipsExistingTrack(t *testing.T) {
	// A downloader command that would fail if ever invoked
	dl, root, _ := newTestDownloader(t, "exit 1")

	want := &Want{Artist: "Artist", Title: "Song"}
	dest := filepath.Join(root, "Artist", "Artist - Song.flac")
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := dl.Fetch(context.Background(), want, false)
	if err != nil {
		t.Fatalf("Fetch() failed on existing track: %v", err)
	}
	if path != dest {
		t.Errorf("Fetch() = %q, expected the existing file %q", path, dest)
	}
}

func TestFetchDryRun(t *testing.T) {
	dl, root, staging := newTestDownloader(t, "exit 1")

	if _, err := dl.Fetch(context.Background(), &Want{Artist: "Artist", Title: "Song"}, true); err != nil {
		t.Fatalf("dry-run Fetch() failed: %v", err)
	}
	for _, dir := range []string{root, staging} {
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("dry run touched %s: %v", dir, entries)
		}
	}
}

func TestFetchCommandFailure(t *testing.T) {
	dl, _, _ := newTestDownloader(t, "echo broken >&2; exit 3")

	_, err := dl.Fetch(context.Background(), &Want{Artist: "Artist", Title: "Song"}, false)
	if err == nil {
		t.Fatal("Fetch() succeeded despite command failure")
	}
	if got := fmt.Sprint(err); got == "" {
		t.Error("empty error message")
	}
}
