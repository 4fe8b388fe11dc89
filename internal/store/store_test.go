package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/zmusic-organizer/internal/util"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRow(hash string) *TrackRow {
	return &TrackRow{
		FileHash:    hash,
		FilePath:    "/music/Artist/Track.flac",
		FileSize:    1024,
		FileMTime:   1700000000,
		Extension:   "flac",
		Title:       "Track",
		Artist:      "Artist",
		Album:       "Album",
		Year:        2020,
		DurationSec: 180.5,
		SpotifyID:   "spotify-1",
		MatchScore:  92.5,
		Tempo:       120.0,
		Key:         "C#m",
		Genre:       "electronic",
		Embedding:   "[0.1,0.2]",
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, expected wal", mode)
	}

	var timeout int
	if err := s.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatal(err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, expected 5000", timeout)
	}
}

func TestVerifySchema(t *testing.T) {
	s := openTestStore(t)
	if err := s.VerifySchema(); err != nil {
		t.Fatalf("VerifySchema() failed on a fresh database: %v", err)
	}
}

func TestVerifySchemaMissingColumn(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.db.Exec("ALTER TABLE tracks DROP COLUMN tempo"); err != nil {
		t.Skipf("sqlite build does not support DROP COLUMN: %v", err)
	}

	err := s.VerifySchema()
	if !errors.Is(err, util.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got: %v", err)
	}
}

func TestVerifySchemaMissingTable(t *testing.T) {
	s := openTestStore(t)
	if err := s.DropTracks(); err != nil {
		t.Fatal(err)
	}
	if err := s.VerifySchema(); !errors.Is(err, util.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got: %v", err)
	}
}

func TestUpsertTrack(t *testing.T) {
	s := openTestStore(t)

	row := sampleRow("hash-1")
	if err := s.UpsertTrack(row); err != nil {
		t.Fatalf("UpsertTrack() failed: %v", err)
	}

	n, err := s.CountTracks()
	if err != nil || n != 1 {
		t.Fatalf("CountTracks() = %d, %v", n, err)
	}

	// Same hash again must update, not insert
	row.FilePath = "/music/Moved/Track.flac"
	if err := s.UpsertTrack(row); err != nil {
		t.Fatalf("second UpsertTrack() failed: %v", err)
	}
	if n, _ := s.CountTracks(); n != 1 {
		t.Fatalf("upsert inserted a duplicate, count = %d", n)
	}

	path, err := s.GetTrackPath("hash-1")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/music/Moved/Track.flac" {
		t.Errorf("file_path not updated, got %q", path)
	}
}

func TestUpsertSetsHasAudio(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertTrack(sampleRow("hash-1")); err != nil {
		t.Fatal(err)
	}

	var hasAudio int
	if err := s.db.QueryRow("SELECT has_audio FROM tracks WHERE file_hash = ?", "hash-1").Scan(&hasAudio); err != nil {
		t.Fatal(err)
	}
	if hasAudio != 1 {
		t.Errorf("has_audio = %d, expected 1", hasAudio)
	}
}

func TestUpsertPreservesWantFile(t *testing.T) {
	s := openTestStore(t)

	row := sampleRow("hash-1")
	if err := s.UpsertTrack(row); err != nil {
		t.Fatal(err)
	}

	// Another process flags the track as unwanted
	if _, err := s.db.Exec("UPDATE tracks SET want_file = 0 WHERE file_hash = ?", "hash-1"); err != nil {
		t.Fatal(err)
	}

	// A re-import must not resurrect the flag
	row.Title = "Track (Remastered)"
	if err := s.UpsertTrack(row); err != nil {
		t.Fatal(err)
	}

	var wantFile int
	if err := s.db.QueryRow("SELECT want_file FROM tracks WHERE file_hash = ?", "hash-1").Scan(&wantFile); err != nil {
		t.Fatal(err)
	}
	if wantFile != 0 {
		t.Errorf("want_file = %d after re-import, expected 0", wantFile)
	}
}

func TestGetTrackPathNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetTrackPath("missing"); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestClearTracks(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.UpsertTrack(sampleRow(fmt.Sprintf("hash-%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.ClearTracks()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("ClearTracks() removed %d rows, expected 3", n)
	}
	if count, _ := s.CountTracks(); count != 0 {
		t.Errorf("count after clear = %d", count)
	}
	// Schema survives a clear
	if err := s.VerifySchema(); err != nil {
		t.Errorf("schema broken after clear: %v", err)
	}
}

func TestRecreateTracks(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertTrack(sampleRow("doomed")); err != nil {
		t.Fatal(err)
	}

	if err := s.RecreateTracks(); err != nil {
		t.Fatalf("RecreateTracks() failed: %v", err)
	}
	if count, _ := s.CountTracks(); count != 0 {
		t.Errorf("count after recreate = %d", count)
	}
	if err := s.VerifySchema(); err != nil {
		t.Errorf("schema broken after recreate: %v", err)
	}
}

func TestMigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d failed: %v", i+1, err)
		}
		if err := s.VerifySchema(); err != nil {
			t.Fatalf("VerifySchema() #%d failed: %v", i+1, err)
		}
		s.Close()
	}
}

func TestIsBusyError(t *testing.T) {
	testCases := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("SQLITE_BUSY: database is busy"), true},
		{errors.New("syntax error"), false},
	}
	for _, tc := range testCases {
		if got := IsBusyError(tc.err); got != tc.expected {
			t.Errorf("IsBusyError(%v) = %v, expected %v", tc.err, got, tc.expected)
		}
	}
}
