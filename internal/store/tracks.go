package store

import (
	"database/sql"
	"fmt"

	"github.com/franz/zmusic-organizer/internal/util"
)

// TrackRow is the flat projection of a final sidecar into the tracks table.
// want_file is deliberately absent: LOAD never touches it.
type TrackRow struct {
	FileHash  string
	FilePath  string
	FileSize  int64
	FileMTime int64
	Extension string

	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	TrackNumber int
	DiscNumber  int
	Year        int
	DurationSec float64

	SpotifyID      string
	SpotifyURL     string
	SpotifyAlbumID string
	SpotifyAlbum   string
	ReleaseDate    string
	Popularity     int
	Explicit       bool
	ISRC           string
	MatchScore     float64

	Tempo           float64
	Key             string
	Energy          float64
	BeatDensity     float64
	SampleRate      int
	Genre           string
	GenreAlt        string
	GenreConfidence float64
	Mood            string
	Valence         float64
	Arousal         float64
	LeadInstrument  string
	BassType        string
	DrumsPattern    string
	Embedding       string // JSON array
}

// trackColumns are the columns LOAD writes; the schema check verifies each
// one exists before the first upsert
var trackColumns = []string{
	"file_hash", "file_path", "has_audio", "want_file",
	"file_size", "file_mtime", "extension",
	"title", "artist", "album", "album_artist", "track_number", "disc_number",
	"year", "duration_sec",
	"spotify_id", "spotify_url", "spotify_album_id", "spotify_album",
	"release_date", "popularity", "explicit", "isrc", "match_score",
	"tempo", "key", "energy", "beat_density", "sample_rate",
	"genre", "genre_alt", "genre_confidence",
	"mood", "valence", "arousal",
	"lead_instrument", "bass_type", "drums_pattern", "embedding",
}

// VerifySchema checks that the tracks table carries every column LOAD
// writes. A missing column is a misconfiguration, fatal to the run.
func (s *Store) VerifySchema() error {
	rows, err := s.db.Query("PRAGMA table_info(tracks)")
	if err != nil {
		return fmt.Errorf("failed to inspect tracks table: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("failed to scan table info: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(present) == 0 {
		return fmt.Errorf("%w: tracks table does not exist", util.ErrSchemaMismatch)
	}
	for _, col := range trackColumns {
		if !present[col] {
			return fmt.Errorf("%w: tracks table is missing column %q", util.ErrSchemaMismatch, col)
		}
	}
	return nil
}

const upsertTrackSQL = `
INSERT INTO tracks (
  file_hash, file_path,
  file_size, file_mtime, extension,
  title, artist, album, album_artist, track_number, disc_number, year, duration_sec,
  spotify_id, spotify_url, spotify_album_id, spotify_album, release_date,
  popularity, explicit, isrc, match_score,
  tempo, key, energy, beat_density, sample_rate,
  genre, genre_alt, genre_confidence, mood, valence, arousal,
  lead_instrument, bass_type, drums_pattern, embedding,
  updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(file_hash) DO UPDATE SET
  file_path = excluded.file_path,
  file_size = excluded.file_size,
  file_mtime = excluded.file_mtime,
  extension = excluded.extension,
  title = excluded.title,
  artist = excluded.artist,
  album = excluded.album,
  album_artist = excluded.album_artist,
  track_number = excluded.track_number,
  disc_number = excluded.disc_number,
  year = excluded.year,
  duration_sec = excluded.duration_sec,
  spotify_id = excluded.spotify_id,
  spotify_url = excluded.spotify_url,
  spotify_album_id = excluded.spotify_album_id,
  spotify_album = excluded.spotify_album,
  release_date = excluded.release_date,
  popularity = excluded.popularity,
  explicit = excluded.explicit,
  isrc = excluded.isrc,
  match_score = excluded.match_score,
  tempo = excluded.tempo,
  key = excluded.key,
  energy = excluded.energy,
  beat_density = excluded.beat_density,
  sample_rate = excluded.sample_rate,
  genre = excluded.genre,
  genre_alt = excluded.genre_alt,
  genre_confidence = excluded.genre_confidence,
  mood = excluded.mood,
  valence = excluded.valence,
  arousal = excluded.arousal,
  lead_instrument = excluded.lead_instrument,
  bass_type = excluded.bass_type,
  drums_pattern = excluded.drums_pattern,
  embedding = excluded.embedding,
  updated_at = CURRENT_TIMESTAMP
`

// UpsertTrack inserts or replaces the row keyed by file_hash, then asserts
// has_audio = 1 for it. want_file and created_at survive the update.
func (s *Store) UpsertTrack(row *TrackRow) error {
	if row.FileHash == "" {
		return fmt.Errorf("track row has no file_hash")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(upsertTrackSQL,
		row.FileHash, row.FilePath,
		row.FileSize, row.FileMTime, row.Extension,
		nullStr(row.Title), nullStr(row.Artist), nullStr(row.Album), nullStr(row.AlbumArtist),
		nullInt(row.TrackNumber), nullInt(row.DiscNumber), nullInt(row.Year), row.DurationSec,
		nullStr(row.SpotifyID), nullStr(row.SpotifyURL), nullStr(row.SpotifyAlbumID), nullStr(row.SpotifyAlbum), nullStr(row.ReleaseDate),
		row.Popularity, boolInt(row.Explicit), nullStr(row.ISRC), row.MatchScore,
		row.Tempo, nullStr(row.Key), row.Energy, row.BeatDensity, nullInt(row.SampleRate),
		nullStr(row.Genre), nullStr(row.GenreAlt), row.GenreConfidence,
		nullStr(row.Mood), row.Valence, row.Arousal,
		nullStr(row.LeadInstrument), nullStr(row.BassType), nullStr(row.DrumsPattern), nullStr(row.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track %s: %w", row.FileHash, err)
	}

	if _, err := tx.Exec("UPDATE tracks SET has_audio = 1 WHERE file_hash = ?", row.FileHash); err != nil {
		return fmt.Errorf("failed to set has_audio: %w", err)
	}

	return tx.Commit()
}

// CountTracks returns the number of rows in tracks
func (s *Store) CountTracks() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&n)
	return n, err
}

// GetTrackPath returns the stored file_path for a hash, or ErrNotFound
func (s *Store) GetTrackPath(fileHash string) (string, error) {
	var path string
	err := s.db.QueryRow("SELECT file_path FROM tracks WHERE file_hash = ?", fileHash).Scan(&path)
	if err == sql.ErrNoRows {
		return "", util.ErrNotFound
	}
	return path, err
}

// ClearTracks deletes all rows but keeps the schema
func (s *Store) ClearTracks() (int64, error) {
	res, err := s.db.Exec("DELETE FROM tracks")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DropTracks drops the tracks table entirely
func (s *Store) DropTracks() error {
	_, err := s.db.Exec("DROP TABLE IF EXISTS tracks")
	return err
}

// RecreateTracks drops the tracks table and applies the current schema
// again, discarding all rows and any manual alterations
func (s *Store) RecreateTracks() error {
	if err := s.DropTracks(); err != nil {
		return err
	}
	if _, err := s.db.Exec(schemaV1); err != nil {
		return fmt.Errorf("failed to recreate tracks table: %w", err)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
