package store

// Schema v1 - destination table plus request cache.
//
// tracks holds one row per content hash: the flat projection of a track's
// final sidecar. has_audio distinguishes local files (1) from catalog-only
// stubs (0). want_file is reserved for a future feeder and is never written
// by the pipeline.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tracks (
  file_hash          TEXT PRIMARY KEY,
  file_path          TEXT NOT NULL,
  has_audio          INTEGER NOT NULL DEFAULT 1,
  want_file          INTEGER NOT NULL DEFAULT 1,

  file_size          INTEGER,
  file_mtime         INTEGER,
  extension          TEXT,

  title              TEXT,
  artist             TEXT,
  album              TEXT,
  album_artist       TEXT,
  track_number       INTEGER,
  disc_number        INTEGER,
  year               INTEGER,
  duration_sec       REAL,

  spotify_id         TEXT,
  spotify_url        TEXT,
  spotify_album_id   TEXT,
  spotify_album      TEXT,
  release_date       TEXT,
  popularity         INTEGER,
  explicit           INTEGER DEFAULT 0,
  isrc               TEXT,
  match_score        REAL,

  tempo              REAL,
  key                TEXT,
  energy             REAL,
  beat_density       REAL,
  sample_rate        INTEGER,
  genre              TEXT,
  genre_alt          TEXT,
  genre_confidence   REAL,
  mood               TEXT,
  valence            REAL,
  arousal            REAL,
  lead_instrument    TEXT,
  bass_type          TEXT,
  drums_pattern      TEXT,
  embedding          TEXT, -- JSON array of floats

  created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at         DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tracks_file_path ON tracks(file_path);
CREATE INDEX IF NOT EXISTS idx_tracks_has_audio ON tracks(has_audio);
CREATE INDEX IF NOT EXISTS idx_tracks_want_file ON tracks(want_file);
CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album);

CREATE TABLE IF NOT EXISTS spotify_cache (
  cache_key    TEXT PRIMARY KEY,
  artist       TEXT,
  title        TEXT,
  album        TEXT,
  duration_s   INTEGER,
  payload      TEXT NOT NULL, -- JSON of the winning catalog track
  match_score  REAL,
  cached_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
  hit_count    INTEGER DEFAULT 0
);
`
