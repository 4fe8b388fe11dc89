// Package sidecar implements the per-track JSON journal that couples the
// pipeline stages without shared memory. Each stage writes its result as a
// JSON file next to the audio file; staleness and resumption reduce to
// file-existence and mtime comparisons.
package sidecar

// Schema identifies a sidecar payload type and version
type Schema struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// FileInfo describes the audio file a sidecar belongs to. HashSHA256 is the
// track identity; it must equal the live hash of the file at Path.
type FileInfo struct {
	Path       string `json:"path"`
	Stem       string `json:"stem,omitempty"`
	Extension  string `json:"extension,omitempty"`
	SizeBytes  int64  `json:"size_bytes"`
	MTime      int64  `json:"mtime"`
	HashSHA256 string `json:"hash_sha256"`
}

// LocalTags holds the embedded tags read from the audio file
type LocalTags struct {
	Artist      string  `json:"artist,omitempty"`
	Album       string  `json:"album,omitempty"`
	Title       string  `json:"title,omitempty"`
	Year        int     `json:"year,omitempty"`
	DurationSec float64 `json:"duration_sec,omitempty"`
	TrackNo     int     `json:"track_no,omitempty"`
}

// SpotifyAlbum is the album block of a catalog track
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
}

// SpotifyTrack is the chosen catalog match
type SpotifyTrack struct {
	ID          string       `json:"id"`
	URL         string       `json:"url,omitempty"`
	Name        string       `json:"name"`
	Artists     []string     `json:"artists"`
	Album       SpotifyAlbum `json:"album"`
	DurationMS  int          `json:"duration_ms"`
	DiscNumber  int          `json:"disc_number,omitempty"`
	TrackNumber int          `json:"track_number,omitempty"`
	Explicit    bool         `json:"explicit,omitempty"`
	Popularity  int          `json:"popularity"`
	ISRC        string       `json:"isrc,omitempty"`
}

// MatchInfo records how the catalog match was selected
type MatchInfo struct {
	Status       string  `json:"status"`
	ScorePercent float64 `json:"score_percent"`
	SearchQuery  string  `json:"search_query,omitempty"`
}

// Spotify is the MATCH stage sidecar (hidden .<stem>.spotify.json)
type Spotify struct {
	Schema     Schema       `json:"schema"`
	HashSHA256 string       `json:"hash_sha256"`
	File       FileInfo     `json:"file"`
	LocalTags  LocalTags    `json:"local_tags"`
	Spotify    SpotifyTrack `json:"spotify"`
	Match      MatchInfo    `json:"match"`
}

// Features holds classical DSP descriptors
type Features struct {
	Duration    float64 `json:"duration"`
	SampleRate  int     `json:"sample_rate"`
	Tempo       float64 `json:"tempo"`
	Key         string  `json:"key"`
	Energy      float64 `json:"energy"`
	BeatDensity float64 `json:"beat_density"`
}

// Genre holds the zero-shot genre classification
type Genre struct {
	Primary    string  `json:"primary"`
	Alt1       string  `json:"alt_1,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Mood holds the valence/arousal mood classification
type Mood struct {
	Tag     string  `json:"tag"`
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

// Instruments holds the detected instrumentation
type Instruments struct {
	LeadInstrument string `json:"lead_instrument,omitempty"`
	BassType       string `json:"bass_type,omitempty"`
	DrumsPattern   string `json:"drums_pattern,omitempty"`
}

// Audio is the ANALYZE stage sidecar (visible <name>.analysis.json)
type Audio struct {
	Schema      Schema      `json:"schema"`
	HashSHA256  string      `json:"hash_sha256"`
	File        FileInfo    `json:"file"`
	Features    Features    `json:"features"`
	Genre       Genre       `json:"genre"`
	Mood        Mood        `json:"mood"`
	Instruments Instruments `json:"instruments"`
	Embedding   []float64   `json:"embedding,omitempty"`
}

// AudioPayload groups the acoustic sections carried into the final sidecar
type AudioPayload struct {
	Features    Features    `json:"features"`
	Genre       Genre       `json:"genre"`
	Mood        Mood        `json:"mood"`
	Instruments Instruments `json:"instruments"`
	Embedding   []float64   `json:"embedding,omitempty"`
}

// Final is the MERGE stage sidecar (hidden .<stem>.final.json), the sole
// input to LOAD
type Final struct {
	Schema     Schema       `json:"schema"`
	HashSHA256 string       `json:"hash_sha256"`
	File       FileInfo     `json:"file"`
	LocalTags  LocalTags    `json:"local_tags"`
	Spotify    SpotifyTrack `json:"spotify"`
	Match      MatchInfo    `json:"match"`
	Audio      AudioPayload `json:"audio"`
}
