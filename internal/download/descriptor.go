// Package download implements batch acquisition: a queue of JSON batch
// descriptors, an external downloader driven per wanted track, and the
// staging-diff relocation of whatever the downloader fetched into its
// canonical library location.
package download

import (
	"encoding/json"
	"fmt"
	"os"
)

// Want describes one wanted track in a batch descriptor
type Want struct {
	ID     string `json:"id,omitempty"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	Year   int    `json:"year,omitempty"`
	Title  string `json:"title"`
}

// SpotifyURL returns the public track URL for the catalog id, or "" when
// the descriptor carries no id
func (w *Want) SpotifyURL() string {
	if w.ID == "" {
		return ""
	}
	return "https://open.spotify.com/track/" + w.ID
}

// ReadBatch parses a batch descriptor: a JSON array of wanted tracks.
// Entries without artist or title are rejected up front so a malformed
// descriptor fails before any download starts.
func ReadBatch(path string) ([]Want, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wants []Want
	if err := json.Unmarshal(data, &wants); err != nil {
		return nil, fmt.Errorf("invalid batch descriptor %s: %w", path, err)
	}

	for i, w := range wants {
		if w.Artist == "" || w.Title == "" {
			return nil, fmt.Errorf("batch descriptor %s: entry %d is missing artist or title", path, i)
		}
	}
	return wants, nil
}
