// Package meta reads local track metadata: embedded tags via the tag
// library, duration via ffprobe, and filename heuristics as a fallback for
// untagged files.
package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/util"
)

var (
	reTrackTitle      = regexp.MustCompile(`^(\d{1,2})\s*-\s*(.+)$`)
	reYearArtistTitle = regexp.MustCompile(`^(\d{4})\s*-\s*(.+?)\s*-\s*(.+)$`)
	reArtistTitle     = regexp.MustCompile(`^(.+?)\s*-\s*(.+)$`)
)

// ReadLocalTags extracts the tag set needed for catalog matching. Embedded
// tags win; missing fields are filled from filename patterns and the parent
// directory. Duration comes from ffprobe when available.
func ReadLocalTags(audioPath string) (sidecar.LocalTags, error) {
	tags, tagErr := readEmbeddedTags(audioPath)
	fb := parseFilenameFallback(audioPath)

	if tagErr != nil {
		util.DebugLog("Tag read failed for %s, using filename fallback: %v", audioPath, tagErr)
		tags = fb
	} else {
		if tags.Artist == "" {
			tags.Artist = fb.Artist
		}
		if tags.Album == "" {
			tags.Album = fb.Album
		}
		if tags.Title == "" || tags.Title == sidecar.Stem(audioPath) {
			if fb.Title != "" {
				tags.Title = fb.Title
			}
		}
		if tags.Year == 0 {
			tags.Year = fb.Year
		}
		if tags.TrackNo == 0 {
			tags.TrackNo = fb.TrackNo
		}
	}

	if tags.DurationSec == 0 {
		if dur, err := ProbeDuration(audioPath); err == nil {
			tags.DurationSec = dur
		} else {
			util.DebugLog("ffprobe duration unavailable for %s: %v", audioPath, err)
		}
	}

	if tags.Title == "" {
		return tags, fmt.Errorf("no title could be determined for %s", audioPath)
	}

	return tags, nil
}

func readEmbeddedTags(audioPath string) (sidecar.LocalTags, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return sidecar.LocalTags{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return sidecar.LocalTags{}, fmt.Errorf("failed to read tags: %w", err)
	}

	trackNo, _ := m.Track()

	return sidecar.LocalTags{
		Artist:  strings.TrimSpace(m.Artist()),
		Album:   strings.TrimSpace(m.Album()),
		Title:   strings.TrimSpace(m.Title()),
		Year:    m.Year(),
		TrackNo: trackNo,
	}, nil
}

// parseFilenameFallback extracts tag hints from the filename and parent
// directory. Patterns covered:
//
//	"01 - My Song.flac"         -> track_no=1, title="My Song"
//	"1999 - Artist - Song.flac" -> year, artist, title
//	"Artist - Song.mp3"         -> artist, title
//
// The parent directory name stands in for a missing album.
func parseFilenameFallback(audioPath string) sidecar.LocalTags {
	stem := sidecar.Stem(audioPath)
	var out sidecar.LocalTags

	if m := reTrackTitle.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out.TrackNo = n
		}
		out.Title = strings.TrimSpace(m[2])
	}

	if out.Title == "" {
		if m := reYearArtistTitle.FindStringSubmatch(stem); m != nil {
			if y, err := strconv.Atoi(m[1]); err == nil {
				out.Year = y
			}
			out.Artist = strings.TrimSpace(m[2])
			out.Title = strings.TrimSpace(m[3])
		}
	}

	if out.Title == "" || out.Artist == "" {
		if m := reArtistTitle.FindStringSubmatch(stem); m != nil {
			if out.Artist == "" {
				out.Artist = strings.TrimSpace(m[1])
			}
			if out.Title == "" {
				out.Title = strings.TrimSpace(m[2])
			}
		}
	}

	if out.Title == "" {
		out.Title = stem
	}
	if out.Album == "" {
		out.Album = filepath.Base(filepath.Dir(audioPath))
	}

	return out
}
