// Package match implements the MATCH stage: read local tags, find the best
// catalog candidate, and record the chosen match as a hidden sidecar.
package match

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franz/zmusic-organizer/internal/meta"
	"github.com/franz/zmusic-organizer/internal/report"
	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/spotify"
	"github.com/franz/zmusic-organizer/internal/util"
)

// DefaultThreshold is the minimum acceptable match score
const DefaultThreshold = 60.0

// DefaultSearchLimit is the candidate count requested per search
const DefaultSearchLimit = 5

// Catalog is the slice of the Spotify client the matcher needs
type Catalog interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]spotify.Track, error)
	GetTrack(ctx context.Context, id string) (*spotify.Track, error)
}

// Matcher drives the MATCH stage for one track at a time
type Matcher struct {
	catalog     Catalog
	cache       *spotify.Cache
	threshold   float64
	searchLimit int
	logger      *report.EventLogger
}

// Config holds matcher configuration
type Config struct {
	Catalog     Catalog
	Cache       *spotify.Cache // optional
	Threshold   float64
	SearchLimit int
	Logger      *report.EventLogger
}

// New creates a Matcher
func New(cfg *Config) *Matcher {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &Matcher{
		catalog:     cfg.Catalog,
		cache:       cfg.Cache,
		threshold:   threshold,
		searchLimit: limit,
		logger:      cfg.Logger,
	}
}

// Outcome reports what the MATCH stage did for a track
type Outcome struct {
	Matched   bool
	Score     float64
	FromCache bool
}

// Run matches one audio file. A best candidate below the threshold is not
// an error: it is logged as a match failure and no sidecar is written, so
// the rest of the pipeline can still analyze the file.
func (m *Matcher) Run(ctx context.Context, audioPath string, dryRun bool) (*Outcome, error) {
	tags, err := meta.ReadLocalTags(audioPath)
	if err != nil {
		return nil, util.NewStageError(util.KindMatchTags, err)
	}

	key := spotify.Key(tags.Artist, tags.Title, tags.Album, tags.DurationSec)
	if m.cache != nil {
		hit, err := m.cache.Get(key)
		if err != nil {
			util.WarnLog("Spotify cache read failed: %v", err)
		} else if hit != nil {
			util.DebugLog("Match cache hit: %s — %s (%.1f)", tags.Artist, tags.Title, hit.MatchScore)
			if dryRun {
				return &Outcome{Matched: true, Score: hit.MatchScore, FromCache: true}, nil
			}
			if err := m.writeSidecar(audioPath, tags, &hit.Track, hit.MatchScore, "cache"); err != nil {
				return nil, err
			}
			return &Outcome{Matched: true, Score: hit.MatchScore, FromCache: true}, nil
		}
	}

	query := buildQuery(tags)
	candidates, err := m.catalog.SearchTracks(ctx, query, m.searchLimit)
	if err != nil {
		return nil, classifyNetworkErr(err)
	}

	if len(candidates) == 0 && tags.Artist != "" {
		// Fielded query found nothing; retry as free text
		query = strings.TrimSpace(tags.Artist + " " + tags.Title)
		candidates, err = m.catalog.SearchTracks(ctx, query, m.searchLimit)
		if err != nil {
			return nil, classifyNetworkErr(err)
		}
	}

	best, score := Best(tags, candidates)
	if best == nil || score < m.threshold {
		m.logLowScore(audioPath, tags, score)
		return &Outcome{Matched: false, Score: score}, nil
	}

	// Fetch the full track object for the winner; the search item can
	// miss external ids
	full, err := m.catalog.GetTrack(ctx, best.ID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			// Search result vanished from the catalog; keep the item we have
			full = best
		} else {
			return nil, classifyNetworkErr(err)
		}
	}

	util.InfoLog("Match (%.1f): %s — %s  ->  %s — %s (%s)",
		score, tags.Artist, tags.Title,
		strings.Join(full.ArtistNames(), ", "), full.Name, full.Album.ReleaseDate)

	if dryRun {
		return &Outcome{Matched: true, Score: score}, nil
	}

	if err := m.writeSidecar(audioPath, tags, full, score, query); err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Put(key, tags.Artist, tags.Title, tags.Album, tags.DurationSec,
			&spotify.CachedMatch{Track: *full, MatchScore: score}); err != nil {
			util.WarnLog("Failed to cache match result: %v", err)
		}
	}

	return &Outcome{Matched: true, Score: score}, nil
}

// buildQuery composes a fielded search query from the available tags,
// omitting missing components
func buildQuery(tags sidecar.LocalTags) string {
	var parts []string
	if tags.Title != "" {
		parts = append(parts, fmt.Sprintf("track:%q", tags.Title))
	}
	if tags.Artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", tags.Artist))
	}
	if tags.Album != "" {
		parts = append(parts, fmt.Sprintf("album:%q", tags.Album))
	}
	return strings.Join(parts, " ")
}

func classifyNetworkErr(err error) error {
	if errors.Is(err, util.ErrAuthFatal) {
		return util.NewStageError(util.KindAuthFatal, err)
	}
	if errors.Is(err, util.ErrRateLimitExhausted) {
		return util.NewStageError(util.KindRateLimitExhausted, err)
	}
	return util.NewStageError(util.KindMatchNetwork, err)
}

func (m *Matcher) logLowScore(audioPath string, tags sidecar.LocalTags, score float64) {
	util.WarnLog("No acceptable match for %s — %s (best %.1f < %.1f)",
		tags.Artist, tags.Title, score, m.threshold)
	if m.logger != nil {
		m.logger.Log(&report.Event{
			Level:      report.LevelWarning,
			Stage:      report.StageMatch,
			Path:       audioPath,
			Action:     "match-failure",
			Reason:     string(util.KindMatchLowScore),
			MatchScore: score,
		})
	}
}

func (m *Matcher) writeSidecar(audioPath string, tags sidecar.LocalTags, track *spotify.Track, score float64, query string) error {
	fileInfo, err := sidecar.NewFileInfo(audioPath)
	if err != nil {
		return util.NewStageError(util.KindMatchIO, err)
	}

	sc := &sidecar.Spotify{
		Schema:     sidecar.Schema{Type: "spotify_segment", Version: 1},
		HashSHA256: fileInfo.HashSHA256,
		File:       fileInfo,
		LocalTags:  tags,
		Spotify: sidecar.SpotifyTrack{
			ID:      track.ID,
			URL:     track.URL(),
			Name:    track.Name,
			Artists: track.ArtistNames(),
			Album: sidecar.SpotifyAlbum{
				ID:          track.Album.ID,
				Name:        track.Album.Name,
				URL:         track.Album.ExternalURLs["spotify"],
				ReleaseDate: track.Album.ReleaseDate,
			},
			DurationMS:  track.DurationMS,
			DiscNumber:  track.DiscNumber,
			TrackNumber: track.TrackNumber,
			Explicit:    track.Explicit,
			Popularity:  track.Popularity,
			ISRC:        track.ISRC(),
		},
		Match: sidecar.MatchInfo{
			Status:       "matched",
			ScorePercent: score,
			SearchQuery:  query,
		},
	}

	if err := sidecar.WriteJSON(sidecar.SpotifyPath(audioPath), sc); err != nil {
		return util.NewStageError(util.KindMatchIO, err)
	}

	if m.logger != nil {
		m.logger.Log(&report.Event{
			Level:      report.LevelInfo,
			Stage:      report.StageMatch,
			Hash:       fileInfo.HashSHA256,
			Path:       audioPath,
			Action:     "matched",
			MatchScore: score,
		})
	}

	return nil
}
