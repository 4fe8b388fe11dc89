// Package load implements the LOAD stage: flatten a final sidecar into one
// row of the tracks table.
package load

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/zmusic-organizer/internal/report"
	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/store"
	"github.com/franz/zmusic-organizer/internal/util"
)

// Loader drives the LOAD stage for one track at a time
type Loader struct {
	store  *store.Store
	logger *report.EventLogger
}

// New creates a Loader and verifies the destination schema once up front.
// A missing column is a misconfiguration and fails immediately; nothing is
// written.
func New(st *store.Store, logger *report.EventLogger) (*Loader, error) {
	if err := st.VerifySchema(); err != nil {
		return nil, util.NewStageError(util.KindLoadSchema, err)
	}
	return &Loader{store: st, logger: logger}, nil
}

// Run loads the final sidecar of one audio file into the database. The
// upsert is keyed by content hash, so re-running over an unchanged file is
// a no-op row rewrite; want_file is never touched.
func (l *Loader) Run(ctx context.Context, audioPath string, dryRun bool) error {
	finalPath := sidecar.FinalPath(audioPath)
	final, err := sidecar.ReadFinal(finalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return util.NewStageError(util.KindLoadMissingInput,
				fmt.Errorf("no final sidecar for %s", audioPath))
		}
		return util.NewStageError(util.KindLoadMissingInput, err)
	}

	row, err := FlattenFinal(final)
	if err != nil {
		return util.NewStageError(util.KindLoadSchema, err)
	}

	if dryRun {
		util.InfoLog("Would load %s — %s (%s)", row.Artist, row.Title, row.FileHash[:12])
		return nil
	}

	err = util.Retry(ctx, util.DBBusyRetryConfig(), store.IsBusyError, func() error {
		return l.store.UpsertTrack(row)
	}, "upsert track")
	if err != nil {
		if store.IsBusyError(err) {
			return util.NewStageError(util.KindLoadLocked, err)
		}
		return util.NewStageError(util.KindLoadSchema, err)
	}

	util.DebugLog("Loaded %s — %s (%s)", row.Artist, row.Title, row.FileHash[:12])

	if l.logger != nil {
		l.logger.Log(&report.Event{
			Level:  report.LevelInfo,
			Stage:  report.StageLoad,
			Hash:   row.FileHash,
			Path:   audioPath,
			Action: "loaded",
		})
	}

	return nil
}

// FlattenFinal projects a final sidecar onto a tracks-table row
func FlattenFinal(final *sidecar.Final) (*store.TrackRow, error) {
	if final.HashSHA256 == "" {
		return nil, fmt.Errorf("final sidecar has no content hash")
	}

	embedding := ""
	if len(final.Audio.Embedding) > 0 {
		data, err := json.Marshal(final.Audio.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding: %w", err)
		}
		embedding = string(data)
	}

	artist := strings.Join(final.Spotify.Artists, ", ")
	if artist == "" {
		artist = final.LocalTags.Artist
	}
	title := final.Spotify.Name
	if title == "" {
		title = final.LocalTags.Title
	}
	album := final.Spotify.Album.Name
	if album == "" {
		album = final.LocalTags.Album
	}

	albumArtist := ""
	if len(final.Spotify.Artists) > 0 {
		albumArtist = final.Spotify.Artists[0]
	}

	year := final.LocalTags.Year
	if y := releaseYear(final.Spotify.Album.ReleaseDate); y != 0 {
		year = y
	}

	trackNo := final.Spotify.TrackNumber
	if trackNo == 0 {
		trackNo = final.LocalTags.TrackNo
	}

	return &store.TrackRow{
		FileHash:  final.HashSHA256,
		FilePath:  final.File.Path,
		FileSize:  final.File.SizeBytes,
		FileMTime: final.File.MTime,
		Extension: strings.TrimPrefix(filepath.Ext(final.File.Path), "."),

		Title:       title,
		Artist:      artist,
		Album:       album,
		AlbumArtist: albumArtist,
		TrackNumber: trackNo,
		DiscNumber:  final.Spotify.DiscNumber,
		Year:        year,
		DurationSec: final.Audio.Features.Duration,

		SpotifyID:      final.Spotify.ID,
		SpotifyURL:     final.Spotify.URL,
		SpotifyAlbumID: final.Spotify.Album.ID,
		SpotifyAlbum:   final.Spotify.Album.Name,
		ReleaseDate:    final.Spotify.Album.ReleaseDate,
		Popularity:     final.Spotify.Popularity,
		Explicit:       final.Spotify.Explicit,
		ISRC:           final.Spotify.ISRC,
		MatchScore:     final.Match.ScorePercent,

		Tempo:           final.Audio.Features.Tempo,
		Key:             final.Audio.Features.Key,
		Energy:          final.Audio.Features.Energy,
		BeatDensity:     final.Audio.Features.BeatDensity,
		SampleRate:      final.Audio.Features.SampleRate,
		Genre:           final.Audio.Genre.Primary,
		GenreAlt:        final.Audio.Genre.Alt1,
		GenreConfidence: final.Audio.Genre.Confidence,
		Mood:            final.Audio.Mood.Tag,
		Valence:         final.Audio.Mood.Valence,
		Arousal:         final.Audio.Mood.Arousal,
		LeadInstrument:  final.Audio.Instruments.LeadInstrument,
		BassType:        final.Audio.Instruments.BassType,
		DrumsPattern:    final.Audio.Instruments.DrumsPattern,
		Embedding:       embedding,
	}, nil
}

func releaseYear(releaseDate string) int {
	if len(releaseDate) < 4 {
		return 0
	}
	year := 0
	for _, ch := range releaseDate[:4] {
		if ch < '0' || ch > '9' {
			return 0
		}
		year = year*10 + int(ch-'0')
	}
	return year
}
