package download

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/zmusic-organizer/internal/spotify"
	"github.com/franz/zmusic-organizer/internal/util"
)

// SeedCatalog is the slice of the Spotify client the batch generator needs
type SeedCatalog interface {
	SearchArtist(ctx context.Context, name string) (*spotify.Artist, error)
	GetArtistAlbums(ctx context.Context, artistID string, includeSingles bool) ([]spotify.Album, error)
	GetAlbum(ctx context.Context, id string) (*spotify.FullAlbum, error)
	GetTrack(ctx context.Context, id string) (*spotify.Track, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]spotify.Track, error)
	GetRecommendations(ctx context.Context, seedArtists, seedTracks []string, limit int, targets map[string]string) ([]spotify.Track, error)
}

// Generator discovers candidate tracks in the catalog and writes them as
// batch descriptors for the queue. It never downloads anything itself.
type Generator struct {
	catalog  SeedCatalog
	batchDir string
}

// NewGenerator creates a Generator writing into batchDir
func NewGenerator(catalog SeedCatalog, batchDir string) *Generator {
	return &Generator{catalog: catalog, batchDir: batchDir}
}

// ResolveArtist returns the artist id, searching the catalog by name when
// no id is given
func (g *Generator) ResolveArtist(ctx context.Context, name, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if name == "" {
		return "", fmt.Errorf("an artist name or id is required")
	}
	artist, err := g.catalog.SearchArtist(ctx, name)
	if err != nil {
		return "", err
	}
	util.InfoLog("Artist match: %s (%s)", artist.Name, artist.ID)
	return artist.ID, nil
}

// Collection returns the wants for every album of an artist
func (g *Generator) Collection(ctx context.Context, artistID string, includeSingles bool) ([]Want, error) {
	albums, err := g.catalog.GetArtistAlbums(ctx, artistID, includeSingles)
	if err != nil {
		return nil, err
	}

	var wants []Want
	for _, album := range albums {
		if album.ID == "" {
			continue
		}
		full, err := g.catalog.GetAlbum(ctx, album.ID)
		if err != nil {
			return nil, err
		}
		wants = append(wants, albumWants(full)...)
	}
	return wants, nil
}

// AlbumByName returns the wants for one album of an artist, picked by name.
// An exact title match wins; several matches (deluxe, remaster) resolve to
// the newest release, and a partial match is the fallback.
func (g *Generator) AlbumByName(ctx context.Context, artistID, name string) ([]Want, error) {
	albums, err := g.catalog.GetArtistAlbums(ctx, artistID, true)
	if err != nil {
		return nil, err
	}

	chosen, err := chooseAlbum(albums, name)
	if err != nil {
		return nil, err
	}
	full, err := g.catalog.GetAlbum(ctx, chosen.ID)
	if err != nil {
		return nil, err
	}
	return albumWants(full), nil
}

// Album returns the wants for an album given directly by id
func (g *Generator) Album(ctx context.Context, albumID string) ([]Want, error) {
	full, err := g.catalog.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	return albumWants(full), nil
}

// Track returns the want for a single track, by id or by artist+title search
func (g *Generator) Track(ctx context.Context, trackID, artist, title string) ([]Want, error) {
	var track *spotify.Track
	if trackID != "" {
		t, err := g.catalog.GetTrack(ctx, trackID)
		if err != nil {
			return nil, err
		}
		track = t
	} else {
		if artist == "" || title == "" {
			return nil, fmt.Errorf("a track id or an artist and title are required")
		}
		query := fmt.Sprintf("track:%q artist:%q", title, artist)
		items, err := g.catalog.SearchTracks(ctx, query, 5)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("track %q by %q: %w", title, artist, util.ErrNotFound)
		}
		track = &items[0]
	}

	if track.ID == "" || track.Name == "" {
		return nil, fmt.Errorf("catalog track is missing an id or name")
	}
	return []Want{trackWant(track)}, nil
}

// Similar returns recommendation wants for the given seed artist/track ids,
// deduplicated by track id
func (g *Generator) Similar(ctx context.Context, seedArtists, seedTracks []string, limit int) ([]Want, error) {
	tracks, err := g.catalog.GetRecommendations(ctx, seedArtists, seedTracks, limit, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	wants := make([]Want, 0, len(tracks))
	for i := range tracks {
		t := &tracks[i]
		if t.ID == "" || t.Name == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		wants = append(wants, trackWant(t))
	}
	return wants, nil
}

// WriteBatch writes the wants as one timestamped descriptor into the batch
// directory and returns its path. An empty want list is rejected; an empty
// descriptor would drain as an instant no-op and hide a failed discovery.
func (g *Generator) WriteBatch(wants []Want, label string) (string, error) {
	if len(wants) == 0 {
		return "", fmt.Errorf("no tracks to write")
	}
	if err := os.MkdirAll(g.batchDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create batch dir: %w", err)
	}

	data, err := json.MarshalIndent(wants, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(g.batchDir,
		fmt.Sprintf("%s_%s.json", label, time.Now().Format("20060102_150405")))
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write batch %s: %w", path, err)
	}
	return path, nil
}

func albumWants(album *spotify.FullAlbum) []Want {
	artist := album.ArtistName()
	year := releaseYear(album.ReleaseDate)

	wants := make([]Want, 0, len(album.Tracks.Items))
	for i := range album.Tracks.Items {
		t := &album.Tracks.Items[i]
		if t.ID == "" || t.Name == "" {
			continue
		}
		wants = append(wants, Want{
			ID:     t.ID,
			Artist: artist,
			Album:  album.Name,
			Year:   year,
			Title:  t.Name,
		})
	}
	return wants
}

func trackWant(t *spotify.Track) Want {
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return Want{
		ID:     t.ID,
		Artist: artist,
		Album:  t.Album.Name,
		Year:   releaseYear(t.Album.ReleaseDate),
		Title:  t.Name,
	}
}

func chooseAlbum(albums []spotify.Album, name string) (*spotify.Album, error) {
	norm := strings.ToLower(strings.TrimSpace(name))

	var candidates []*spotify.Album
	for i := range albums {
		if strings.ToLower(strings.TrimSpace(albums[i].Name)) == norm {
			candidates = append(candidates, &albums[i])
		}
	}
	if len(candidates) == 0 {
		for i := range albums {
			if strings.Contains(strings.ToLower(albums[i].Name), norm) {
				candidates = append(candidates, &albums[i])
			}
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("album %q: %w", name, util.ErrNotFound)
	}

	chosen := candidates[0]
	for _, c := range candidates[1:] {
		if releaseYear(c.ReleaseDate) > releaseYear(chosen.ReleaseDate) {
			chosen = c
		}
	}
	return chosen, nil
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
