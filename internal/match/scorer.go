package match

import (
	"strings"

	"github.com/franz/zmusic-organizer/internal/meta"
	"github.com/franz/zmusic-organizer/internal/sidecar"
	"github.com/franz/zmusic-organizer/internal/spotify"
)

// Match score weighting. The total of all weights is 100, so a perfect
// candidate scores exactly 100. The function is deterministic: identical
// inputs always produce identical scores, and ties are broken by catalog
// popularity.
const (
	weightTitle    = 35.0
	weightArtist   = 30.0
	weightAlbum    = 15.0
	weightDuration = 12.0
	weightYear     = 8.0

	// containmentCredit is the partial credit for one normalized string
	// containing the other without being equal
	containmentCredit = 0.7
)

// similarity compares two strings after normalization: 1.0 for equality,
// containmentCredit for substring containment either way, 0 otherwise.
func similarity(a, b string) float64 {
	na, nb := meta.Normalize(a), meta.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentCredit
	}
	return 0
}

// artistSimilarity takes the best similarity across the candidate's artists
func artistSimilarity(local string, artists []spotify.Artist) float64 {
	best := 0.0
	for _, a := range artists {
		if s := similarity(local, a.Name); s > best {
			best = s
		}
	}
	return best
}

// durationCredit grants full weight for a delta within 1.5 s and half
// weight within 3 s
func durationCredit(localSec float64, durationMS int) float64 {
	if localSec <= 0 || durationMS <= 0 {
		return 0
	}
	delta := localSec - float64(durationMS)/1000.0
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta <= 1.5:
		return 1.0
	case delta <= 3.0:
		return 0.5
	}
	return 0
}

// yearCredit grants full weight for an exact release-year match and half
// weight for a one-year difference
func yearCredit(localYear int, releaseDate string) float64 {
	if localYear == 0 || len(releaseDate) < 4 {
		return 0
	}
	relYear := 0
	for _, ch := range releaseDate[:4] {
		if ch < '0' || ch > '9' {
			return 0
		}
		relYear = relYear*10 + int(ch-'0')
	}
	diff := relYear - localYear
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.5
	}
	return 0
}

// Score rates a catalog candidate against local tags, in [0, 100]
func Score(tags sidecar.LocalTags, t *spotify.Track) float64 {
	score := weightTitle * similarity(tags.Title, t.Name)
	score += weightArtist * artistSimilarity(tags.Artist, t.Artists)
	score += weightAlbum * similarity(tags.Album, t.Album.Name)
	score += weightDuration * durationCredit(tags.DurationSec, t.DurationMS)
	score += weightYear * yearCredit(tags.Year, t.Album.ReleaseDate)
	return score
}

// Best selects the highest-scoring candidate. Ties go to the more popular
// track; a remaining tie keeps the earlier candidate, so selection is
// stable for a given response order.
func Best(tags sidecar.LocalTags, candidates []spotify.Track) (*spotify.Track, float64) {
	var best *spotify.Track
	bestScore := -1.0

	for i := range candidates {
		c := &candidates[i]
		s := Score(tags, c)
		if s > bestScore || (s == bestScore && best != nil && c.Popularity > best.Popularity) {
			best = c
			bestScore = s
		}
	}

	if best == nil {
		return nil, 0
	}
	return best, bestScore
}
