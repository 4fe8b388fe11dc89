package spotify

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/franz/zmusic-organizer/internal/meta"
	"github.com/franz/zmusic-organizer/internal/util"
)

// memCacheSize bounds the in-memory layer; the sqlite table is the durable
// layer and has no size bound
const memCacheSize = 4096

// CachedMatch is a cached best-match search result
type CachedMatch struct {
	Track      Track
	MatchScore float64
}

// Cache is the persistent request cache for catalog searches, keyed by the
// local tag tuple (artist, title, album, duration_s). It is consulted
// before any network search so re-runs over an unchanged collection skip
// the network entirely.
type Cache struct {
	db  *sql.DB
	mem *lru.Cache[string, *CachedMatch]
}

// NewCache creates a cache over the store's database connection
func NewCache(db *sql.DB) (*Cache, error) {
	mem, err := lru.New[string, *CachedMatch](memCacheSize)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, mem: mem}, nil
}

// Key builds the deterministic cache key for a local tag tuple. Fields are
// normalized the same way match scoring normalizes them; duration is
// truncated to whole seconds.
func Key(artist, title, album string, durationSec float64) string {
	parts := []string{
		meta.Normalize(artist),
		meta.Normalize(title),
		meta.Normalize(album),
		strconv.Itoa(int(durationSec)),
	}
	return strings.Join(parts, "\x1f")
}

// Get returns the cached best match for a key, or nil on miss
func (c *Cache) Get(key string) (*CachedMatch, error) {
	if hit, ok := c.mem.Get(key); ok {
		return hit, nil
	}

	var payload string
	var score float64
	err := c.db.QueryRow(
		"SELECT payload, match_score FROM spotify_cache WHERE cache_key = ?", key,
	).Scan(&payload, &score)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query spotify cache: %w", err)
	}

	var track Track
	if err := json.Unmarshal([]byte(payload), &track); err != nil {
		return nil, fmt.Errorf("corrupt spotify cache entry %q: %w", key, err)
	}

	hit := &CachedMatch{Track: track, MatchScore: score}
	c.mem.Add(key, hit)
	c.bumpHitCount(key)
	return hit, nil
}

// Put stores the winning match for a key
func (c *Cache) Put(key, artist, title, album string, durationSec float64, match *CachedMatch) error {
	payload, err := json.Marshal(&match.Track)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT INTO spotify_cache (cache_key, artist, title, album, duration_s, payload, match_score, hit_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(cache_key) DO UPDATE SET
		  payload = excluded.payload,
		  match_score = excluded.match_score,
		  cached_at = CURRENT_TIMESTAMP
	`, key, artist, title, album, int(durationSec), string(payload), match.MatchScore)
	if err != nil {
		return fmt.Errorf("failed to store spotify cache entry: %w", err)
	}

	c.mem.Add(key, match)
	return nil
}

func (c *Cache) bumpHitCount(key string) {
	if _, err := c.db.Exec("UPDATE spotify_cache SET hit_count = hit_count + 1 WHERE cache_key = ?", key); err != nil {
		util.DebugLog("Failed to increment cache hit count: %v", err)
	}
}

// Stats returns the entry count and total hits of the persistent layer
func (c *Cache) Stats() (entries int, totalHits int64, err error) {
	err = c.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM spotify_cache").Scan(&entries, &totalHits)
	return
}
