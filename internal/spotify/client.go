// Package spotify is the catalog-service client. All catalog access in a
// run is routed through a single Client so the per-call spacing policy is
// globally observable.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/franz/zmusic-organizer/internal/report"
	"github.com/franz/zmusic-organizer/internal/util"
)

const (
	// DefaultBaseURL is the Web API base URL
	DefaultBaseURL = "https://api.spotify.com/v1"

	// DefaultTokenURL is the OAuth token endpoint
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultMinInterval is the minimum spacing between outbound calls
	DefaultMinInterval = 1 * time.Second

	// DefaultMax429 is the number of consecutive 429 responses tolerated
	// on one logical operation before giving up
	DefaultMax429 = 5

	// default429Wait applies when a 429 carries no Retry-After header
	default429Wait = 60 * time.Second

	// backoffBase is the initial wait for 5xx/network retries
	backoffBase = 5 * time.Second

	// maxAttempts bounds 5xx/network retries per logical operation
	maxAttempts = 5
)

// Config holds client configuration
type Config struct {
	CredentialsPath string
	TokenCachePath  string
	MinInterval     time.Duration // 1-5 s outbound spacing
	Max429          int
	BaseURL         string
	TokenURL        string
	HTTPClient      *http.Client
	RateLog         *report.RateLimitLogger
	// sleep is replaceable in tests; defaults to a context-aware sleep
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client is the rate-limited catalog client
type Client struct {
	http    *http.Client
	auth    *authenticator
	limiter *rate.Limiter
	baseURL string
	max429  int
	rateLog *report.RateLimitLogger
	sleep   func(ctx context.Context, d time.Duration) error
	calls   int64
}

// NewClient creates the shared catalog client from the persistent
// credential store
func NewClient(cfg *Config) (*Client, error) {
	creds, err := LoadCredentials(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}
	return newClientWithCredentials(cfg, creds), nil
}

func newClientWithCredentials(cfg *Config, creds *Credentials) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	max429 := cfg.Max429
	if max429 <= 0 {
		max429 = DefaultMax429
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	return &Client{
		http:    httpClient,
		auth:    newAuthenticator(creds, cfg.TokenCachePath, tokenURL, httpClient),
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		baseURL: baseURL,
		max429:  max429,
		rateLog: cfg.RateLog,
		sleep:   sleep,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Calls returns the number of outbound API calls issued so far
func (c *Client) Calls() int64 {
	return c.calls
}

// get performs one logical GET operation under the full client policy:
// per-call spacing, token refresh, single 401 retry, Retry-After on 429,
// exponential backoff on 5xx and network failures, typed not-found on 404.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	refreshed := false
	consecutive429 := 0
	attempts := 0
	wait := backoffBase

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		token, err := c.auth.accessToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		c.calls++
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempts++
			if attempts >= maxAttempts {
				return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
			}
			util.DebugLog("Spotify %s: network error (attempt %d/%d), backing off %v: %v",
				op, attempts, maxAttempts, wait, err)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			wait *= 2
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to decode %s response: %w", op, err)
			}
			return nil

		case resp.StatusCode == http.StatusUnauthorized:
			drain(resp)
			if refreshed {
				return fmt.Errorf("%s: %w", op, util.ErrAuthFatal)
			}
			refreshed = true
			if _, err := c.auth.forceRefresh(ctx); err != nil {
				return err
			}
			continue

		case resp.StatusCode == http.StatusNotFound:
			drain(resp)
			return fmt.Errorf("%s: %w", op, util.ErrNotFound)

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp)
			drain(resp)
			consecutive429++
			c.rateLog.Log(op, int(retryAfter.Seconds()))
			util.WarnLog("Spotify %s: 429, Retry-After=%s (%d/%d consecutive)",
				op, retryAfter, consecutive429, c.max429)
			if consecutive429 >= c.max429 {
				return fmt.Errorf("%s: %w (%d consecutive 429s)", op, util.ErrRateLimitExhausted, consecutive429)
			}
			if err := c.sleep(ctx, retryAfter); err != nil {
				return err
			}
			continue

		case resp.StatusCode >= 500:
			drain(resp)
			attempts++
			if attempts >= maxAttempts {
				return fmt.Errorf("%s failed after %d attempts: server returned %d", op, attempts, resp.StatusCode)
			}
			util.DebugLog("Spotify %s: %d (attempt %d/%d), backing off %v",
				op, resp.StatusCode, attempts, maxAttempts, wait)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			wait *= 2
			continue

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, string(body))
		}
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return default429Wait
}

// SearchTracks searches the catalog for tracks matching query
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 5
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", strconv.Itoa(limit))

	var result SearchResult
	if err := c.get(ctx, "search", "/search", q, &result); err != nil {
		return nil, err
	}
	return result.Tracks.Items, nil
}

// GetTrack fetches the full track object for id
func (c *Client) GetTrack(ctx context.Context, id string) (*Track, error) {
	if id == "" {
		return nil, fmt.Errorf("track id cannot be empty")
	}

	var track Track
	if err := c.get(ctx, "track", "/tracks/"+url.PathEscape(id), nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// SearchArtist returns the best artist match for a free-text name
func (c *Client) SearchArtist(ctx context.Context, name string) (*Artist, error) {
	if name == "" {
		return nil, fmt.Errorf("artist name cannot be empty")
	}

	q := url.Values{}
	q.Set("q", name)
	q.Set("type", "artist")
	q.Set("limit", "5")

	var result ArtistSearchResult
	if err := c.get(ctx, "search-artist", "/search", q, &result); err != nil {
		return nil, err
	}
	if len(result.Artists.Items) == 0 {
		return nil, fmt.Errorf("artist %q: %w", name, util.ErrNotFound)
	}
	return &result.Artists.Items[0], nil
}

// GetArtistAlbums lists an artist's releases, optionally including singles.
// One page of 50 covers the discography of virtually every catalog artist.
func (c *Client) GetArtistAlbums(ctx context.Context, artistID string, includeSingles bool) ([]Album, error) {
	if artistID == "" {
		return nil, fmt.Errorf("artist id cannot be empty")
	}

	groups := "album"
	if includeSingles {
		groups = "album,single"
	}
	q := url.Values{}
	q.Set("include_groups", groups)
	q.Set("limit", "50")

	var page AlbumPage
	if err := c.get(ctx, "artist-albums", "/artists/"+url.PathEscape(artistID)+"/albums", q, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetAlbum fetches a full album object including its track listing
func (c *Client) GetAlbum(ctx context.Context, id string) (*FullAlbum, error) {
	if id == "" {
		return nil, fmt.Errorf("album id cannot be empty")
	}

	var album FullAlbum
	if err := c.get(ctx, "album", "/albums/"+url.PathEscape(id), nil, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// GetRecommendations fetches recommended tracks for seed artist/track ids.
// targets map to target_* tuning parameters (e.g. "energy" -> "0.8").
func (c *Client) GetRecommendations(ctx context.Context, seedArtists, seedTracks []string, limit int, targets map[string]string) ([]Track, error) {
	if len(seedArtists) == 0 && len(seedTracks) == 0 {
		return nil, fmt.Errorf("at least one seed is required")
	}
	if limit <= 0 {
		limit = 20
	}

	q := url.Values{}
	if len(seedArtists) > 0 {
		q.Set("seed_artists", strings.Join(seedArtists, ","))
	}
	if len(seedTracks) > 0 {
		q.Set("seed_tracks", strings.Join(seedTracks, ","))
	}
	q.Set("limit", strconv.Itoa(limit))
	for k, v := range targets {
		q.Set("target_"+k, v)
	}

	var recs Recommendations
	if err := c.get(ctx, "recommendations", "/recommendations", q, &recs); err != nil {
		return nil, err
	}
	return recs.Tracks, nil
}

// Me fetches the current user profile (user-scope call, used by auth info)
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "me", "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
