package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/franz/zmusic-organizer/internal/util"
)

// tokenSafetyMargin is subtracted from the cached expiry so a token is
// refreshed before it actually lapses mid-request
const tokenSafetyMargin = 60 * time.Second

// Credentials is the persistent credential store: a single JSON file
// holding the application secrets and the long-lived refresh token.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	RefreshToken string `json:"refresh_token"`
}

// LoadCredentials reads the credential store
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials %s: %w", path, err)
	}

	var cred Credentials
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("invalid credentials file %s: %w", path, err)
	}

	if cred.ClientID == "" || cred.ClientSecret == "" || cred.RefreshToken == "" {
		return nil, fmt.Errorf("%w: credentials are incomplete (client_id/client_secret/refresh_token)", util.ErrInvalidConfig)
	}

	return &cred, nil
}

// Token is the persistent token cache: the current access token and its
// expiry timestamp
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Valid reports whether the token is usable with the safety margin applied
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(tokenSafetyMargin).Unix() < t.ExpiresAt
}

// Remaining returns the time until expiry (may be negative)
func (t *Token) Remaining(now time.Time) time.Duration {
	if t == nil {
		return 0
	}
	return time.Unix(t.ExpiresAt, 0).Sub(now)
}

// LoadToken reads the token cache; a missing file is not an error and
// returns nil
func LoadToken(path string) (*Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache %s: %w", path, err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token cache %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes the token cache atomically (single writer by design)
func SaveToken(path string, tok *Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return util.AtomicWriteFile(path, append(data, '\n'), 0600)
}

// authenticator serializes token refreshes for the single shared client
type authenticator struct {
	mu        sync.Mutex
	creds     *Credentials
	tokenPath string
	tokenURL  string
	http      *http.Client
	cached    *Token
}

func newAuthenticator(creds *Credentials, tokenPath, tokenURL string, httpClient *http.Client) *authenticator {
	return &authenticator{
		creds:     creds,
		tokenPath: tokenPath,
		tokenURL:  tokenURL,
		http:      httpClient,
	}
}

// accessToken returns a valid access token, refreshing when the cached one
// is missing or within the safety margin of expiry
func (a *authenticator) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if a.cached.Valid(now) {
		return a.cached.AccessToken, nil
	}

	if a.cached == nil {
		tok, err := LoadToken(a.tokenPath)
		if err != nil {
			util.WarnLog("Token cache unreadable, refreshing: %v", err)
		}
		if tok.Valid(now) {
			a.cached = tok
			return tok.AccessToken, nil
		}
	}

	return a.refreshLocked(ctx)
}

// forceRefresh discards the cached token and performs a refresh flow.
// Called on HTTP 401; the caller retries exactly once.
func (a *authenticator) forceRefresh(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cached = nil
	return a.refreshLocked(ctx)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (a *authenticator) refreshLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", a.creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(a.creds.ClientID, a.creds.ClientSecret)

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", util.ErrAuthFatal, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: token endpoint returned no access token", util.ErrAuthFatal)
	}

	tok := &Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second).Unix(),
		RefreshToken: a.creds.RefreshToken,
	}
	if tr.RefreshToken != "" {
		tok.RefreshToken = tr.RefreshToken
		a.creds.RefreshToken = tr.RefreshToken
	}

	a.cached = tok
	if err := SaveToken(a.tokenPath, tok); err != nil {
		// The refreshed token still works for this run
		util.WarnLog("Failed to persist token cache: %v", err)
	}

	util.DebugLog("Spotify token refreshed, valid for %ds", tr.ExpiresIn)
	return tok.AccessToken, nil
}
