package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/soundweb-ingestor/internal/normalize"
	"github.com/yungbote/soundweb-ingestor/internal/pkg/httpx"
	"github.com/yungbote/soundweb-ingestor/internal/platform/envutil"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

const (
	defaultTokenURL  = "https://accounts.spotify.com/api/token"
	defaultAPIURL    = "https://api.spotify.com/v1"
	defaultMaxLookup = 1000
)

// Client resolves artists against the Spotify catalog. The catalog is the
// primary source: it supplies the canonical id, popularity and images.
type Client interface {
	FetchArtists(ctx context.Context, seeds []*types.SourceRecord) ([]*types.SourceRecord, error)
	FetchArtistByID(ctx context.Context, spotifyID string) (*types.SourceRecord, error)
	SearchArtistByName(ctx context.Context, name string) (*types.SourceRecord, error)
}

type client struct {
	log          *logger.Logger
	tokenURL     string
	apiURL       string
	clientID     string
	clientSecret string
	maxLookup    int
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("spotify: logger required")
	}
	clientID := strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_SECRET"))
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify: missing SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET")
	}

	clientLog := log.With("client", "Spotify")
	tokenURL := envutil.GetEnv("SPOTIFY_TOKEN_URL", defaultTokenURL, nil)
	apiURL := strings.TrimRight(envutil.GetEnv("SPOTIFY_API_URL", defaultAPIURL, nil), "/")
	maxLookup := envutil.GetEnvAsInt("SPOTIFY_MAX_ARTIST_LOOKUP", defaultMaxLookup, clientLog)

	return &client{
		log:          clientLog,
		tokenURL:     tokenURL,
		apiURL:       apiURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		maxLookup:    maxLookup,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type apiArtist struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Popularity   int      `json:"popularity"`
	Genres       []string `json:"genres"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

func (a *apiArtist) toRecord() *types.SourceRecord {
	pop := a.Popularity
	rec := &types.SourceRecord{
		Name:       a.Name,
		ExternalID: a.ID,
		URL:        a.ExternalURLs.Spotify,
		GenreTags:  a.Genres,
		Popularity: &pop,
	}
	if len(a.Images) > 0 {
		rec.ImageURL = a.Images[0].URL
	}
	return rec
}

// FetchArtists resolves each seed name against the catalog, deduplicating by
// the normalized catalog name and capping at the configured lookup limit.
// Per-seed failures are logged and skipped.
func (c *client) FetchArtists(ctx context.Context, seeds []*types.SourceRecord) ([]*types.SourceRecord, error) {
	seen := map[string]bool{}
	out := make([]*types.SourceRecord, 0, len(seeds))

	for i, seed := range seeds {
		if seed == nil || seed.Name == "" {
			continue
		}
		if len(out) >= c.maxLookup {
			c.log.Info("Reached artist lookup limit, stopping", "limit", c.maxLookup)
			break
		}

		record, err := c.SearchArtistByName(ctx, seed.Name)
		if err != nil {
			c.log.Warn("Failed to resolve artist against catalog", "name", seed.Name, "error", err)
			continue
		}
		key := normalize.Name(record.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, record)
		c.log.Debug("Resolved catalog artist", "index", i+1, "total", len(seeds), "name", record.Name)
	}
	return out, nil
}

// FetchArtistByID returns nil without error when the catalog has no such id.
func (c *client) FetchArtistByID(ctx context.Context, spotifyID string) (*types.SourceRecord, error) {
	var artist apiArtist
	status, err := c.getJSON(ctx, c.apiURL+"/artists/"+url.PathEscape(spotifyID), &artist)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return artist.toRecord(), nil
}

// SearchArtistByName prefers an exact case-insensitive name match among the
// top results, falling back to the most popular hit.
func (c *client) SearchArtistByName(ctx context.Context, name string) (*types.SourceRecord, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("type", "artist")
	q.Set("limit", "3")

	var parsed struct {
		Artists struct {
			Items []apiArtist `json:"items"`
		} `json:"artists"`
	}
	if _, err := c.getJSON(ctx, c.apiURL+"/search?"+q.Encode(), &parsed); err != nil {
		return nil, err
	}
	items := parsed.Artists.Items
	if len(items) == 0 {
		return nil, fmt.Errorf("spotify: no artists found for %q", name)
	}

	best := &items[0]
	exact := false
	for i := range items {
		if strings.EqualFold(items[i].Name, name) {
			best = &items[i]
			exact = true
			break
		}
	}
	if !exact {
		for i := range items {
			if items[i].Popularity > best.Popularity {
				best = &items[i]
			}
		}
	}
	return best.toRecord(), nil
}

func (c *client) getJSON(ctx context.Context, rawURL string, out any) (int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &httpx.StatusError{Status: resp.StatusCode, URL: rawURL, Body: truncate(string(body))}
	}
	return resp.StatusCode, json.Unmarshal(body, out)
}

// token returns a cached client-credentials token, refreshing shortly before
// expiry.
func (c *client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-30*time.Second)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("spotify: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &httpx.StatusError{Status: resp.StatusCode, URL: c.tokenURL, Body: truncate(string(body))}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("spotify: parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("spotify: empty access token")
	}

	c.accessToken = parsed.AccessToken
	expires := parsed.ExpiresIn
	if expires <= 0 {
		expires = 3600
	}
	c.tokenExpiry = time.Now().Add(time.Duration(expires) * time.Second)
	c.log.Debug("Refreshed access token", "expires_in", strconv.Itoa(expires)+"s")
	return c.accessToken, nil
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
