package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/soundweb-ingestor/internal/normalize"
	"github.com/yungbote/soundweb-ingestor/internal/pkg/httpx"
	"github.com/yungbote/soundweb-ingestor/internal/platform/envutil"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2/artist/"
	userAgent      = "SoundWebIngestor/1.0"

	maxRetries    = 3
	retryDelay    = 5 * time.Second
	maxRetryAfter = 30 * time.Second
)

// Client fetches genre tags from the MusicBrainz registry. MusicBrainz is
// strict about rate limits, so requests retry a fixed number of times with a
// fixed delay instead of hammering on failure.
type Client interface {
	FetchGenreData(ctx context.Context, seeds []*types.SourceRecord) ([]*types.SourceRecord, error)
	FetchArtist(ctx context.Context, name string) (*types.SourceRecord, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	maxArtists int
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("musicbrainz: logger required")
	}
	clientLog := log.With("client", "MusicBrainz")
	baseURL := envutil.GetEnv("MUSICBRAINZ_BASE_URL", defaultBaseURL, nil)
	maxArtists := envutil.GetEnvAsInt("MUSICBRAINZ_MAX_ARTIST_COUNT", 1000, clientLog)

	return &client{
		log:        clientLog,
		baseURL:    baseURL,
		maxArtists: maxArtists,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type searchResponse struct {
	Artists []struct {
		ID   string `json:"id"`
		Tags []struct {
			Name string `json:"name"`
		} `json:"tags"`
	} `json:"artists"`
}

// FetchGenreData looks up each seed name in the registry and returns one
// record per resolved artist, carrying the registry's tag list. Unmatched
// names are skipped, not errors.
func (c *client) FetchGenreData(ctx context.Context, seeds []*types.SourceRecord) ([]*types.SourceRecord, error) {
	seen := map[string]bool{}
	out := make([]*types.SourceRecord, 0, len(seeds))

	for i, seed := range seeds {
		if seed == nil || seed.Name == "" {
			continue
		}
		if len(out) >= c.maxArtists {
			c.log.Info("Reached artist limit, stopping", "limit", c.maxArtists)
			break
		}
		key := normalize.Name(seed.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		record, err := c.FetchArtist(ctx, seed.Name)
		if err != nil {
			c.log.Warn("Registry lookup failed", "name", seed.Name, "error", err)
			continue
		}
		if record == nil {
			c.log.Debug("No registry match", "name", seed.Name)
			continue
		}
		out = append(out, record)
		c.log.Debug("Processed registry artist", "index", i+1, "total", len(seeds), "name", seed.Name, "tags", len(record.GenreTags))
	}
	return out, nil
}

// FetchArtist queries the registry for one name. Nil without error when the
// search returns no artists.
func (c *client) FetchArtist(ctx context.Context, name string) (*types.SourceRecord, error) {
	q := url.Values{}
	q.Set("query", "artist:"+name)
	q.Set("fmt", "json")

	var parsed searchResponse
	if err := c.getWithRetry(ctx, c.baseURL+"?"+q.Encode(), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Artists) == 0 {
		return nil, nil
	}

	top := parsed.Artists[0]
	record := &types.SourceRecord{
		Name:       name,
		ExternalID: top.ID,
	}
	for _, tag := range top.Tags {
		if tag.Name != "" {
			record.GenreTags = append(record.GenreTags, tag.Name)
		}
	}
	return record, nil
}

func (c *client) getWithRetry(ctx context.Context, rawURL string, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// A Retry-After hint from the registry overrides the fixed
			// delay; either way the sleep is jittered.
			delay := retryDelay
			var statusErr *httpx.StatusError
			if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > 0 {
				delay = statusErr.RetryAfter
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(httpx.JitterSleep(delay)):
			}
		}
		lastErr = c.get(ctx, rawURL, out)
		if lastErr == nil {
			return nil
		}
		if !httpx.IsRetryableError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("musicbrainz: failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		trimmed := strings.TrimSpace(string(body))
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		return &httpx.StatusError{
			Status:     resp.StatusCode,
			URL:        rawURL,
			Body:       trimmed,
			RetryAfter: httpx.RetryAfterDuration(resp, 0, maxRetryAfter),
		}
	}
	return json.Unmarshal(body, out)
}
