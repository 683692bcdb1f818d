package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/soundweb-ingestor/internal/normalize"
	"github.com/yungbote/soundweb-ingestor/internal/pkg/httpx"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// Client fetches the popularity chart and per-artist detail from Last.fm.
type Client interface {
	FetchTopArtists(ctx context.Context, maxArtists int) ([]*types.SourceRecord, error)
	FetchArtistDetails(ctx context.Context, artists []*types.SourceRecord) []*types.SourceRecord
	FetchArtistDetail(ctx context.Context, name string) (*types.SourceRecord, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("lastfm: logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("LASTFM_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("lastfm: missing LASTFM_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("LASTFM_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		log:        log.With("client", "Lastfm"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type chartResponse struct {
	Artists struct {
		Artist []chartArtist `json:"artist"`
	} `json:"artists"`
}

type chartArtist struct {
	Name string `json:"name"`
	MBID string `json:"mbid"`
	URL  string `json:"url"`
}

type infoResponse struct {
	Artist *struct {
		MBID  string `json:"mbid"`
		Image []struct {
			Text string `json:"#text"`
			Size string `json:"size"`
		} `json:"image"`
		Tags struct {
			Tag []struct {
				Name string `json:"name"`
			} `json:"tag"`
		} `json:"tags"`
	} `json:"artist"`
}

type similarResponse struct {
	SimilarArtists struct {
		Artist []struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"similarartists"`
}

// FetchTopArtists pages through the chart until maxArtists unique names are
// collected or the API runs dry. A failed page ends the walk with whatever
// was collected so far; an empty first page is an error.
func (c *client) FetchTopArtists(ctx context.Context, maxArtists int) ([]*types.SourceRecord, error) {
	seen := map[string]bool{}
	records := make([]*types.SourceRecord, 0, maxArtists)
	page := 1

	for len(records) < maxArtists {
		var parsed chartResponse
		err := c.get(ctx, map[string]string{
			"method": "chart.gettopartists",
			"page":   strconv.Itoa(page),
		}, &parsed)
		if err != nil {
			if len(records) == 0 {
				return nil, fmt.Errorf("lastfm: fetch top artists page %d: %w", page, err)
			}
			c.log.Warn("Chart page fetch failed, stopping pagination", "page", page, "error", err)
			break
		}
		fetched := parsed.Artists.Artist
		if len(fetched) == 0 {
			c.log.Info("No more artists returned, stopping pagination", "page", page)
			break
		}

		for _, a := range fetched {
			key := normalize.Name(a.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			records = append(records, &types.SourceRecord{
				Name:       a.Name,
				ExternalID: a.MBID,
				URL:        a.URL,
			})
			if len(records) >= maxArtists {
				break
			}
		}
		c.log.Info("Fetched chart page", "page", page, "page_artists", len(fetched), "total_unique", len(records))
		page++
	}
	return records, nil
}

// FetchArtistDetails enriches chart records in place order with tags, image
// and similar artists. Per-artist failures are logged and skipped; the
// record survives with whatever it already had.
func (c *client) FetchArtistDetails(ctx context.Context, artists []*types.SourceRecord) []*types.SourceRecord {
	seen := map[string]bool{}
	out := make([]*types.SourceRecord, 0, len(artists))

	for i, artist := range artists {
		if artist == nil {
			continue
		}
		key := normalize.Name(artist.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		detail, err := c.FetchArtistDetail(ctx, artist.Name)
		if err != nil {
			c.log.Warn("Failed to fetch artist detail, keeping chart record", "name", artist.Name, "error", err)
			out = append(out, artist)
			continue
		}
		if detail.ExternalID == "" {
			detail.ExternalID = artist.ExternalID
		}
		detail.URL = artist.URL
		out = append(out, detail)
		c.log.Debug("Processed artist detail", "index", i+1, "total", len(artists), "name", artist.Name, "tags", len(detail.GenreTags))
	}
	return out
}

// FetchArtistDetail fetches artist.getinfo plus similar artists for one name.
func (c *client) FetchArtistDetail(ctx context.Context, name string) (*types.SourceRecord, error) {
	var parsed infoResponse
	if err := c.get(ctx, map[string]string{
		"method": "artist.getinfo",
		"artist": name,
	}, &parsed); err != nil {
		return nil, err
	}
	if parsed.Artist == nil {
		return nil, fmt.Errorf("lastfm: no artist data for %q", name)
	}

	record := &types.SourceRecord{
		Name:       name,
		ExternalID: parsed.Artist.MBID,
	}
	for _, img := range parsed.Artist.Image {
		if img.Size == "extralarge" && img.Text != "" {
			record.ImageURL = img.Text
			break
		}
	}
	for _, tag := range parsed.Artist.Tags.Tag {
		if tag.Name != "" {
			record.GenreTags = append(record.GenreTags, tag.Name)
		}
	}
	record.RelatedNames = c.similarArtists(ctx, name)
	return record, nil
}

func (c *client) similarArtists(ctx context.Context, name string) []string {
	var parsed similarResponse
	if err := c.get(ctx, map[string]string{
		"method": "artist.getsimilar",
		"artist": name,
		"limit":  "10",
	}, &parsed); err != nil {
		c.log.Warn("Failed to fetch similar artists", "name", name, "error", err)
		return nil
	}
	names := make([]string, 0, len(parsed.SimilarArtists.Artist))
	for _, a := range parsed.SimilarArtists.Artist {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

func (c *client) get(ctx context.Context, params map[string]string, out any) error {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
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
		return &httpx.StatusError{Status: resp.StatusCode, URL: c.baseURL, Body: truncate(string(body))}
	}
	return json.Unmarshal(body, out)
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
