package photoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"random-photo-backend/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "photo_api_requests_total",
		Help: "Requests to the remote photo API by outcome",
	},
	[]string{"outcome"},
)

// Client fetches random photos from the remote photo API
type Client struct {
	httpClient *http.Client
	baseURL    string
	accessKey  string
	pageSize   int
	debug      bool
}

// Options configures a Client
type Options struct {
	BaseURL   string
	AccessKey string
	PageSize  int
	Timeout   time.Duration
	Debug     bool
}

// NewClient creates a new photo API client
func NewClient(opts Options) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		accessKey:  opts.AccessKey,
		pageSize:   opts.PageSize,
		debug:      opts.Debug,
	}
}

// FetchRandomPhotos issues a single request for a batch of random photos.
// A blank query means unfiltered photos. Transport failures and non-success
// statuses wrap models.ErrNetwork, malformed bodies wrap models.ErrDecode.
func (c *Client) FetchRandomPhotos(ctx context.Context, query string) ([]models.PhotoRecord, error) {
	reqURL := c.requestURL(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to build request: %w: %v", models.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	if c.debug {
		log.Debug().Str("url", redact(reqURL)).Msg("Photo API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("failed to fetch photos: %w: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("failed to read response body: %w: %v", models.ErrNetwork, err)
	}

	if c.debug {
		log.Debug().
			Int("status", resp.StatusCode).
			Bytes("body", body).
			Msg("Photo API response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		requestsTotal.WithLabelValues("bad_status").Inc()
		return nil, fmt.Errorf("photo api returned status %d: %w", resp.StatusCode, models.ErrNetwork)
	}

	photos, err := decodePhotos(body)
	if err != nil {
		requestsTotal.WithLabelValues("decode_error").Inc()
		return nil, err
	}

	requestsTotal.WithLabelValues("ok").Inc()
	return photos, nil
}

// requestURL builds GET /photos/random?client_id=..&count=..[&query=..]
func (c *Client) requestURL(query string) string {
	params := url.Values{}
	params.Set("client_id", c.accessKey)
	params.Set("count", fmt.Sprintf("%d", c.pageSize))
	if q := strings.TrimSpace(query); q != "" {
		params.Set("query", q)
	}
	return c.baseURL + "/photos/random?" + params.Encode()
}

// redact hides the access key in logged URLs
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("client_id") {
		q.Set("client_id", "***")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// decodePhotos maps a JSON array of photo objects to records.
// Individual fields that are missing or of the wrong type become absent.
func decodePhotos(body []byte) ([]models.PhotoRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.PhotoRecord{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("failed to decode photo list: %w: %v", models.ErrDecode, err)
	}

	photos := make([]models.PhotoRecord, 0, len(items))
	for _, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			// Non-object entries carry nothing usable
			photos = append(photos, models.PhotoRecord{})
			continue
		}
		photos = append(photos, toRecord(obj))
	}

	return photos, nil
}

func toRecord(obj map[string]json.RawMessage) models.PhotoRecord {
	photo := models.PhotoRecord{
		Width:       optInt(obj["width"]),
		Height:      optInt(obj["height"]),
		Description: optString(obj["description"]),
	}

	if urls := optObject(obj["urls"]); urls != nil {
		photo.ThumbnailURL = optString(urls["thumb"])
		photo.RegularURL = optString(urls["regular"])
		photo.FullURL = optString(urls["full"])
	}

	if user := optObject(obj["user"]); user != nil {
		owner := &models.UserRecord{Name: optString(user["name"])}
		if profile := optObject(user["profile_image"]); profile != nil {
			owner.ProfileThumbnailURL = optString(profile["small"])
		}
		photo.Owner = owner
	}

	return photo
}

func optString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return s
}

func optInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return int(f)
}

func optObject(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}
