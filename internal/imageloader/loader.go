// Package imageloader downloads image bytes over HTTP and keeps recently
// used images in an in-memory LRU cache with TTL.
package imageloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"random-photo-backend/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_loader_cache_hits_total",
		Help: "Image loads served from the in-memory cache",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_loader_cache_misses_total",
		Help: "Image loads that went to the network",
	})
)

// CachePolicy controls whether a load may use the cache
type CachePolicy int

const (
	// CacheDefault reads from and writes to the cache
	CacheDefault CachePolicy = iota
	// CacheNone always downloads and never stores the result
	CacheNone
)

// Loader fetches images by URL
type Loader struct {
	httpClient *http.Client
	cache      *expirable.LRU[string, []byte]
	maxBytes   int64
}

// New creates a loader with the given cache size and entry TTL.
// Bodies larger than maxBytes are rejected.
func New(cacheSize int, ttl, timeout time.Duration, maxBytes int64) *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: timeout},
		cache:      expirable.NewLRU[string, []byte](cacheSize, nil, ttl),
		maxBytes:   maxBytes,
	}
}

// Load returns the bytes of the image at url
func (l *Loader) Load(ctx context.Context, url string, policy CachePolicy) ([]byte, error) {
	if policy == CacheDefault {
		if data, ok := l.cache.Get(url); ok {
			cacheHitsTotal.Inc()
			return data, nil
		}
		cacheMissesTotal.Inc()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w: %v", models.ErrNetwork, err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d: %w", resp.StatusCode, models.ErrNetwork)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w: %v", models.ErrNetwork, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes: %w", l.maxBytes, models.ErrNetwork)
	}

	if policy == CacheDefault {
		l.cache.Add(url, data)
	}

	return data, nil
}

// Len returns the number of cached images
func (l *Loader) Len() int {
	return l.cache.Len()
}
