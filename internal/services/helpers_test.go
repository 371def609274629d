package services

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"sync"
	"testing"

	"random-photo-backend/internal/imageloader"
	"random-photo-backend/internal/models"

	"github.com/disintegration/imaging"
)

func strPtr(s string) *string { return &s }

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 40, G: 90, B: 160, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type loadCall struct {
	url    string
	policy imageloader.CachePolicy
}

// fakeImages serves image bytes by URL and records every load
type fakeImages struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []loadCall
}

func newFakeImages() *fakeImages {
	return &fakeImages{bodies: make(map[string][]byte)}
}

func (f *fakeImages) set(url string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
}

func (f *fakeImages) Load(_ context.Context, url string, policy imageloader.CachePolicy) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, loadCall{url: url, policy: policy})
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: %w", url, models.ErrNetwork)
	}
	return body, nil
}

func (f *fakeImages) loaded() []loadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]loadCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeFetcher returns canned results per query. block holds every fetch,
// gates hold the fetches of a single query.
type fakeFetcher struct {
	mu        sync.Mutex
	results   map[string][]models.PhotoRecord
	err       error
	block     chan struct{}
	gates     map[string]chan struct{}
	queries   []string
	cancelled int
}

func (f *fakeFetcher) FetchRandomPhotos(ctx context.Context, query string) ([]models.PhotoRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	block := f.block
	if gate, ok := f.gates[query]; ok {
		block = gate
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.mu.Lock()
			f.cancelled++
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func photo(w, h int, base string) models.PhotoRecord {
	return models.PhotoRecord{
		Width:        w,
		Height:       h,
		Description:  strPtr(base + " description"),
		ThumbnailURL: strPtr("https://images.test/" + base + "/thumb"),
		RegularURL:   strPtr("https://images.test/" + base + "/regular"),
		FullURL:      strPtr("https://images.test/" + base + "/full"),
		Owner: &models.UserRecord{
			Name:                strPtr(base + " author"),
			ProfileThumbnailURL: strPtr("https://images.test/" + base + "/profile"),
		},
	}
}
