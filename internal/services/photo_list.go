package services

import (
	"context"
	"reflect"
	"sync"

	"random-photo-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// FailedReason is the only failure text shown to the user
const FailedReason = "Failed to load photos. Pull to refresh to try again."

// PhotoFetcher fetches a batch of random photos
type PhotoFetcher interface {
	FetchRandomPhotos(ctx context.Context, query string) ([]models.PhotoRecord, error)
}

// PhotoListController owns the photo list of one screen.
//
// Overlapping loads are not cancelled: each runs to completion and the one
// that finishes last decides the final state.
type PhotoListController struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex // orders onChange calls with state writes
	state     models.FetchState
	query     string // last submitted query
	fetcher   PhotoFetcher
	scope     *Scope
	sessionID string
	onChange  func(models.FetchState)
}

// NewPhotoListController creates a controller whose tasks run on scope.
// onChange receives every state transition and may be nil.
func NewPhotoListController(sessionID string, fetcher PhotoFetcher, scope *Scope, onChange func(models.FetchState)) *PhotoListController {
	return &PhotoListController{
		state:     models.FetchState{Kind: models.FetchIdle, Photos: []models.PhotoRecord{}},
		fetcher:   fetcher,
		scope:     scope,
		sessionID: sessionID,
		onChange:  onChange,
	}
}

// Load starts a fetch for query in the background and returns immediately
func (c *PhotoListController) Load(query string) {
	c.mu.Lock()
	c.query = query
	c.mu.Unlock()

	c.scope.Go(func(ctx context.Context) {
		c.fetch(ctx, query)
	})
}

// State returns a snapshot of the current fetch state
func (c *PhotoListController) State() models.FetchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.state)
}

// Query returns the last submitted query, whether or not its load has started
func (c *PhotoListController) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Contains reports whether photo is one of the records of the current list
func (c *PhotoListController) Contains(photo models.PhotoRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.state.Photos {
		if reflect.DeepEqual(p, photo) {
			return true
		}
	}
	return false
}

func (c *PhotoListController) fetch(ctx context.Context, query string) {
	c.setState(models.FetchState{Kind: models.FetchLoading, Query: query, Photos: []models.PhotoRecord{}})

	photos, err := c.fetcher.FetchRandomPhotos(ctx, query)
	if ctx.Err() != nil {
		// Screen torn down
		return
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", c.sessionID).
			Str("query", query).
			Msg("Failed to fetch photos")
		c.setState(models.FetchState{Kind: models.FetchFailed, Query: query, Photos: []models.PhotoRecord{}, Reason: FailedReason})
		return
	}

	if photos == nil {
		photos = []models.PhotoRecord{}
	}

	log.Info().
		Str("session_id", c.sessionID).
		Str("query", query).
		Int("count", len(photos)).
		Msg("Photos loaded")

	c.setState(models.FetchState{Kind: models.FetchLoaded, Query: query, Photos: photos})
}

func (c *PhotoListController) setState(state models.FetchState) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.state = state
	out := snapshot(state)
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(out)
	}
}

func snapshot(state models.FetchState) models.FetchState {
	photos := make([]models.PhotoRecord, len(state.Photos))
	copy(photos, state.Photos)
	state.Photos = photos
	return state
}
