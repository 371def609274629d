package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"random-photo-backend/internal/media"
	"random-photo-backend/internal/models"
	"random-photo-backend/internal/wallpaper"

	"github.com/rs/zerolog/log"
)

// ScreenDeps are the collaborators shared by every screen
type ScreenDeps struct {
	Fetcher   PhotoFetcher
	Images    ImageSource
	Store     media.Store
	Wallpaper wallpaper.Setter
	Notifier  Notifier

	// WallpaperOfferTTL bounds how long a finished save keeps its bytes
	WallpaperOfferTTL time.Duration
}

// Screen is one photo grid session: its photo list, grid and saves. All of
// its background work runs on a scope torn down by Destroy.
type Screen struct {
	ID string

	scope      *Scope
	list       *PhotoListController
	grid       *GridRenderer
	saves      *PersistenceService
	permission *PermissionGate
	notifier   Notifier

	mu       sync.Mutex
	lastSeen time.Time
}

// NewScreen wires a screen for session id
func NewScreen(parent context.Context, id string, deps ScreenDeps) *Screen {
	s := &Screen{
		ID:         id,
		scope:      NewScope(parent),
		permission: NewPermissionGate(deps.Store.RequiresPermission()),
		notifier:   deps.Notifier,
		lastSeen:   time.Now(),
	}

	s.list = NewPhotoListController(id, deps.Fetcher, s.scope, func(state models.FetchState) {
		s.send(WSMessage{Type: MsgFetchState, Data: state})
	})

	s.saves = NewPersistenceService(PersistenceOptions{
		SessionID:  id,
		Store:      deps.Store,
		Images:     deps.Images,
		Wallpaper:  deps.Wallpaper,
		Permission: s.permission,
		Scope:      s.scope,
		OfferTTL:   deps.WallpaperOfferTTL,
		OnSave: func(op models.SaveOperation) {
			s.send(WSMessage{Type: MsgSaveState, Data: op})
		},
		OnNotify: func(n Notification) {
			s.send(WSMessage{Type: MsgNotification, Message: n.Text, Data: n})
		},
	})

	s.grid = NewGridRenderer(deps.Images, s.saves.Select)

	return s
}

// Start runs the first unfiltered load, or waits for a permission grant
func (s *Screen) Start() {
	if !s.permission.Permitted() {
		log.Info().Str("session_id", s.ID).Msg("Waiting for storage permission")
		return
	}
	s.list.Load("")
}

// PermissionRequired reports whether the screen still waits for a grant
func (s *Screen) PermissionRequired() bool {
	return !s.permission.Permitted()
}

// GrantPermission records the user's answer. The first grant starts the initial load.
func (s *Screen) GrantPermission(granted bool) {
	s.touch()
	if !granted {
		s.permission.Answer(false)
		s.send(WSMessage{Type: MsgNotification, Message: TextPermissionDenied, Data: Notification{Text: TextPermissionDenied}})
		return
	}
	if s.permission.Answer(true) && s.permission.Required() {
		s.list.Load("")
	}
}

// Search replaces the list with photos matching query
func (s *Screen) Search(query string) {
	s.touch()
	s.list.Load(query)
}

// Refresh reloads the list with the last query
func (s *Screen) Refresh() {
	s.touch()
	s.list.Load(s.list.Query())
}

// State returns the current fetch state
func (s *Screen) State() models.FetchState {
	s.touch()
	return s.list.State()
}

// Layout returns the cards of the current list for containerWidth
func (s *Screen) Layout(containerWidth int) []Card {
	s.touch()
	return s.grid.Layout(containerWidth, s.list.State().Photos)
}

// RenderGrid streams the progressive frames of the current list to the client
func (s *Screen) RenderGrid(containerWidth int) bool {
	s.touch()
	photos := s.list.State().Photos
	return s.scope.Go(func(ctx context.Context) {
		err := s.grid.Render(ctx, containerWidth, photos, func(frame RenderFrame) {
			s.send(WSMessage{Type: MsgRenderFrame, Data: frame})
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("session_id", s.ID).Msg("Grid render failed")
		}
	})
}

// SelectPhoto opens a save prompt for photo. Only records of the current
// list can be selected.
func (s *Screen) SelectPhoto(photo models.PhotoRecord) (models.SaveOperation, error) {
	s.touch()
	if !s.list.Contains(photo) {
		return models.SaveOperation{}, fmt.Errorf("photo is not in the current list: %w", models.ErrNotFound)
	}
	return s.grid.ItemSelected(photo), nil
}

// Saves returns the screen's persistence service
func (s *Screen) Saves() *PersistenceService {
	s.touch()
	return s.saves
}

// LastSeen returns the time of the latest interaction
func (s *Screen) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Wait blocks until the screen's background tasks finish
func (s *Screen) Wait() {
	s.scope.Wait()
}

// Destroy cancels in-flight fetches and saves and waits for them
func (s *Screen) Destroy() {
	s.scope.Close()
	log.Info().Str("session_id", s.ID).Msg("Screen destroyed")
}

func (s *Screen) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Screen) send(msg WSMessage) {
	if s.notifier != nil {
		s.notifier.Notify(s.ID, msg)
	}
}
