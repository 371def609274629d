package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"random-photo-backend/internal/imageloader"
	"random-photo-backend/internal/media"
	"random-photo-backend/internal/models"
	"random-photo-backend/internal/wallpaper"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var savesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "photo_saves_total",
		Help: "Photo save operations by outcome",
	},
	[]string{"outcome"},
)

// User-visible notification texts
const (
	TextConfirm          = "Save this photo?"
	TextDownloading      = "Downloading..."
	TextDownloadComplete = "Download complete"
	TextDownloadFailed   = "Download failed"
	TextSaveFailed       = "Failed to save photo"
	TextPermissionDenied = "Storage permission is required to save photos"
	TextSetWallpaper     = "Set as wallpaper"
	TextWallpaperApplied = "Wallpaper applied"
	TextWallpaperFailed  = "Failed to set wallpaper"
)

// ActionSetWallpaper is offered on the completion notification
const ActionSetWallpaper = "set_wallpaper"

// DefaultOfferTTL is how long a finished save keeps its wallpaper offer
const DefaultOfferTTL = 10 * time.Minute

// Notification is a transient message shown to the user
type Notification struct {
	Text        string `json:"text"`
	SaveID      string `json:"save_id,omitempty"`
	Action      string `json:"action,omitempty"`
	ActionLabel string `json:"action_label,omitempty"`
	Indefinite  bool   `json:"indefinite"`
}

// saveEntry is a save operation plus the bytes kept for the wallpaper action
type saveEntry struct {
	op     models.SaveOperation
	image  []byte
	expiry *time.Timer
}

// PersistenceService runs confirmed photo saves into the shared image store
type PersistenceService struct {
	mu         sync.Mutex
	saves      map[string]*saveEntry
	store      media.Store
	images     ImageSource
	wallpaper  wallpaper.Setter
	permission *PermissionGate
	scope      *Scope
	sessionID  string
	onSave     func(models.SaveOperation)
	onNotify   func(Notification)
	now        func() time.Time
	offerTTL   time.Duration
}

// PersistenceOptions configures a PersistenceService
type PersistenceOptions struct {
	SessionID  string
	Store      media.Store
	Images     ImageSource
	Wallpaper  wallpaper.Setter
	Permission *PermissionGate
	Scope      *Scope
	OnSave     func(models.SaveOperation)
	OnNotify   func(Notification)
	Now        func() time.Time
	OfferTTL   time.Duration // zero means DefaultOfferTTL
}

// NewPersistenceService creates a new persistence service
func NewPersistenceService(opts PersistenceOptions) *PersistenceService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	offerTTL := opts.OfferTTL
	if offerTTL <= 0 {
		offerTTL = DefaultOfferTTL
	}
	permission := opts.Permission
	if permission == nil {
		permission = NewPermissionGate(opts.Store.RequiresPermission())
	}
	return &PersistenceService{
		saves:      make(map[string]*saveEntry),
		store:      opts.Store,
		images:     opts.Images,
		wallpaper:  opts.Wallpaper,
		permission: permission,
		scope:      opts.Scope,
		sessionID:  opts.SessionID,
		onSave:     opts.OnSave,
		onNotify:   opts.OnNotify,
		now:        now,
		offerTTL:   offerTTL,
	}
}

// Select opens a save prompt for photo
func (s *PersistenceService) Select(photo models.PhotoRecord) models.SaveOperation {
	entry := &saveEntry{op: models.SaveOperation{
		ID:        uuid.New().String(),
		Photo:     photo,
		State:     models.SaveConfirming,
		CreatedAt: s.now(),
	}}

	s.mu.Lock()
	s.saves[entry.op.ID] = entry
	op := entry.op
	s.mu.Unlock()

	s.publish(op)
	return op
}

// Cancel answers "no" to the prompt. The operation is discarded.
func (s *PersistenceService) Cancel(id string) error {
	s.mu.Lock()
	entry, ok := s.saves[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("save %s: %w", id, models.ErrNotFound)
	}
	if state := entry.op.State; state != models.SaveConfirming {
		s.mu.Unlock()
		return fmt.Errorf("cannot cancel save in state %s: %w", state, models.ErrInvalidTransition)
	}
	entry.op.State = models.SaveIdle
	op := entry.op
	delete(s.saves, id)
	s.mu.Unlock()

	s.publish(op)
	return nil
}

// Confirm answers "yes" to the prompt and runs the save in the background
func (s *PersistenceService) Confirm(id string) error {
	s.mu.Lock()
	entry, ok := s.saves[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("save %s: %w", id, models.ErrNotFound)
	}
	if state := entry.op.State; state != models.SaveConfirming {
		s.mu.Unlock()
		return fmt.Errorf("cannot confirm save in state %s: %w", state, models.ErrInvalidTransition)
	}

	url := entry.op.Photo.FullURL
	if url == nil || strings.TrimSpace(*url) == "" {
		// Nothing to download: drop silently
		delete(s.saves, id)
		s.mu.Unlock()
		savesTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	if !s.permission.Permitted() {
		entry.op.State = models.SaveFailed
		entry.op.Error = models.ErrPermissionDenied.Error()
		op := entry.op
		s.mu.Unlock()

		savesTotal.WithLabelValues("permission_denied").Inc()
		s.publish(op)
		s.notify(Notification{Text: TextPermissionDenied, SaveID: id})
		return fmt.Errorf("save %s: %w", id, models.ErrPermissionDenied)
	}

	entry.op.State = models.SaveDownloading
	s.mu.Unlock()

	fullURL := *url
	s.scope.Go(func(ctx context.Context) {
		s.run(ctx, id, fullURL)
	})
	return nil
}

// Get returns a save operation
func (s *PersistenceService) Get(id string) (models.SaveOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.saves[id]
	if !ok {
		return models.SaveOperation{}, fmt.Errorf("save %s: %w", id, models.ErrNotFound)
	}
	return entry.op, nil
}

// SetWallpaper applies the image of a finished save as wallpaper.
// A failure is reported but leaves the saved image untouched.
func (s *PersistenceService) SetWallpaper(ctx context.Context, id string) error {
	s.mu.Lock()
	entry, ok := s.saves[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("save %s: %w", id, models.ErrNotFound)
	}
	if entry.op.State != models.SaveDone || !entry.op.WallpaperOffered {
		s.mu.Unlock()
		return fmt.Errorf("wallpaper not offered for save %s: %w", id, models.ErrInvalidTransition)
	}
	image := entry.image
	s.mu.Unlock()

	if err := s.wallpaper.Set(ctx, image); err != nil {
		log.Error().Err(err).Str("session_id", s.sessionID).Str("save_id", id).Msg("Failed to set wallpaper")
		s.notify(Notification{Text: TextWallpaperFailed, SaveID: id})
		return err
	}

	s.withdrawOffer(id)
	s.notify(Notification{Text: TextWallpaperApplied, SaveID: id})
	return nil
}

// withdrawOffer drops the bytes kept for the wallpaper action
func (s *PersistenceService) withdrawOffer(id string) {
	s.mu.Lock()
	entry, ok := s.saves[id]
	if !ok || !entry.op.WallpaperOffered {
		s.mu.Unlock()
		return
	}
	if entry.expiry != nil {
		entry.expiry.Stop()
		entry.expiry = nil
	}
	entry.image = nil
	entry.op.WallpaperOffered = false
	op := entry.op
	s.mu.Unlock()

	s.publish(op)
}

func (s *PersistenceService) run(ctx context.Context, id, url string) {
	s.publish(s.transition(id, models.SaveDownloading, nil))
	s.notify(Notification{Text: TextDownloading, SaveID: id, Indefinite: true})

	data, err := s.images.Load(ctx, url, imageloader.CacheNone)
	if err == nil {
		data, err = toJPEG(data)
	}
	if ctx.Err() != nil {
		// Screen torn down
		return
	}
	if err != nil {
		s.fail(id, "download", err, TextDownloadFailed)
		return
	}

	s.publish(s.transition(id, models.SaveWriting, nil))

	img, err := s.write(ctx, id, data)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.fail(id, "write", err, TextSaveFailed)
		return
	}

	offered := s.wallpaper != nil && s.wallpaper.Supported() && s.wallpaper.Allowed()

	s.mu.Lock()
	entry, ok := s.saves[id]
	if ok {
		entry.op.State = models.SaveDone
		cp := *img
		entry.op.Image = &cp
		entry.op.WallpaperOffered = offered
		if offered {
			entry.image = data
			entry.expiry = time.AfterFunc(s.offerTTL, func() { s.withdrawOffer(id) })
		}
	}
	var op models.SaveOperation
	if ok {
		op = entry.op
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	savesTotal.WithLabelValues("done").Inc()
	log.Info().
		Str("session_id", s.sessionID).
		Str("save_id", id).
		Str("image", img.DisplayName).
		Int64("size", img.Size).
		Msg("Photo saved")

	s.publish(op)
	done := Notification{Text: TextDownloadComplete, SaveID: id}
	if offered {
		done.Action = ActionSetWallpaper
		done.ActionLabel = TextSetWallpaper
		done.Indefinite = true
	}
	s.notify(done)
}

// write runs insert -> stream -> close -> publish. Any failure before
// publish discards the entry, so a partial image is never made visible.
func (s *PersistenceService) write(ctx context.Context, id string, data []byte) (*models.PersistedImage, error) {
	name := fmt.Sprintf("%d.jpg", s.now().UnixMilli())

	img, err := s.store.Insert(ctx, name, media.MimeJPEG)
	if err != nil {
		return nil, err
	}

	abort := func(cause error) error {
		if err := s.store.Abort(context.WithoutCancel(ctx), img); err != nil {
			log.Error().Err(err).Str("image", name).Msg("Failed to discard pending image")
		}
		return cause
	}

	w, err := s.store.OpenWriter(ctx, img)
	if err != nil {
		return nil, abort(err)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return nil, abort(fmt.Errorf("failed to stream image: %w: %v", models.ErrWrite, err))
	}
	if err := w.Close(); err != nil {
		return nil, abort(err)
	}

	s.publish(s.transition(id, models.SaveFinalizing, img))

	if err := s.store.Publish(ctx, img); err != nil {
		return nil, abort(err)
	}

	return img, nil
}

func (s *PersistenceService) transition(id string, state models.SaveState, img *models.PersistedImage) models.SaveOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.saves[id]
	if !ok {
		return models.SaveOperation{ID: id, State: state}
	}
	entry.op.State = state
	if img != nil {
		cp := *img
		entry.op.Image = &cp
	}
	return entry.op
}

func (s *PersistenceService) fail(id, stage string, err error, text string) {
	log.Error().
		Err(err).
		Str("session_id", s.sessionID).
		Str("save_id", id).
		Str("stage", stage).
		Msg("Photo save failed")

	savesTotal.WithLabelValues(stage + "_failed").Inc()

	s.mu.Lock()
	entry, ok := s.saves[id]
	var op models.SaveOperation
	if ok {
		entry.op.State = models.SaveFailed
		entry.op.Error = err.Error()
		op = entry.op
	}
	s.mu.Unlock()

	if ok {
		s.publish(op)
	}
	s.notify(Notification{Text: text, SaveID: id})
}

func (s *PersistenceService) publish(op models.SaveOperation) {
	if s.onSave != nil {
		s.onSave(op)
	}
}

func (s *PersistenceService) notify(n Notification) {
	if s.onNotify != nil {
		s.onNotify(n)
	}
}

// toJPEG passes JPEG bytes through unchanged and re-encodes anything else at quality 100
func toJPEG(data []byte) ([]byte, error) {
	if http.DetectContentType(data) == media.MimeJPEG {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w: %v", models.ErrDecode, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(100)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w: %v", models.ErrDecode, err)
	}
	return buf.Bytes(), nil
}
