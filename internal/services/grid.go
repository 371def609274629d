package services

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"random-photo-backend/internal/imageloader"
	"random-photo-backend/internal/models"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// ImageSource loads image bytes by URL
type ImageSource interface {
	Load(ctx context.Context, url string, policy imageloader.CachePolicy) ([]byte, error)
}

// Card is the layout of one photo in the grid
type Card struct {
	Index        int                `json:"index"`
	Width        int                `json:"width"`
	Height       int                `json:"height"`
	ThumbnailURL *string            `json:"thumbnail_url,omitempty"`
	ImageURL     *string            `json:"image_url,omitempty"`
	Author       *string            `json:"author,omitempty"`
	Description  *string            `json:"description,omitempty"`
	ProfileURL   *string            `json:"profile_url,omitempty"`
	Photo        models.PhotoRecord `json:"photo"`
}

// FrameStage marks the progressive load step of a frame
type FrameStage string

const (
	StageThumbnail FrameStage = "thumbnail"
	StageFull      FrameStage = "full"
)

// RenderFrame carries an image ready to draw into a card
type RenderFrame struct {
	Index     int        `json:"index"`
	Stage     FrameStage `json:"stage"`
	URL       string     `json:"url"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Crossfade bool       `json:"crossfade"`
	Image     []byte     `json:"image"`
}

// SelectFunc handles a tapped photo and returns the save prompt it opened
type SelectFunc func(photo models.PhotoRecord) models.SaveOperation

// GridRenderer lays out photos and loads their images progressively
type GridRenderer struct {
	images   ImageSource
	onSelect SelectFunc
}

// NewGridRenderer creates a renderer. onSelect receives tapped photos.
func NewGridRenderer(images ImageSource, onSelect SelectFunc) *GridRenderer {
	return &GridRenderer{images: images, onSelect: onSelect}
}

// DisplayHeight sizes a card before its image arrives: round(containerWidth * height/width)
func DisplayHeight(containerWidth int, photo models.PhotoRecord) int {
	if photo.Width <= 0 || containerWidth <= 0 {
		return 0
	}
	ratio := float64(photo.Height) / float64(photo.Width)
	return int(math.Round(float64(containerWidth) * ratio))
}

// Layout computes the cards for photos in order
func (g *GridRenderer) Layout(containerWidth int, photos []models.PhotoRecord) []Card {
	cards := make([]Card, 0, len(photos))
	for i, photo := range photos {
		card := Card{
			Index:        i,
			Width:        containerWidth,
			Height:       DisplayHeight(containerWidth, photo),
			ThumbnailURL: nonBlank(photo.ThumbnailURL),
			ImageURL:     nonBlank(photo.RegularURL),
			Description:  nonBlank(photo.Description),
			Photo:        photo,
		}
		if photo.Owner != nil {
			card.Author = nonBlank(photo.Owner.Name)
			card.ProfileURL = nonBlank(photo.Owner.ProfileThumbnailURL)
		}
		cards = append(cards, card)
	}
	return cards
}

// Render loads each card's thumbnail and then its full image, handing
// frames to sink in that order. Failed loads are skipped.
func (g *GridRenderer) Render(ctx context.Context, containerWidth int, photos []models.PhotoRecord, sink func(RenderFrame)) error {
	for _, card := range g.Layout(containerWidth, photos) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if card.ThumbnailURL != nil {
			if frame, err := g.frame(ctx, card, StageThumbnail, *card.ThumbnailURL); err == nil {
				sink(frame)
			} else {
				log.Warn().Err(err).Int("index", card.Index).Msg("Thumbnail load failed")
			}
		}

		if card.ImageURL != nil {
			frame, err := g.frame(ctx, card, StageFull, *card.ImageURL)
			if err != nil {
				log.Warn().Err(err).Int("index", card.Index).Msg("Image load failed")
				continue
			}
			frame.Crossfade = card.ThumbnailURL != nil
			sink(frame)
		}
	}
	return nil
}

// ItemSelected fires the selection callback with the tapped photo
func (g *GridRenderer) ItemSelected(photo models.PhotoRecord) models.SaveOperation {
	if g.onSelect == nil {
		return models.SaveOperation{}
	}
	return g.onSelect(photo)
}

func (g *GridRenderer) frame(ctx context.Context, card Card, stage FrameStage, url string) (RenderFrame, error) {
	data, err := g.images.Load(ctx, url, imageloader.CacheDefault)
	if err != nil {
		return RenderFrame{}, err
	}

	fitted, err := fitImage(data, card.Width, card.Height)
	if err != nil {
		return RenderFrame{}, err
	}

	return RenderFrame{
		Index:  card.Index,
		Stage:  stage,
		URL:    url,
		Width:  card.Width,
		Height: card.Height,
		Image:  fitted,
	}, nil
}

// fitImage scales an image down into the card box
func fitImage(data []byte, width, height int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w: %v", models.ErrDecode, err)
	}

	if width > 0 && height > 0 {
		img = imaging.Fit(img, width, height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
