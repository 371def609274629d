package repository

import (
	"context"
	"errors"
	"fmt"

	"random-photo-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ImageRepository handles the images catalog table
type ImageRepository struct {
	db *pgxpool.Pool
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create inserts a new catalog row
func (r *ImageRepository) Create(ctx context.Context, img *models.PersistedImage) error {
	query := `
		INSERT INTO images (id, display_name, mime_type, size, is_pending, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		img.ID, img.DisplayName, img.MimeType, img.Size, img.Pending, img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

// GetVisible retrieves a published image by ID
func (r *ImageRepository) GetVisible(ctx context.Context, id string) (*models.PersistedImage, error) {
	query := `
		SELECT id, display_name, mime_type, size, is_pending, created_at
		FROM images
		WHERE id = $1 AND is_pending = FALSE
	`
	var img models.PersistedImage
	err := r.db.QueryRow(ctx, query, id).Scan(
		&img.ID, &img.DisplayName, &img.MimeType, &img.Size, &img.Pending, &img.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("image %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

// ListVisible returns published images, newest first
func (r *ImageRepository) ListVisible(ctx context.Context) ([]*models.PersistedImage, error) {
	query := `
		SELECT id, display_name, mime_type, size, is_pending, created_at
		FROM images
		WHERE is_pending = FALSE
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := make([]*models.PersistedImage, 0)
	for rows.Next() {
		var img models.PersistedImage
		if err := rows.Scan(
			&img.ID, &img.DisplayName, &img.MimeType, &img.Size, &img.Pending, &img.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, &img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

// Publish clears the pending flag and stores the final size
func (r *ImageRepository) Publish(ctx context.Context, id string, size int64) error {
	query := `UPDATE images SET is_pending = FALSE, size = $1 WHERE id = $2 AND is_pending = TRUE`
	result, err := r.db.Exec(ctx, query, size, id)
	if err != nil {
		return fmt.Errorf("failed to publish image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("pending image %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeletePending removes a row that was never published
func (r *ImageRepository) DeletePending(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = $1 AND is_pending = TRUE`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
