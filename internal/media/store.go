// Package media implements the shared image store. Entries are created
// pending, filled through a writer and only become visible to List, Get and
// Open once Publish clears the pending flag.
package media

import (
	"context"
	"io"

	"random-photo-backend/internal/models"
)

// MimeJPEG is the mime type of every entry written by the save flow
const MimeJPEG = "image/jpeg"

// Store is a shared image store with two-phase publication
type Store interface {
	// Insert allocates a new pending entry
	Insert(ctx context.Context, displayName, mimeType string) (*models.PersistedImage, error)
	// OpenWriter opens the entry's byte stream. Close flushes it and records the size.
	OpenWriter(ctx context.Context, img *models.PersistedImage) (io.WriteCloser, error)
	// Publish clears the pending flag making the entry visible
	Publish(ctx context.Context, img *models.PersistedImage) error
	// Abort discards an entry that was never published
	Abort(ctx context.Context, img *models.PersistedImage) error
	// List returns visible entries only
	List(ctx context.Context) ([]*models.PersistedImage, error)
	// Get returns a visible entry
	Get(ctx context.Context, id string) (*models.PersistedImage, error)
	// Open reads a visible entry's bytes
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	// RequiresPermission reports whether writes need an explicit user grant
	RequiresPermission() bool
}

var (
	_ Store = (*FSStore)(nil)
	_ Store = (*S3Store)(nil)
)
