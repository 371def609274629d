package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"random-photo-backend/internal/models"
)

const pendingDir = ".pending"

// FSStore keeps images in a local directory. Pending entries live in a
// hidden subdirectory and are renamed into place on Publish.
type FSStore struct {
	dir               string
	pendingFlag       bool
	requirePermission bool
}

// NewFSStore creates the store directory if needed.
// With pendingFlag false entries are written straight to their final path,
// as on platforms that lack the pending mechanism.
func NewFSStore(dir string, pendingFlag, requirePermission bool) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, pendingDir), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}
	return &FSStore{dir: dir, pendingFlag: pendingFlag, requirePermission: requirePermission}, nil
}

// Dir returns the store root
func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) RequiresPermission() bool {
	return s.requirePermission
}

func (s *FSStore) Insert(_ context.Context, displayName, mimeType string) (*models.PersistedImage, error) {
	if displayName == "" || displayName != filepath.Base(displayName) || strings.HasPrefix(displayName, ".") {
		return nil, fmt.Errorf("invalid display name %q: %w", displayName, models.ErrWrite)
	}

	if _, err := os.Stat(s.visiblePath(displayName)); err == nil {
		return nil, fmt.Errorf("image %s already exists: %w", displayName, models.ErrWrite)
	}

	f, err := os.OpenFile(s.writePath(displayName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to insert image %s: %w: %v", displayName, models.ErrWrite, err)
	}
	info, statErr := f.Stat()
	f.Close()
	if statErr != nil {
		return nil, fmt.Errorf("failed to stat image %s: %w: %v", displayName, models.ErrWrite, statErr)
	}

	return &models.PersistedImage{
		ID:          displayName,
		DisplayName: displayName,
		MimeType:    mimeType,
		Pending:     s.pendingFlag,
		CreatedAt:   info.ModTime(),
	}, nil
}

func (s *FSStore) OpenWriter(_ context.Context, img *models.PersistedImage) (io.WriteCloser, error) {
	f, err := os.OpenFile(s.writePath(img.DisplayName), os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open image stream: %w: %v", models.ErrWrite, err)
	}
	return &fileWriter{f: f, img: img}, nil
}

func (s *FSStore) Publish(_ context.Context, img *models.PersistedImage) error {
	if !s.pendingFlag {
		img.Pending = false
		return nil
	}

	if err := os.Rename(s.writePath(img.DisplayName), s.visiblePath(img.DisplayName)); err != nil {
		return fmt.Errorf("failed to publish image %s: %w: %v", img.DisplayName, models.ErrWrite, err)
	}
	img.Pending = false
	return nil
}

func (s *FSStore) Abort(_ context.Context, img *models.PersistedImage) error {
	err := os.Remove(s.writePath(img.DisplayName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to discard image %s: %w", img.DisplayName, err)
	}
	return nil
}

func (s *FSStore) List(_ context.Context) ([]*models.PersistedImage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	images := make([]*models.PersistedImage, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		images = append(images, imageFromInfo(info))
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].DisplayName < images[j].DisplayName
	})
	return images, nil
}

func (s *FSStore) Get(_ context.Context, id string) (*models.PersistedImage, error) {
	if id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("image %s: %w", id, models.ErrNotFound)
	}
	info, err := os.Stat(s.visiblePath(id))
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("image %s: %w", id, models.ErrNotFound)
	}
	return imageFromInfo(info), nil
}

func (s *FSStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	f, err := os.Open(s.visiblePath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", id, err)
	}
	return f, nil
}

func (s *FSStore) writePath(name string) string {
	if s.pendingFlag {
		return filepath.Join(s.dir, pendingDir, name)
	}
	return s.visiblePath(name)
}

func (s *FSStore) visiblePath(name string) string {
	return filepath.Join(s.dir, name)
}

func imageFromInfo(info os.FileInfo) *models.PersistedImage {
	return &models.PersistedImage{
		ID:          info.Name(),
		DisplayName: info.Name(),
		MimeType:    MimeJPEG,
		Size:        info.Size(),
		CreatedAt:   info.ModTime(),
	}
}

// fileWriter fsyncs on Close and records the written size
type fileWriter struct {
	f   *os.File
	img *models.PersistedImage
	n   int64
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.n += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write image bytes: %w: %v", models.ErrWrite, err)
	}
	return n, nil
}

func (w *fileWriter) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to sync image: %w: %v", models.ErrWrite, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w: %v", models.ErrWrite, err)
	}
	w.img.Size = w.n
	return nil
}
