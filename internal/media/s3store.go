package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"random-photo-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// LinkTTL is how long presigned image links stay valid
const LinkTTL = 5 * time.Minute

// Catalog is the metadata side of the S3 store
type Catalog interface {
	Create(ctx context.Context, img *models.PersistedImage) error
	GetVisible(ctx context.Context, id string) (*models.PersistedImage, error)
	ListVisible(ctx context.Context) ([]*models.PersistedImage, error)
	Publish(ctx context.Context, id string, size int64) error
	DeletePending(ctx context.Context, id string) error
}

// ObjectAPI is the subset of the S3 client used by the store
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner creates presigned GET requests
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps image bytes in S3 and the pending flag in the catalog table.
// An object may exist while its row is pending; readers only go through the catalog.
type S3Store struct {
	catalog   Catalog
	objects   ObjectAPI
	presigner Presigner
	bucket    string
}

// NewS3Store creates a new S3-backed store
func NewS3Store(catalog Catalog, client *s3.Client, bucket string) *S3Store {
	return &S3Store{
		catalog:   catalog,
		objects:   client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
	}
}

// RequiresPermission is false: writes go to app-owned storage
func (s *S3Store) RequiresPermission() bool {
	return false
}

func (s *S3Store) Insert(ctx context.Context, displayName, mimeType string) (*models.PersistedImage, error) {
	img := &models.PersistedImage{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		MimeType:    mimeType,
		Pending:     true,
		CreatedAt:   time.Now(),
	}

	if err := s.catalog.Create(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to insert image: %w: %v", models.ErrWrite, err)
	}
	return img, nil
}

func (s *S3Store) OpenWriter(ctx context.Context, img *models.PersistedImage) (io.WriteCloser, error) {
	return &objectWriter{ctx: ctx, store: s, img: img}, nil
}

func (s *S3Store) Publish(ctx context.Context, img *models.PersistedImage) error {
	if err := s.catalog.Publish(ctx, img.ID, img.Size); err != nil {
		return fmt.Errorf("failed to publish image: %w: %v", models.ErrWrite, err)
	}
	img.Pending = false
	return nil
}

func (s *S3Store) Abort(ctx context.Context, img *models.PersistedImage) error {
	if err := s.catalog.DeletePending(ctx, img.ID); err != nil {
		return err
	}
	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(img)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image object: %w", err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]*models.PersistedImage, error) {
	return s.catalog.ListVisible(ctx)
}

func (s *S3Store) Get(ctx context.Context, id string) (*models.PersistedImage, error) {
	return s.getVisible(ctx, id)
}

func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	img, err := s.getVisible(ctx, id)
	if err != nil {
		return nil, err
	}

	out, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(img)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get image object: %w", err)
	}
	return out.Body, nil
}

// Link returns a presigned GET URL for a visible image
func (s *S3Store) Link(ctx context.Context, id string) (string, error) {
	img, err := s.getVisible(ctx, id)
	if err != nil {
		return "", err
	}

	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(img)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = LinkTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}
	return request.URL, nil
}

// getVisible looks up a published image. Ids are UUIDs, anything else is unknown.
func (s *S3Store) getVisible(ctx context.Context, id string) (*models.PersistedImage, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("image %s: %w", id, models.ErrNotFound)
	}
	return s.catalog.GetVisible(ctx, id)
}

// objectKey is {image_id}/{display_name}
func objectKey(img *models.PersistedImage) string {
	return fmt.Sprintf("%s/%s", img.ID, img.DisplayName)
}

// objectWriter buffers the stream and uploads it on Close
type objectWriter struct {
	ctx   context.Context
	store *S3Store
	img   *models.PersistedImage
	buf   bytes.Buffer
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	size := int64(w.buf.Len())
	_, err := w.store.objects.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.store.bucket),
		Key:           aws.String(objectKey(w.img)),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentType:   aws.String(w.img.MimeType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("failed to upload image: %w: %v", models.ErrWrite, err)
	}
	w.img.Size = size
	return nil
}
