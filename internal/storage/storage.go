package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
)

// Folders used when uploading listing media.
const (
	FolderThumbnails = "thumbnails"
	FolderPhotos     = "photos"
)

var (
	// ErrUpload wraps every transport or provider failure.
	ErrUpload = errors.New("media upload failed")
	// ErrInvalidMedia is returned for uploads that are not acceptable images.
	ErrInvalidMedia = errors.New("invalid media")
)

// Upload is a single file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// MediaStore stores listing images and hands back a public reference.
type MediaStore interface {
	Upload(ctx context.Context, file Upload, folder string) (models.MediaRef, error)
	Release(ctx context.Context, fileName string) error
}

// NewMediaStore builds the backend selected by cfg.MediaBackend, wrapped in
// an ImageNormalizer.
func NewMediaStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (MediaStore, error) {
	var backend MediaStore
	var err error
	switch cfg.MediaBackend {
	case config.MediaBackendS3:
		backend, err = NewS3Storage(ctx, cfg, logger)
	case config.MediaBackendMinio:
		backend, err = NewMinioStorage(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unsupported media backend %q", cfg.MediaBackend)
	}
	if err != nil {
		return nil, err
	}
	return NewImageNormalizer(backend, cfg.ImageMaxDimension, int64(cfg.ImageMaxSizeMB)*1024*1024), nil
}

// ReleaseBestEffort releases every ref, logging failures instead of
// returning them.
func ReleaseBestEffort(ctx context.Context, store MediaStore, logger *zap.Logger, refs ...models.MediaRef) {
	for _, ref := range refs {
		if ref.FileName == "" {
			continue
		}
		if err := store.Release(ctx, ref.FileName); err != nil {
			logger.Warn("Failed to release media, object may be orphaned",
				zap.String("file_name", ref.FileName), zap.Error(err))
		}
	}
}

var knownExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// objectKey returns "<folder>/<uuid><ext>". The extension comes from the
// original file name, falling back to the content type.
func objectKey(folder, fileName, contentType string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = knownExtensions[contentType]
	}
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("%s/%s%s", strings.Trim(folder, "/"), uuid.NewString(), ext)
}
