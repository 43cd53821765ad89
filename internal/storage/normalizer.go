package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/nfnt/resize"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
)

// Images whose sides exceed this multiple of maxDimension are refused
// before decoding, since decoding allocates the full pixel buffer.
const decodeBudgetFactor = 3

// ImageNormalizer rejects non-images and oversize uploads, and shrinks
// images wider or taller than maxDimension before handing them on.
type ImageNormalizer struct {
	next         MediaStore
	maxDimension uint
	maxPixels    uint64
	maxBytes     int64
}

// NewImageNormalizer wraps next.
func NewImageNormalizer(next MediaStore, maxDimension int, maxBytes int64) *ImageNormalizer {
	side := uint64(maxDimension) * decodeBudgetFactor
	return &ImageNormalizer{
		next:         next,
		maxDimension: uint(maxDimension),
		maxPixels:    side * side,
		maxBytes:     maxBytes,
	}
}

func (n *ImageNormalizer) Upload(ctx context.Context, file Upload, folder string) (models.MediaRef, error) {
	if len(file.Data) == 0 {
		return models.MediaRef{}, fmt.Errorf("%w: %q is empty", ErrInvalidMedia, file.FileName)
	}
	if int64(len(file.Data)) > n.maxBytes {
		return models.MediaRef{}, fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidMedia, file.FileName, n.maxBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("%w: %q is not a supported image", ErrInvalidMedia, file.FileName)
	}
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > n.maxPixels {
		return models.MediaRef{}, fmt.Errorf("%w: %q is %dx%d, over the %d pixel limit",
			ErrInvalidMedia, file.FileName, cfg.Width, cfg.Height, n.maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("%w: %q is not a supported image", ErrInvalidMedia, file.FileName)
	}
	file.ContentType = "image/" + format

	if uint(img.Bounds().Dx()) > n.maxDimension || uint(img.Bounds().Dy()) > n.maxDimension {
		resized := resize.Thumbnail(n.maxDimension, n.maxDimension, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return models.MediaRef{}, fmt.Errorf("re-encode %q: %w", file.FileName, err)
		}
		file.Data = buf.Bytes()
		file.ContentType = "image/jpeg"
		file.FileName = replaceExt(file.FileName, ".jpg")
	}
	return n.next.Upload(ctx, file, folder)
}

func (n *ImageNormalizer) Release(ctx context.Context, fileName string) error {
	return n.next.Release(ctx, fileName)
}

func replaceExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}
