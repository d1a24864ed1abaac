// Package storage uploads challenge images to a blob store
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"fitchallenge/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MaxImageBytes is the largest accepted image upload
const MaxImageBytes = 5 << 20

// BlobStore stores an object under key and returns its public URL
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

var (
	ErrTooLarge       = errors.Errorf("image must be at most %d MB", MaxImageBytes>>20)
	ErrEmpty          = errors.New("image is empty")
	ErrNotAnImage     = errors.New("only JPEG, PNG, WebP and GIF images are allowed")
	allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
)

// Image is a validated upload ready for a BlobStore
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// ReadImage reads at most MaxImageBytes from r and checks the content, not the
// declared type, against the allowed image formats
func ReadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxImageBytes {
		return nil, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, ErrNotAnImage
	}
	return &Image{Data: data, ContentType: mt.String(), Ext: mt.Extension()}, nil
}

// Reader returns a fresh reader over the image bytes
func (img *Image) Reader() io.Reader {
	return bytes.NewReader(img.Data)
}

// ChallengeImageKey returns a new unique key for a challenge image
func ChallengeImageKey(challengeID, ext string) string {
	return path.Join("challenges", challengeID, uuid.NewString()+ext)
}

// New builds the BlobStore selected by STORAGE_DRIVER
func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3Storage(ctx, cfg.S3Region, cfg.S3Bucket)
	case "local", "":
		return NewLocalStorage(cfg.LocalStoragePath, cfg.PublicBaseURL)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
