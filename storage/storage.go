// Package storage keeps a JPEG copy of every accepted image.
package storage

import (
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-classify/images"
)

// JPEGQuality is the quality used when re-encoding stored images.
const JPEGQuality = 90

// ErrNotFound is returned by Open for unknown or malformed names.
var ErrNotFound = errors.New("stored image not found")

var namePattern = regexp.MustCompile(`^[0-9a-f]{32}\.jpg$`)

// Object describes a stored image.
type Object struct {
	// Name is the generated file name, "<uuid hex>.jpg".
	Name string `json:"name"`
	// URL is where clients can fetch the image.
	URL string `json:"url"`
	// Size is the encoded size in bytes.
	Size int64 `json:"size"`
}

// Store persists accepted images.
type Store interface {
	// Save encodes the grid as JPEG under a fresh name.
	Save(ctx context.Context, grid *images.PixelGrid) (Object, error)
	// Open returns the stored JPEG. Unknown names yield ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// NewName returns a fresh "<uuid hex>.jpg" name.
func NewName() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "") + ".jpg"
}

// ValidName reports whether name could have been produced by NewName.
// Names are checked before touching a backend so request paths can never escape it.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// EncodeJPEG re-encodes a decoded grid.
func EncodeJPEG(grid *images.PixelGrid) ([]byte, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, grid.RGBA(), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, errors.Wrap(err, "failed to encode jpeg")
	}
	return buf.Bytes(), nil
}
