package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/images"
)

// Local stores images in a directory served by the HTTP layer under URLPrefix.
type Local struct {
	dir       string
	urlPrefix string
	logger    *zap.Logger
}

// NewLocal creates the directory if needed.
//
// Arguments:
//   - dir: The directory holding the images.
//   - urlPrefix: The URL path the directory is served under, such as "/static".
//   - logger: The logger.
//
// Returns:
//   - *Local: The store.
//   - error: An error if the directory cannot be created.
func NewLocal(dir, urlPrefix string, logger *zap.Logger) (*Local, error) {
	if dir == "" {
		return nil, errors.New("storage directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create storage directory %s", dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{dir: dir, urlPrefix: urlPrefix, logger: logger}, nil
}

// Save writes the grid to "<dir>/<uuid hex>.jpg".
func (l *Local) Save(ctx context.Context, grid *images.PixelGrid) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	data, err := EncodeJPEG(grid)
	if err != nil {
		return Object{}, err
	}

	name := NewName()
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		l.logger.Error("failed to write image", zap.String("name", name), zap.Error(err))
		return Object{}, errors.Wrap(err, "failed to write image")
	}

	return Object{Name: name, URL: path.Join("/", l.urlPrefix, name), Size: int64(len(data))}, nil
}

// Open opens a stored image.
func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(l.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	return f, nil
}
