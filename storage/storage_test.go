package storage

import (
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-classify/config"
	"github.com/nvr-ai/go-classify/images"
)

func solidGrid(w, h int, r, g, b uint8) *images.PixelGrid {
	grid := images.NewPixelGrid(w, h)
	for i := 0; i < w*h; i++ {
		grid.Pix[i*3], grid.Pix[i*3+1], grid.Pix[i*3+2] = r, g, b
	}
	return grid
}

func TestNewName(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := NewName()
		assert.True(t, ValidName(name), name)
		assert.False(t, seen[name])
		seen[name] = true
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "0123456789abcdef0123456789abcdef.jpg", want: true},
		{name: "0123456789ABCDEF0123456789abcdef.jpg", want: false},
		{name: "../../etc/passwd", want: false},
		{name: "0123456789abcdef0123456789abcdef.png", want: false},
		{name: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.name))
		})
	}
}

func TestLocalSaveAndOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "static")
	store, err := NewLocal(dir, "/static", nil)
	require.NoError(t, err)

	obj, err := store.Save(context.Background(), solidGrid(16, 8, 200, 10, 10))
	require.NoError(t, err)
	assert.True(t, ValidName(obj.Name))
	assert.Equal(t, "/static/"+obj.Name, obj.URL)
	assert.Positive(t, obj.Size)

	info, err := os.Stat(filepath.Join(dir, obj.Name))
	require.NoError(t, err)
	assert.Equal(t, obj.Size, info.Size())

	rc, err := store.Open(context.Background(), obj.Name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestLocalOpenNotFound(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/static", nil)
	require.NoError(t, err)

	_, err = store.Open(context.Background(), NewName())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Open(context.Background(), "../secret.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalSaveRejectsMalformedGrid(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/static", nil)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), &images.PixelGrid{Width: 2, Height: 2})
	var decodeErr *images.DecodeError
	assert.ErrorAs(t, err, &decodeErr)

	_, err = NewLocal("", "/static", nil)
	assert.Error(t, err)
}

func TestNewMinioRequiresEndpoint(t *testing.T) {
	_, err := NewMinioClientAndInitBucket(context.Background(), config.MinioConfig{Bucket: "x"}, nil)
	assert.Error(t, err)
}
