package images

import (
	"image"
	"image/color"
	"image/draw"
)

// PixelGrid is a decoded image held as tightly packed 8-bit RGB triplets.
//
// It implements image.Image so it can be handed to resamplers and encoders directly.
type PixelGrid struct {
	// Width is the number of columns.
	Width int
	// Height is the number of rows.
	Height int
	// Pix holds Width*Height*3 bytes in row-major RGB order.
	Pix []uint8
}

// NewPixelGrid allocates a black grid of the given dimensions.
//
// Arguments:
//   - width: The number of columns.
//   - height: The number of rows.
//
// Returns:
//   - *PixelGrid: The allocated grid.
func NewPixelGrid(width, height int) *PixelGrid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &PixelGrid{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// FromImage converts any decoded image into a PixelGrid, dropping the alpha channel.
//
// Arguments:
//   - img: The decoded image.
//
// Returns:
//   - *PixelGrid: A grid with the same dimensions as img.
func FromImage(img image.Image) *PixelGrid {
	bounds := img.Bounds()
	grid := NewPixelGrid(bounds.Dx(), bounds.Dy())

	// Normalize to non-premultiplied RGBA first so every source color model,
	// paletted and YCbCr included, goes through the same conversion.
	rgba, ok := img.(*image.NRGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewNRGBA(image.Rect(0, 0, grid.Width, grid.Height))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	for y := 0; y < grid.Height; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+grid.Width*4]
		dst := grid.Pix[y*grid.Width*3 : (y+1)*grid.Width*3]
		for x := 0; x < grid.Width; x++ {
			dst[x*3+0] = src[x*4+0]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}

	return grid
}

// Validate checks the grid invariants: positive dimensions and a matching buffer.
//
// Returns:
//   - error: A DecodeError describing the violation, nil if the grid is well formed.
func (g *PixelGrid) Validate() error {
	if g == nil {
		return newDecodeError("pixel grid is nil", nil)
	}
	if g.Width <= 0 || g.Height <= 0 {
		return newDecodeErrorf(nil, "invalid pixel grid dimensions: %dx%d", g.Width, g.Height)
	}
	if len(g.Pix) != g.Width*g.Height*3 {
		return newDecodeErrorf(nil, "pixel grid holds %d bytes, expected %d", len(g.Pix), g.Width*g.Height*3)
	}
	return nil
}

// ColorModel implements image.Image.
func (g *PixelGrid) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (g *PixelGrid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// At implements image.Image.
func (g *PixelGrid) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return color.RGBA{}
	}
	i := (y*g.Width + x) * 3
	return color.RGBA{R: g.Pix[i], G: g.Pix[i+1], B: g.Pix[i+2], A: 0xff}
}

// RGBA copies the grid into an opaque *image.RGBA.
//
// Returns:
//   - *image.RGBA: A new image backed by its own buffer.
func (g *PixelGrid) RGBA() *image.RGBA {
	dst := image.NewRGBA(g.Bounds())
	for i, j := 0, 0; i < len(g.Pix); i, j = i+3, j+4 {
		dst.Pix[j+0] = g.Pix[i+0]
		dst.Pix[j+1] = g.Pix[i+1]
		dst.Pix[j+2] = g.Pix[i+2]
		dst.Pix[j+3] = 0xff
	}
	return dst
}
