package images

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatGIF  ImageFormat = "gif"
	FormatBMP  ImageFormat = "bmp"
	FormatTIFF ImageFormat = "tiff"
	FormatWebP ImageFormat = "webp"
)

var mimeFormats = map[string]ImageFormat{
	"image/jpeg": FormatJPEG,
	"image/png":  FormatPNG,
	"image/gif":  FormatGIF,
	"image/bmp":  FormatBMP,
	"image/tiff": FormatTIFF,
	"image/webp": FormatWebP,
}

// DetectFormat sniffs the content of b and reports the image format it holds.
//
// Arguments:
//   - b: The raw bytes to inspect.
//
// Returns:
//   - ImageFormat: The detected format.
//   - string: The detected mime type, useful in error messages.
//   - bool: False when the content is not one of the supported image formats.
func DetectFormat(b []byte) (ImageFormat, string, bool) {
	mime := strings.Split(mimetype.Detect(b).String(), ";")[0]
	format, ok := mimeFormats[mime]
	return format, mime, ok
}
