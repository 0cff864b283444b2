package images

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultMaxBytes is the default cap on decoded image payloads (10 MiB).
const DefaultMaxBytes = 10 << 20

// DefaultMaxPixels is the default cap on the decoded pixel count (25 megapixels).
const DefaultMaxPixels = 25_000_000

// Decoder turns raw inputs into pixel grids. It holds no mutable state and is safe
// for concurrent use.
type Decoder struct {
	// MaxBytes caps the size of the encoded image; zero or negative disables the cap.
	MaxBytes int
	// MaxPixels caps width*height read from the image header before any pixel is
	// decoded; zero or negative disables the cap.
	MaxPixels int
}

// NewDecoder creates a decoder with the given payload cap and the default pixel cap.
//
// Arguments:
//   - maxBytes: The largest accepted encoded payload in bytes, <= 0 for no limit.
//
// Returns:
//   - *Decoder: The decoder.
func NewDecoder(maxBytes int) *Decoder {
	return &Decoder{MaxBytes: maxBytes, MaxPixels: DefaultMaxPixels}
}

// WithMaxPixels returns a copy of the decoder with a different pixel cap.
func (d *Decoder) WithMaxPixels(maxPixels int) *Decoder {
	out := *d
	out.MaxPixels = maxPixels
	return &out
}

// Decode turns a raw input into a pixel grid.
//
// Arguments:
//   - input: A FileBytes or InlineDataURI value.
//
// Returns:
//   - *PixelGrid: The decoded RGB grid.
//   - ImageFormat: The container format that was decoded.
//   - error: A *DecodeError if the input cannot be read as an image.
func (d *Decoder) Decode(input RawInput) (*PixelGrid, ImageFormat, error) {
	switch in := input.(type) {
	case FileBytes:
		return d.decodeBytes(in.Data)
	case *FileBytes:
		if in == nil {
			return nil, "", newDecodeError("no image supplied", nil)
		}
		return d.decodeBytes(in.Data)
	case InlineDataURI:
		return d.decodeDataURI(in.Payload)
	case *InlineDataURI:
		if in == nil {
			return nil, "", newDecodeError("no image supplied", nil)
		}
		return d.decodeDataURI(in.Payload)
	default:
		return nil, "", newDecodeErrorf(nil, "unsupported input type %T", input)
	}
}

// decodeDataURI isolates the base64 payload after the first comma and decodes it.
func (d *Decoder) decodeDataURI(uri string) (*PixelGrid, ImageFormat, error) {
	_, payload, found := strings.Cut(uri, ",")
	if !found {
		return nil, "", newDecodeError("data URI has no ',' separator", nil)
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", newDecodeError("data URI payload is empty", nil)
	}

	if d.MaxBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > d.MaxBytes+2 {
		return nil, "", newDecodeErrorf(nil, "image larger than %d bytes", d.MaxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the trailing padding.
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(payload)
		if rawErr != nil {
			return nil, "", newDecodeError("malformed base64 payload", err)
		}
	}

	return d.decodeBytes(data)
}

// decodeBytes sniffs and decodes an encoded image container.
func (d *Decoder) decodeBytes(data []byte) (*PixelGrid, ImageFormat, error) {
	if len(data) == 0 {
		return nil, "", newDecodeError("image is empty", nil)
	}
	if d.MaxBytes > 0 && len(data) > d.MaxBytes {
		return nil, "", newDecodeErrorf(nil, "image larger than %d bytes", d.MaxBytes)
	}

	format, mime, ok := DetectFormat(data)
	if !ok {
		return nil, "", newDecodeErrorf(nil, "unsupported content type %q", mime)
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", newDecodeErrorf(err, "invalid %s image header", format)
	}
	if d.MaxPixels > 0 && int64(header.Width)*int64(header.Height) > int64(d.MaxPixels) {
		return nil, "", newDecodeErrorf(nil, "image is %dx%d, larger than %d pixels",
			header.Width, header.Height, d.MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", newDecodeErrorf(err, "invalid %s image", format)
	}

	grid := FromImage(img)
	if err := grid.Validate(); err != nil {
		return nil, "", err
	}

	return grid, format, nil
}
