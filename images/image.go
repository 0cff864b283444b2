// Package images - Raw image inputs and their decoding into pixel grids.
package images

import "strings"

// RawInput is the image payload handed over by a transport layer.
//
// It is a closed union: the only implementations are FileBytes and InlineDataURI.
type RawInput interface {
	isRawInput()
}

// FileBytes is an uploaded image file.
type FileBytes struct {
	// Data is the raw content of the file.
	Data []byte `json:"data" yaml:"data"`
	// Filename is the name declared by the client, informational only.
	Filename string `json:"filename" yaml:"filename"`
}

func (FileBytes) isRawInput() {}

// InlineDataURI is an image embedded in a data URI, such as a camera frame captured
// in the browser with canvas.toDataURL().
type InlineDataURI struct {
	// MediaType is the declared mime type (e.g. "image/png"), informational only.
	MediaType string `json:"media_type" yaml:"media_type"`
	// Payload is the data URI as received: "data:<mime>;base64,<payload>".
	Payload string `json:"payload" yaml:"payload"`
}

func (InlineDataURI) isRawInput() {}

// NewInlineDataURI wraps a data URI string and extracts its declared media type.
//
// Arguments:
//   - raw: The data URI as received from the client.
//
// Returns:
//   - InlineDataURI: The wrapped input. MediaType is empty when the header is missing.
func NewInlineDataURI(raw string) InlineDataURI {
	in := InlineDataURI{Payload: raw}

	header, _, found := strings.Cut(raw, ",")
	if !found || !strings.HasPrefix(header, "data:") {
		return in
	}
	mediaType, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	in.MediaType = mediaType

	return in
}
