// Package client - HTTP client for the classification API.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/server"
)

const (
	reqTimeout   = time.Second * 30
	classifyPath = "/api/v1/classify"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status   int
	Response server.ErrorResponse
}

func (e *APIError) Error() string {
	return "classify api: " + http.StatusText(e.Status) + ": " + e.Response.Error
}

// ClassifyClient interacts with the classification HTTP API.
type ClassifyClient struct {
	*resty.Client
}

// NewClassifyClient returns an initialized classification HTTP client.
//
// Arguments:
//   - baseURL: The server root, such as "http://localhost:8080".
//   - logger: Receives resty diagnostics.
//
// Returns:
//   - *ClassifyClient: The client. Requests are not retried: every accepted classify POST
//     stores a copy of the image on the server.
func NewClassifyClient(baseURL string, logger *zap.Logger) *ClassifyClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := resty.New().
		SetLogger(logger.Sugar()).
		SetBaseURL(baseURL).
		SetTimeout(reqTimeout).
		SetRetryCount(0)

	return &ClassifyClient{Client: r}
}

// ClassifyJPEG posts a JPEG frame as a webcam data URI.
func (c *ClassifyClient) ClassifyJPEG(ctx context.Context, jpeg []byte) (*server.ClassifyResponse, error) {
	return c.ClassifyDataURI(ctx, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(jpeg))
}

// ClassifyDataURI calls POST /api/v1/classify with the webcam_image form field.
func (c *ClassifyClient) ClassifyDataURI(ctx context.Context, dataURI string) (*server.ClassifyResponse, error) {
	r := c.R().SetContext(ctx).SetFormData(map[string]string{server.FieldWebcam: dataURI})
	return c.do(r)
}

// ClassifyFile calls POST /api/v1/classify with a multipart file upload.
func (c *ClassifyClient) ClassifyFile(ctx context.Context, filename string, data []byte) (*server.ClassifyResponse, error) {
	r := c.R().SetContext(ctx).SetFileReader(server.FieldFile, filename, bytes.NewReader(data))
	return c.do(r)
}

func (c *ClassifyClient) do(r *resty.Request) (*server.ClassifyResponse, error) {
	var result server.ClassifyResponse
	var failure server.ErrorResponse

	resp, err := r.SetResult(&result).SetError(&failure).Post(classifyPath)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't connect with classify api")
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Response: failure}
	}
	return &result, nil
}
