package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/images"
	"github.com/nvr-ai/go-classify/inference"
	"github.com/nvr-ai/go-classify/logger"
	"github.com/nvr-ai/go-classify/models/postprocess"
	"github.com/nvr-ai/go-classify/storage"
)

// Form fields accepted by the classify endpoints.
const (
	FieldFile   = "file"
	FieldWebcam = "webcam_image"
)

var (
	errNoImage      = errors.New("no image supplied: send a file field or a webcam_image field")
	errNoPrediction = errors.New("classifier produced no prediction")
	errTooLarge     = errors.New("image too large")
)

// Error kinds reported by the presentation layer itself.
const (
	kindBadRequest = "bad_request"
	kindTooLarge   = "too_large"
	kindStorage    = "storage"
)

// ClassifyResponse is the JSON body of a successful classification.
type ClassifyResponse struct {
	Predictions []PredictionResponse `json:"predictions"`
	ImageURL    string               `json:"image_url"`
}

// PredictionResponse is one ranked label.
type PredictionResponse struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// ErrorResponse is the JSON body of a failed classification.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type pageData struct {
	Predictions []postprocess.Prediction
	ImageURL    string
	Error       string
}

// requestError carries the HTTP status chosen for a failure.
type requestError struct {
	status int
	kind   string
	err    error
}

func (s *Server) index(c *gin.Context) {
	s.renderPage(c, http.StatusOK, pageData{})
}

func (s *Server) classifyPage(c *gin.Context) {
	result, url, reqErr := s.classify(c)
	if reqErr != nil {
		s.renderPage(c, reqErr.status, pageData{Error: reqErr.err.Error()})
		return
	}
	s.renderPage(c, http.StatusOK, pageData{Predictions: result.Predictions, ImageURL: url})
}

func (s *Server) classifyJSON(c *gin.Context) {
	result, url, reqErr := s.classify(c)
	if reqErr != nil {
		c.JSON(reqErr.status, ErrorResponse{Error: reqErr.err.Error(), Kind: reqErr.kind})
		return
	}

	resp := ClassifyResponse{ImageURL: url, Predictions: make([]PredictionResponse, 0, len(result.Predictions))}
	for _, p := range result.Predictions {
		resp.Predictions = append(resp.Predictions, PredictionResponse{Label: p.Label, Confidence: p.Confidence})
	}
	c.JSON(http.StatusOK, resp)
}

// classify reads the request image, decodes it, stores the accepted copy and ranks it.
// Nothing is stored for an image that fails to decode.
func (s *Server) classify(c *gin.Context) (*inference.Result, string, *requestError) {
	start := time.Now()
	ctx, span := s.tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
	defer span.End()
	log := logger.WithSpan(ctx, s.logger)

	input, source, err := s.readInput(c)
	if errors.Is(err, errTooLarge) {
		s.metrics.observe(source, kindTooLarge, time.Since(start).Seconds())
		return nil, "", &requestError{status: http.StatusRequestEntityTooLarge, kind: kindTooLarge, err: err}
	}
	if err != nil {
		s.metrics.observe(source, kindBadRequest, time.Since(start).Seconds())
		return nil, "", &requestError{status: http.StatusBadRequest, kind: kindBadRequest, err: err}
	}

	grid, format, err := s.engine.Decode(input)
	if err != nil {
		log.Warn("rejected image", zap.String("source", source), zap.Error(err))
		s.metrics.observe(source, inference.KindDecode.String(), time.Since(start).Seconds())
		return nil, "", &requestError{status: http.StatusBadRequest, kind: inference.KindDecode.String(), err: err}
	}

	obj, err := s.store.Save(ctx, grid)
	if err != nil {
		log.Error("failed to store image", zap.Error(err))
		s.metrics.observe(source, kindStorage, time.Since(start).Seconds())
		return nil, "", &requestError{status: http.StatusInternalServerError, kind: kindStorage, err: err}
	}
	s.metrics.stored.Inc()
	log.Debug("stored image", zap.String("name", obj.Name), zap.String("format", string(format)))

	result, err := s.engine.ClassifyGrid(ctx, grid, obj.URL)
	if err != nil {
		kind := inference.KindOf(err)
		s.metrics.observe(source, kind.String(), time.Since(start).Seconds())
		return nil, "", &requestError{status: statusFor(kind), kind: kind.String(), err: err}
	}
	if _, ok := result.Top(); !ok {
		s.metrics.observe(source, inference.KindInference.String(), time.Since(start).Seconds())
		return nil, "", &requestError{status: http.StatusInternalServerError, kind: inference.KindInference.String(), err: errNoPrediction}
	}

	s.metrics.observe(source, "ok", time.Since(start).Seconds())
	return result, obj.URL, nil
}

// readInput prefers an uploaded file with a non-empty name and falls back to the
// webcam data URI field. A body over the upload limit yields errTooLarge.
func (s *Server) readInput(c *gin.Context) (images.RawInput, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(s.cfg.MaxUploadBytes)*2)

	fh, err := c.FormFile(FieldFile)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return nil, "none", errors.Wrapf(errTooLarge, "request body exceeds %d bytes", maxErr.Limit)
	}
	if err == nil && fh.Filename != "" {
		if fh.Size > int64(s.cfg.MaxUploadBytes) {
			return nil, FieldFile, errors.Wrapf(errTooLarge, "max %d bytes", s.cfg.MaxUploadBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, FieldFile, errors.Wrap(err, "failed to open uploaded file")
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, FieldFile, errors.Wrap(err, "failed to read uploaded file")
		}
		return images.FileBytes{Data: data, Filename: fh.Filename}, FieldFile, nil
	}

	if uri, ok := c.GetPostForm(FieldWebcam); ok {
		return images.NewInlineDataURI(uri), FieldWebcam, nil
	}
	return nil, "none", errNoImage
}

func (s *Server) static(c *gin.Context) {
	rc, err := s.store.Open(c.Request.Context(), c.Param("name"))
	if errors.Is(err, storage.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to open stored image", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "image/jpeg", rc, nil)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "labels": s.engine.Labels().Len()})
}

func (s *Server) renderPage(c *gin.Context, status int, data pageData) {
	c.HTML(status, pageName, data)
}

// statusFor maps an error kind to an HTTP status. Only bad input is the client's fault.
func statusFor(kind inference.Kind) int {
	if kind == inference.KindDecode {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
