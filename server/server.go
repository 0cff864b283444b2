// Package server - HTTP presentation layer for the classifier.
//
// It accepts an uploaded file or a camera data URI, stores the accepted image and returns
// the top predictions as an HTML page (POST /) or JSON (POST /api/v1/classify).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/config"
	"github.com/nvr-ai/go-classify/inference"
	"github.com/nvr-ai/go-classify/storage"
)

// StaticPrefix is the URL path stored images are served under.
const StaticPrefix = "/static"

const shutdownTimeout = 10 * time.Second

// Server serves the classification endpoints.
type Server struct {
	cfg     config.ServerConfig
	engine  inference.Engine
	store   storage.Store
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	router  *gin.Engine
}

// New creates the server and its routes.
//
// Arguments:
//   - cfg: The HTTP settings.
//   - engine: The classification engine shared by every request.
//   - store: Where accepted images are kept.
//   - logger: The logger.
//
// Returns:
//   - *Server: The server.
func New(cfg config.ServerConfig, engine inference.Engine, store storage.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		engine:  engine,
		store:   store,
		logger:  logger,
		metrics: NewMetrics(),
		tracer:  otel.Tracer("github.com/nvr-ai/go-classify/server"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.MaxMultipartMemory = int64(cfg.MaxUploadBytes)
	r.SetHTMLTemplate(pageTemplate)

	r.GET("/", s.index)
	r.POST("/", s.classifyPage)
	r.GET(StaticPrefix+"/:name", s.static)
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	api.POST("/classify", s.classifyJSON)

	s.router = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	return errors.Wrap(srv.Shutdown(shutdownCtx), "http server shutdown failed")
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
