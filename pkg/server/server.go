// Package server exposes the frame samplers over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/vidsample/pkg/adapters/logger"
	"github.com/user/vidsample/pkg/config"
	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/vidsample"
)

const shutdownTimeout = 10 * time.Second

// Server represents the HTTP API server.
type Server struct {
	router   *gin.Engine
	cfg      config.Config
	loader   *vidsample.Loader
	opener   ports.BackendOpener
	renderer ports.Renderer

	// base is handed to sessions, log carries the server component.
	base ports.Logger
	log  ports.Logger
}

// New creates a server. The renderer is only used for contact sheets. opts
// are applied after the options implied by cfg.
func New(cfg config.Config, opener ports.BackendOpener, renderer ports.Renderer, log ports.Logger, opts ...vidsample.Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	if log == nil {
		log = logger.NewNoop()
	}

	s := &Server{
		router:   gin.New(),
		cfg:      cfg,
		loader:   vidsample.New(opener, append(cfg.ServerLoaderOptions(log), opts...)...),
		opener:   opener,
		renderer: renderer,
		base:     log,
		log:      log.WithComponent("server"),
	}
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.log))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/uniform", s.handleUniform)
		v1.POST("/frames", s.handleFrames)
		v1.POST("/probe", s.handleProbe)
	}
}

// Handler returns the gin router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("Listening on %s", s.cfg.Server.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(log ports.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("%s %s %d in %d ms", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Milliseconds())
	}
}
