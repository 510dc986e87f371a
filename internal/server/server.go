package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/config"
	"github.com/GriffinCanCode/pagehook/internal/infrastructure/monitoring"
)

// Options configures the bridge server.
type Options struct {
	Addr      string
	RateLimit config.RateLimitConfig
	Metrics   *monitoring.Metrics
	// Gatherer backs GET /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server is the local HTTP and websocket surface the native shell drives.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	pages    *Manager
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

// New builds the router over pages.
func New(pages *Manager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		pages:    pages,
		metrics:  opts.Metrics,
		gatherer: gatherer,
		log:      logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.log))
	router.Use(monitoring.Middleware(opts.Metrics))
	router.Use(localCORS())
	if opts.RateLimit.Enabled {
		router.Use(rateLimit(opts.RateLimit))
	}
	s.routes(router)

	s.router = router
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	pages := r.Group("/pages")
	pages.POST("", s.createPage)
	pages.GET("/:id", s.getPage)
	pages.DELETE("/:id", s.closePage)
	pages.POST("/:id/click", s.click)
	pages.POST("/:id/drag", s.drag)
	pages.POST("/:id/mutations", s.mutate)
	pages.POST("/:id/change", s.change)
	pages.POST("/:id/script", s.script)
	pages.GET("/:id/ws", s.connect)
	pages.GET("/:id/blobs/:ref", s.blob)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Pages returns the page manager.
func (s *Server) Pages() *Manager { return s.pages }

// ListenAndServe serves until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("bridge server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every page.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.pages.CloseAll()
	s.log.Info("bridge server stopped")
	return err
}
