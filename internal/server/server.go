// Package server exposes the reconciliation engine over HTTP.
//
// All endpoints are read-side: they compute over stored records and never
// mutate them, so the same request always returns the same answer for the
// same stored data and settings.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"vending-reconciliation-service/internal/engine"
	"vending-reconciliation-service/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Config controls the HTTP server
type Config struct {
	Addr             string
	AllowedOrigins   []string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
	TrustedProxies   []string
	EnableRequestLog bool
}

// DefaultConfig returns server defaults suitable for local use
func DefaultConfig() Config {
	return Config{
		Addr:             ":8080",
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     60 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		EnableRequestLog: true,
	}
}

// Server wires the engine and its collaborators behind a gin router
type Server struct {
	cfg      Config
	eng      *engine.Engine
	log      logger.Logger
	notifier Notifier
	router   *gin.Engine
	httpd    *http.Server
}

// Option customizes the server during construction
type Option func(*Server)

// WithNotifier installs the shortage alert handler dependencies
func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		s.notifier = n
	}
}

// NewServer builds the router and registers all routes
func NewServer(cfg Config, eng *engine.Engine, log logger.Logger, opts ...Option) (*Server, error) {
	if eng == nil {
		return nil, &configError{"engine is required"}
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}

	s := &Server{
		cfg: cfg,
		eng: eng,
		log: log.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	if cfg.EnableRequestLog {
		r.Use(requestLogMiddleware(s.log))
	}
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	sales := r.Group("/sales")
	{
		sales.GET("/reconciliation", s.handleReconciliation)
		sales.GET("/reconciliation/export", s.handleReconciliationExport)
		sales.POST("/reconciliation/notify", s.handleReconciliationNotify)
		sales.GET("/daily-stats", s.handleDailyStats)
		sales.GET("/top-machines", s.handleTopMachines)
		sales.GET("/summary/by-machine", s.handleSummaryByMachine)
		sales.GET("/summary/by-date", s.handleSummaryByDate)
		sales.GET("/summary/by-operator", s.handleSummaryByOperator)
	}

	s.router = r
	s.httpd = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Router exposes the underlying handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then drains gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("http server listening")
		if err := s.httpd.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("http server draining")
	if err := s.httpd.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type configError struct{ msg string }

func (e *configError) Error() string { return e.msg }

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware attaches a correlation ID to each request, reusing
// the caller's when present.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

func requestLogMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logger.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"request_id": c.GetString("request_id"),
		}
		entry := log.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AddAllowMethods(http.MethodGet, http.MethodPost, http.MethodOptions)
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", requestIDHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", requestIDHeader)

	cleaned := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = cleaned
	}
	return cfg
}
