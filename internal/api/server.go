package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// NewRouter builds the gin engine. metrics may be nil to leave /metrics unrouted.
func NewRouter(h *Handler, metrics http.Handler, log logger.Logger) *gin.Engine {
	log = logger.OrNop(log)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	api := router.Group("/api")
	api.GET("/articles", h.ListArticles)
	api.GET("/articles/saved", h.SavedArticles)
	api.POST("/articles/save", h.SaveArticle)
	api.DELETE("/articles/save/:article_id", h.UnsaveArticle)
	api.POST("/scrape", h.TriggerScrape)
	api.GET("/status", h.Status)

	return router
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		log.DebugObj("http request", "http_request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	}
}

// Server runs the router until its context is cancelled.
type Server struct {
	srv *http.Server
	log logger.Logger
}

// NewServer wraps router in an http.Server listening on addr.
func NewServer(addr string, router http.Handler, log logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: logger.OrNop(log),
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.InfoObj("http server stopped", "addr", s.srv.Addr)
	return nil
}
