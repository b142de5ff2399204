// Package health exposes the liveness endpoint uptime monitors ping.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Status is a snapshot of the bot for the health endpoint
type Status struct {
	BotReady     bool
	LiveSessions int
}

// StatusFunc reports the current status
type StatusFunc func() Status

type healthResponse struct {
	Status       string `json:"status"`
	BotStatus    string `json:"bot_status"`
	LiveSessions int    `json:"live_sessions"`
}

// NewRouter builds the health routes
func NewRouter(status StatusFunc, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), loggingMiddleware(logger))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Bot is alive!")
	})
	r.GET("/health", func(c *gin.Context) {
		s := status()
		botStatus := "connecting"
		if s.BotReady {
			botStatus = "ready"
		}
		c.JSON(http.StatusOK, healthResponse{
			Status:       "ok",
			BotStatus:    botStatus,
			LiveSessions: s.LiveSessions,
		})
	})
	return r
}

// loggingMiddleware logs each request at debug level; uptime pingers are noisy
func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug(fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL.Path),
			"duration", time.Since(start),
			slog.Group("response",
				"status_code", c.Writer.Status(),
				"body_size", c.Writer.Size()))
	}
}

// Server serves the health routes until its context is cancelled
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a health server listening on addr
func NewServer(addr string, status StatusFunc, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(status, logger),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
	}
}

// Run listens until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("health server listen: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "health server listening", "addr", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("health server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("health server shutdown failed", tint.Err(err))
		return err
	}
	s.logger.Info("health server stopped")
	return nil
}
