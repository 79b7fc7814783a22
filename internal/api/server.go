// Package api exposes the booking backend over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/consultation-booking/internal/api/middleware"
	"github.com/consultation-booking/internal/config"
	"github.com/gin-gonic/gin"
)

const rateLimitSweepInterval = 5 * time.Minute

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger          *slog.Logger // For structured logging
	httpServer      *http.Server // Underlying HTTP server
	httpRouter      *gin.Engine  // Gin router instance
	limits          rateLimits
	shutdownTimeout time.Duration
}

// NewServer creates and configures a new HTTP server with the given handlers
func NewServer(log *slog.Logger, cfg *config.Config, handlers Handlers) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var limits rateLimits
	if rl := cfg.RateLimit; rl.Enabled {
		limits.global = middleware.NewRateLimiter("global", rl.GlobalRequests, rl.GlobalWindow, rl.IdleTimeout,
			"Too many requests from this IP, please try again later.", log)
		limits.strict = middleware.NewRateLimiter("payments", rl.StrictRequests, rl.StrictWindow, rl.IdleTimeout,
			"Too many payment requests, please try again later.", log)
	}

	httpRouter := gin.New()
	setupRouter(log, httpRouter, cfg.Server.AllowedOrigins, limits, handlers)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:          log,
		httpServer:      httpServer,
		httpRouter:      httpRouter,
		limits:          limits,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// SweepRateLimits forgets idle rate limit clients until ctx is done
func (s *Server) SweepRateLimits(ctx context.Context) {
	for _, limiter := range []*middleware.RateLimiter{s.limits.global, s.limits.strict} {
		if limiter != nil {
			go limiter.RunSweeper(ctx, rateLimitSweepInterval)
		}
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting at most the configured shutdown timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
