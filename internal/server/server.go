// Package server exposes the session store and aggregation engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/balkashynov/tasktime/internal/aggregate"
	"github.com/balkashynov/tasktime/internal/config"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/models"
)

// SessionService is the subset of the session store the handlers use.
type SessionService interface {
	Start(ctx context.Context, taskID, userID string) (*models.TimeSession, error)
	Stop(ctx context.Context, taskID, userID string) (*models.TimeSession, error)
	ListForTask(ctx context.Context, taskID string) ([]models.TimeSession, error)
}

// Visibility answers whether a caller may see one task.
type Visibility interface {
	CanSee(ctx context.Context, taskID, caller string) (bool, error)
}

// BatchAggregator computes summaries for many tasks at once.
type BatchAggregator interface {
	Batch(ctx context.Context, taskIDs []string, caller string) (map[string]aggregate.Summary, error)
}

// CallerResolver maps a bearer credential to a user id.
type CallerResolver interface {
	Resolve(credential string) (string, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Sessions  SessionService
	Access    Visibility
	Batch     BatchAggregator
	Callers   CallerResolver
	Tracer    trace.Tracer
	RateLimit config.RateLimitConfig
	Now       func() time.Time
}

// Server is the tasktime HTTP server.
type Server struct {
	deps   Deps
	router *gin.Engine
}

// New builds the router and registers every route.
func New(deps Deps) *Server {
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	router := gin.New()
	s := &Server{deps: deps, router: router}

	router.Use(RequestID(), Recovery(), AccessLog(), Tracing(deps.Tracer))
	router.GET("/healthz", s.handleHealth)

	limiter := newKeyedLimiter(deps.RateLimit.RPS, deps.RateLimit.Burst)
	timeGroup := router.Group("/time", Auth(deps.Callers), RateLimit(limiter))
	{
		timeGroup.POST("/start", s.handleStart)
		timeGroup.POST("/stop", s.handleStop)
		timeGroup.GET("/sessions", s.handleSessions)
		timeGroup.POST("/batch", s.handleBatch)
	}

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(log.CatHTTP, "starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(log.CatHTTP, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatHTTP, "shutdown error", err)
		return err
	}
	log.Info(log.CatHTTP, "server stopped")
	return nil
}
