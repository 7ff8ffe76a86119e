package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/balkashynov/tasktime/internal/api"
	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/auth"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/tracing"
)

// Context keys set by middleware.
const (
	ctxRequestID = "request_id"
	ctxUserID    = "user_id"

	headerRequestID = "X-Request-ID"
)

// RequestID tags each request with an id, reusing the caller's X-Request-ID if present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// Recovery turns handler panics into 500s.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error(log.CatHTTP, "panic recovered",
			"path", c.Request.URL.Path, "request_id", c.GetString(ctxRequestID), "panic", fmt.Sprint(recovered))
		writeError(c, apperr.New(apperr.KindInternal, "internal error"))
	})
}

// AccessLog writes one line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug(log.CatHTTP, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"request_id", c.GetString(ctxRequestID),
		)
	}
}

// Tracing starts a server span per request.
func Tracing(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String(tracing.AttrHTTPRoute, route),
				attribute.String(tracing.AttrRequestID, c.GetString(ctxRequestID)),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int(tracing.AttrHTTPStatus, status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// Auth resolves the bearer credential to a user id, or aborts with 401.
func Auth(resolver CallerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			writeError(c, apperr.New(apperr.KindUnauthorized, "missing bearer credential"))
			c.Abort()
			return
		}

		userID, err := resolver.Resolve(token)
		if err != nil {
			log.Debug(log.CatAuth, "credential rejected", "error", err.Error(), "request_id", c.GetString(ctxRequestID))
			writeError(c, apperr.Wrap(apperr.KindUnauthorized, "invalid or expired credential", err))
			c.Abort()
			return
		}

		c.Set(ctxUserID, userID)
		trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String(tracing.AttrUserID, userID))
		c.Next()
	}
}

// keyedLimiter hands out one token bucket per caller.
type keyedLimiter struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	m     map[string]*rate.Limiter
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &keyedLimiter{rps: rate.Limit(rps), burst: burst, m: map[string]*rate.Limiter{}}
}

func (k *keyedLimiter) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok := k.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(k.rps, k.burst)
	k.m[key] = l
	return l
}

// RateLimit throttles each authenticated caller. A nil limiter disables throttling.
func RateLimit(limiter *keyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := c.GetString(ctxUserID)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.get(key).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, api.ErrorResponse{
				Code:      "rate_limited",
				Message:   "too many requests",
				RequestID: c.GetString(ctxRequestID),
			})
			return
		}
		c.Next()
	}
}
