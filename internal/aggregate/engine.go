package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/models"
	"github.com/balkashynov/tasktime/internal/tracing"
)

const (
	// MaxBatch is the largest number of task ids a batch call considers.
	MaxBatch = 100

	// NoAccessMessage marks batch entries the caller cannot see.
	NoAccessMessage = "No data or permission"
)

// SessionSource reads sessions for aggregation.
type SessionSource interface {
	ListForTasksByUser(ctx context.Context, taskIDs []string, userID string) ([]models.TimeSession, error)
}

// VisibilityFilter narrows task ids to those a caller may see.
type VisibilityFilter interface {
	VisibleTaskIDs(ctx context.Context, taskIDs []string, caller string) (map[string]struct{}, error)
}

// Engine computes batch summaries.
type Engine struct {
	sessions SessionSource
	filter   VisibilityFilter
	tracer   trace.Tracer
	now      func() time.Time
}

// NewEngine creates an engine. A nil tracer disables spans.
func NewEngine(sessions SessionSource, filter VisibilityFilter, tracer trace.Tracer) *Engine {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &Engine{sessions: sessions, filter: filter, tracer: tracer, now: time.Now}
}

// WithClock replaces the engine's clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Batch returns one entry per requested id, considering only the first MaxBatch ids.
// Ids the caller cannot see get a zero summary marked with NoAccessMessage.
func (e *Engine) Batch(ctx context.Context, taskIDs []string, caller string) (map[string]Summary, error) {
	if len(taskIDs) > MaxBatch {
		taskIDs = taskIDs[:MaxBatch]
	}

	ctx, span := e.tracer.Start(ctx, "aggregate.batch",
		trace.WithAttributes(
			attribute.Int(tracing.AttrBatchSize, len(taskIDs)),
			attribute.String(tracing.AttrUserID, caller),
		))
	defer span.End()

	visible, err := e.filter.VisibleTaskIDs(ctx, taskIDs, caller)
	if err != nil {
		log.ErrorErr(log.CatAccess, "visibility lookup failed, hiding batch", err, "user_id", caller)
		span.RecordError(err)
		visible = nil
	}
	span.SetAttributes(attribute.Int(tracing.AttrVisible, len(visible)))

	ids := make([]string, 0, len(visible))
	for id := range visible {
		ids = append(ids, id)
	}

	var sessions []models.TimeSession
	if len(ids) > 0 {
		sessions, err = e.sessions.ListForTasksByUser(ctx, ids, caller)
		if err != nil {
			span.SetStatus(codes.Error, "list sessions")
			return nil, fmt.Errorf("failed to load sessions: %w", err)
		}
	}

	byTask := make(map[string][]models.TimeSession, len(ids))
	for _, s := range sessions {
		byTask[s.TaskID] = append(byTask[s.TaskID], s)
	}

	now := e.now()
	out := make(map[string]Summary, len(taskIDs))
	for _, id := range taskIDs {
		if _, ok := visible[id]; !ok {
			out[id] = Summary{Formatted: FormatHMS(0), Error: NoAccessMessage}
			continue
		}
		out[id] = AggregateOne(id, caller, byTask[id], now)
	}
	return out, nil
}
