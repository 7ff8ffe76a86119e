package aggregate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/balkashynov/tasktime/internal/models"
)

type fakeSessions struct {
	sessions  []models.TimeSession
	err       error
	requested []string
}

func (f *fakeSessions) ListForTasksByUser(_ context.Context, taskIDs []string, userID string) ([]models.TimeSession, error) {
	f.requested = append(f.requested, taskIDs...)
	if f.err != nil {
		return nil, f.err
	}
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	var out []models.TimeSession
	for _, s := range f.sessions {
		if want[s.TaskID] && s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeFilter struct {
	visible map[string]struct{}
	err     error
}

func (f fakeFilter) VisibleTaskIDs(_ context.Context, taskIDs []string, _ string) (map[string]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]struct{})
	for _, id := range taskIDs {
		if _, ok := f.visible[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func visibleSet(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestBatch_HiddenTaskGetsMarker(t *testing.T) {
	src := &fakeSessions{sessions: []models.TimeSession{
		closed("t1", "U", t0, 120),
		closed("t2", "U", t0, 999),
	}}
	engine := NewEngine(src, fakeFilter{visible: visibleSet("t1")}, nil).WithClock(func() time.Time { return t0.Add(time.Hour) })

	got, err := engine.Batch(context.Background(), []string{"t1", "t2"}, "U")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(120), got["t1"].TotalSeconds)
	require.Empty(t, got["t1"].Error)
	require.Equal(t, Summary{Formatted: "00:00:00", Error: NoAccessMessage}, got["t2"])
	require.NotContains(t, src.requested, "t2", "hidden tasks are never read")
}

func TestBatch_VisibleWithoutSessionsIsZero(t *testing.T) {
	engine := NewEngine(&fakeSessions{}, fakeFilter{visible: visibleSet("t1")}, nil)

	got, err := engine.Batch(context.Background(), []string{"t1"}, "U")
	require.NoError(t, err)
	require.Equal(t, Zero(), got["t1"])
}

func TestBatch_TruncatesToMaxBatch(t *testing.T) {
	ids := make([]string, 150)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%03d", i)
	}
	engine := NewEngine(&fakeSessions{}, fakeFilter{visible: visibleSet(ids...)}, nil)

	got, err := engine.Batch(context.Background(), ids, "U")
	require.NoError(t, err)
	require.Len(t, got, MaxBatch)
	require.Contains(t, got, "t099")
	require.NotContains(t, got, "t100")
}

func TestBatch_FilterFailureHidesEverything(t *testing.T) {
	src := &fakeSessions{}
	engine := NewEngine(src, fakeFilter{err: errors.New("registry down")}, nil)

	got, err := engine.Batch(context.Background(), []string{"t1", "t2"}, "U")
	require.NoError(t, err)
	for _, id := range []string{"t1", "t2"} {
		require.Equal(t, NoAccessMessage, got[id].Error)
	}
	require.Empty(t, src.requested)
}

func TestBatch_StorageFailureIsReturned(t *testing.T) {
	engine := NewEngine(&fakeSessions{err: errors.New("disk gone")}, fakeFilter{visible: visibleSet("t1")}, nil)

	_, err := engine.Batch(context.Background(), []string{"t1"}, "U")
	require.Error(t, err)
}

func TestBatch_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	engine := NewEngine(&fakeSessions{}, fakeFilter{visible: visibleSet("t1")}, tp.Tracer("test"))

	_, err := engine.Batch(context.Background(), []string{"t1", "t2"}, "U")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "aggregate.batch", spans[0].Name())
}

func TestBatch_Completeness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 180).Draw(t, "n")
		ids := make([]string, n)
		var visible []string
		for i := range ids {
			ids[i] = fmt.Sprintf("task-%d", i)
			if rapid.Bool().Draw(t, "visible") {
				visible = append(visible, ids[i])
			}
		}
		engine := NewEngine(&fakeSessions{}, fakeFilter{visible: visibleSet(visible...)}, nil)

		got, err := engine.Batch(context.Background(), ids, "U")
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		want := min(n, MaxBatch)
		if len(got) != want {
			t.Fatalf("got %d entries, want %d", len(got), want)
		}
		for _, id := range ids[:want] {
			if _, ok := got[id]; !ok {
				t.Fatalf("missing entry for %s", id)
			}
		}
	})
}
