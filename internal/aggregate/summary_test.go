package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/balkashynov/tasktime/internal/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func closed(task, user string, start time.Time, seconds int64) models.TimeSession {
	end := start.Add(time.Duration(seconds) * time.Second)
	return models.TimeSession{ID: task + user + start.String(), TaskID: task, UserID: user,
		StartTime: start, EndTime: &end, DurationSeconds: &seconds}
}

func active(task, user string, start time.Time) models.TimeSession {
	return models.TimeSession{ID: task + user + "active", TaskID: task, UserID: user, StartTime: start}
}

func TestAggregateOne_ActiveSessionOnly(t *testing.T) {
	sessions := []models.TimeSession{active("T", "U", t0)}

	s := AggregateOne("T", "U", sessions, t0.Add(45*time.Second))
	require.Equal(t, int64(45), s.ActiveSeconds)
	require.True(t, s.HasActiveSession)
	require.Equal(t, int64(45), s.TotalSeconds)
	require.Equal(t, int64(0), s.CompletedSeconds)
	require.Equal(t, "00:00:45", s.Formatted)
}

func TestAggregateOne_MixedSessions(t *testing.T) {
	sessions := []models.TimeSession{
		closed("T", "U", t0, 90),
		closed("T", "U", t0.Add(time.Hour), 3600),
		closed("T", "other", t0, 500),
		closed("elsewhere", "U", t0, 700),
		active("T", "U", t0.Add(2*time.Hour)),
		active("T", "other", t0),
	}

	s := AggregateOne("T", "U", sessions, t0.Add(2*time.Hour+10*time.Second+900*time.Millisecond))
	require.Equal(t, int64(3690), s.CompletedSeconds)
	require.Equal(t, int64(10), s.ActiveSeconds, "sub-second precision truncates")
	require.Equal(t, int64(3700), s.TotalSeconds)
	require.Equal(t, 2, s.CompletedSessionsCount)
	require.Equal(t, "01:01:40", s.Formatted)
}

func TestAggregateOne_NoSessionsIsZero(t *testing.T) {
	require.Equal(t, Zero(), AggregateOne("T", "U", nil, t0))
}

func TestAggregateOne_FutureStartClampsToZero(t *testing.T) {
	s := AggregateOne("T", "U", []models.TimeSession{active("T", "U", t0.Add(time.Minute))}, t0)
	require.True(t, s.HasActiveSession)
	require.Equal(t, int64(0), s.ActiveSeconds)
}

func TestAggregateOne_CompletedIsStableOverTime(t *testing.T) {
	sessions := []models.TimeSession{closed("T", "U", t0, 120), active("T", "U", t0.Add(time.Hour))}

	first := AggregateOne("T", "U", sessions, t0.Add(time.Hour+5*time.Second))
	again := AggregateOne("T", "U", sessions, t0.Add(time.Hour+5*time.Second))
	later := AggregateOne("T", "U", sessions, t0.Add(time.Hour+65*time.Second))

	require.Equal(t, first, again)
	require.Equal(t, first.CompletedSeconds, later.CompletedSeconds)
	require.Equal(t, first.ActiveSeconds+60, later.ActiveSeconds)
}

func TestTaskStats_ActiveUsers(t *testing.T) {
	sessions := []models.TimeSession{
		active("T", "zed", t0),
		active("T", "U", t0.Add(time.Second)),
		active("T", "amy", t0),
		closed("T", "bob", t0, 30),
		active("other", "carl", t0),
	}

	stats := TaskStats("T", "U", sessions, t0.Add(time.Minute))
	require.Equal(t, []string{"U", "amy", "zed"}, stats.ActiveUsers)
	require.NotNil(t, stats.ActiveSession)
	require.Equal(t, "U", stats.ActiveSession.UserID)
	require.Equal(t, int64(59), stats.TotalSeconds)
}

func TestTaskStats_NoActiveSessionForCaller(t *testing.T) {
	stats := TaskStats("T", "U", []models.TimeSession{active("T", "other", t0)}, t0)
	require.Nil(t, stats.ActiveSession)
	require.Equal(t, []string{"other"}, stats.ActiveUsers)
	require.False(t, stats.HasActiveSession)
}

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{60, "00:01:00"},
		{3599, "00:59:59"},
		{86400, "24:00:00"},
		{359999, "99:59:59"},
		{360000, "100:00:00"},
		{-5, "00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, FormatHMS(tt.seconds))
		})
	}
}

func TestParseHMS_Rejects(t *testing.T) {
	for _, in := range []string{"", "10:00", "aa:00:00", "00:60:00", "00:00:60", "-1:00:00", "1:2:3:4"} {
		_, err := ParseHMS(in)
		require.Error(t, err, in)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seconds := rapid.Int64Range(0, 10_000_000).Draw(t, "seconds")

		got, err := ParseHMS(FormatHMS(seconds))
		if err != nil {
			t.Fatalf("parse %q: %v", FormatHMS(seconds), err)
		}
		if got != seconds {
			t.Fatalf("round trip %d -> %q -> %d", seconds, FormatHMS(seconds), got)
		}
	})
}
