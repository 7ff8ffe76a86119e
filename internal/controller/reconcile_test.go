package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/balkashynov/tasktime/internal/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestReconcile(t *testing.T) {
	serverActive := &models.TimeSession{ID: "s1", TaskID: "T", UserID: "U", StartTime: t0}
	now := t0.Add(125*time.Second + 700*time.Millisecond)

	tests := []struct {
		name      string
		local     *models.TimerHint
		server    *models.TimeSession
		wantPhase Phase
		wantSecs  int64
		wantSave  bool
		wantClear bool
	}{
		{"server active, no hint", nil, serverActive, PhaseRunning, 125, true, false},
		{"server active overrides stale hint", &models.TimerHint{Phase: "paused", ElapsedSeconds: 9000}, serverActive, PhaseRunning, 125, true, false},
		{"running hint without server session", &models.TimerHint{Phase: "running", ElapsedSeconds: 500}, nil, PhaseStopped, 0, false, true},
		{"paused hint without server session", &models.TimerHint{Phase: "paused", ElapsedSeconds: 500}, nil, PhasePaused, 500, false, false},
		{"stopped hint", &models.TimerHint{Phase: "stopped"}, nil, PhaseStopped, 0, false, true},
		{"nothing anywhere", nil, nil, PhaseStopped, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Reconcile(tt.local, tt.server, now)
			require.Equal(t, tt.wantPhase, d.State.Phase)
			require.Equal(t, tt.wantSecs, d.State.ElapsedSeconds)
			require.Equal(t, tt.wantSave, d.SaveHint)
			require.Equal(t, tt.wantClear, d.ClearHint)
		})
	}
}

func TestReconcile_RunningCarriesSession(t *testing.T) {
	d := Reconcile(nil, &models.TimeSession{ID: "s1", StartTime: t0}, t0.Add(time.Minute))
	require.Equal(t, "s1", d.State.SessionID)
	require.NotNil(t, d.State.StartTime)
	require.True(t, d.State.StartTime.Equal(t0))
}

func TestReconcile_ServerStartInFuture(t *testing.T) {
	d := Reconcile(nil, &models.TimeSession{ID: "s1", StartTime: t0.Add(time.Minute)}, t0)
	require.Equal(t, PhaseRunning, d.State.Phase)
	require.Equal(t, int64(0), d.State.ElapsedSeconds)
}

func TestReconcile_ClosedServerSessionIsIgnored(t *testing.T) {
	end := t0.Add(time.Minute)
	d := Reconcile(&models.TimerHint{Phase: "running"}, &models.TimeSession{ID: "s1", StartTime: t0, EndTime: &end}, t0.Add(time.Hour))
	require.Equal(t, PhaseStopped, d.State.Phase)
}
