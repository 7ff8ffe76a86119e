package controller

import (
	"time"

	"github.com/balkashynov/tasktime/internal/models"
)

// Phase is the timer's state.
type Phase string

const (
	PhaseStopped Phase = "stopped"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
)

// State is what the timer displays.
type State struct {
	Phase          Phase
	ElapsedSeconds int64
	SessionID      string
	StartTime      *time.Time
}

// Decision is the outcome of reconciling a local hint with the server.
type Decision struct {
	State State

	// SaveHint means the local hint should be overwritten with State.
	SaveHint bool
	// ClearHint means the local hint should be removed.
	ClearHint bool
}

// Reconcile decides the timer state from the local hint and the server's active session for
// the same task and user. The server always wins; a local hint is only trusted when it
// says paused and the server has nothing running.
func Reconcile(local *models.TimerHint, server *models.TimeSession, now time.Time) Decision {
	if server != nil && server.EndTime == nil {
		start := server.StartTime
		return Decision{
			State: State{
				Phase:          PhaseRunning,
				ElapsedSeconds: elapsedSince(start, now),
				SessionID:      server.ID,
				StartTime:      &start,
			},
			SaveHint: true,
		}
	}

	if local != nil && Phase(local.Phase) == PhasePaused {
		return Decision{State: State{Phase: PhasePaused, ElapsedSeconds: max(local.ElapsedSeconds, 0)}}
	}

	return Decision{State: State{Phase: PhaseStopped}, ClearHint: true}
}

func elapsedSince(start, now time.Time) int64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

func hintFromState(taskID string, s State) models.TimerHint {
	return models.TimerHint{
		TaskID:         taskID,
		Phase:          string(s.Phase),
		ElapsedSeconds: s.ElapsedSeconds,
		SessionID:      s.SessionID,
		StartTime:      s.StartTime,
	}
}
