package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/balkashynov/tasktime/internal/aggregate"
	"github.com/balkashynov/tasktime/internal/controller"
	"github.com/balkashynov/tasktime/internal/scheduler"
)

// RunTimer runs the interactive timer until the user quits, then prints where the
// timer was left.
func RunTimer(ctx context.Context, out io.Writer, timer Timer, totals Totals, poll *scheduler.Jitter) error {
	model := NewTimerModel(ctx, timer, totals, poll)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return err
	}

	state := timer.State()
	switch state.Phase {
	case controller.PhaseRunning:
		fmt.Fprintf(out, "Timer is still running for %s (%s elapsed).\n", timer.TaskID(), aggregate.FormatHMS(state.ElapsedSeconds))
		fmt.Fprintf(out, "   Use 'tasktime stop %s' to stop it.\n", timer.TaskID())
	case controller.PhasePaused:
		fmt.Fprintf(out, "Timer for %s paused at %s.\n", timer.TaskID(), aggregate.FormatHMS(state.ElapsedSeconds))
	default:
		fmt.Fprintf(out, "Timer for %s stopped.\n", timer.TaskID())
	}
	return nil
}
