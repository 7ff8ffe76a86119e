package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/balkashynov/tasktime/internal/aggregate"
	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/controller"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/scheduler"
	"github.com/balkashynov/tasktime/internal/timecache"
	"github.com/balkashynov/tasktime/internal/tui"
)

var startCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Start tracking time on a task",
	Long: `Start tracking time on a task. Opens the interactive timer by default, use --no-ui for a simple start.

Examples:
  tasktime start T-42         # Start timer with interactive UI
  tasktime start T-42 --no-ui # Start timer without UI`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noUI, _ := cmd.Flags().GetBool("no-ui")
		return timerAction(cmd, args[0], func(ctx context.Context, env *clientEnv, ctrl *controller.Controller) error {
			if ctrl.State().Phase != controller.PhaseRunning {
				if err := ctrl.Start(ctx); err != nil {
					return explainConflict(cmd.OutOrStdout(), ctrl, err)
				}
			}

			if noUI {
				state := ctrl.State()
				fmt.Fprintf(cmd.OutOrStdout(), "Started tracking time for task %s\n", ctrl.TaskID())
				if state.StartTime != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Started at: %s\n", state.StartTime.Local().Format("15:04:05"))
				}
				return nil
			}
			return runTimerUI(ctx, cmd.OutOrStdout(), env, ctrl)
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause [task-id]",
	Short: "Pause the timer, keeping the counter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerAction(cmd, args[0], func(ctx context.Context, _ *clientEnv, ctrl *controller.Controller) error {
			if err := ctrl.Pause(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paused task %s at %s\n", ctrl.TaskID(),
				aggregate.FormatHMS(ctrl.State().ElapsedSeconds))
			return nil
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [task-id]",
	Short: "Stop tracking time and reset the timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerAction(cmd, args[0], func(ctx context.Context, env *clientEnv, ctrl *controller.Controller) error {
			before := ctrl.State()
			if before.Phase == controller.PhaseStopped {
				fmt.Fprintf(cmd.OutOrStdout(), "No timer running for task %s\n", ctrl.TaskID())
				return nil
			}
			if err := ctrl.Stop(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stopped tracking time for task %s\n", ctrl.TaskID())
			fmt.Fprintf(cmd.OutOrStdout(), "Timer duration: %s\n", aggregate.FormatHMS(before.ElapsedSeconds))
			printTotal(ctx, cmd.OutOrStdout(), env, ctrl.TaskID())
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show the timer state and tracked total for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerAction(cmd, args[0], func(ctx context.Context, env *clientEnv, ctrl *controller.Controller) error {
			out := cmd.OutOrStdout()
			state := ctrl.State()
			switch state.Phase {
			case controller.PhaseRunning:
				fmt.Fprintf(out, "Currently tracking task %s\n", ctrl.TaskID())
				if state.StartTime != nil {
					fmt.Fprintf(out, "Started at: %s\n", state.StartTime.Local().Format("15:04:05"))
				}
				fmt.Fprintf(out, "Elapsed time: %s\n", aggregate.FormatHMS(state.ElapsedSeconds))
			case controller.PhasePaused:
				fmt.Fprintf(out, "Task %s is paused at %s\n", ctrl.TaskID(), aggregate.FormatHMS(state.ElapsedSeconds))
			default:
				fmt.Fprintf(out, "No active time tracking session for task %s\n", ctrl.TaskID())
			}
			printTotal(ctx, out, env, ctrl.TaskID())
			return nil
		})
	},
}

var timerCmd = &cobra.Command{
	Use:   "timer [task-id]",
	Short: "Open the interactive timer without starting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerAction(cmd, args[0], func(ctx context.Context, env *clientEnv, ctrl *controller.Controller) error {
			return runTimerUI(ctx, cmd.OutOrStdout(), env, ctrl)
		})
	},
}

func init() {
	startCmd.Flags().Bool("no-ui", false, "Start timer without interactive UI")
}

// timerAction loads the controller for taskID and runs fn with it.
func timerAction(cmd *cobra.Command, taskID string, fn func(context.Context, *clientEnv, *controller.Controller) error) error {
	if timecache.IsLocalID(taskID) {
		return fmt.Errorf("task %s has not been saved yet", taskID)
	}

	return withClient(func(env *clientEnv) error {
		ctx := cmd.Context()
		ctrl, err := env.loadController(ctx, taskID)
		if err != nil {
			return err
		}
		return fn(ctx, env, ctrl)
	})
}

func runTimerUI(ctx context.Context, out io.Writer, env *clientEnv, ctrl *controller.Controller) error {
	if cfg.Log.File == "" {
		// stderr output would tear the alternate screen
		log.SetEnabled(false)
		defer log.SetEnabled(true)
	}
	poll := scheduler.NewJitter(cfg.Client.PollMin, cfg.Client.PollMax)
	return tui.RunTimer(ctx, out, ctrl, env.cache, poll)
}

func printTotal(ctx context.Context, out io.Writer, env *clientEnv, taskID string) {
	summary, ok := env.cache.Get(taskID)
	if !ok {
		var err error
		if summary, err = env.cache.Refresh(ctx, taskID); err != nil {
			log.ErrorErr(log.CatCache, "refresh total failed", err, "task_id", taskID)
			return
		}
	}
	if summary.Error != "" {
		fmt.Fprintf(out, "Total tracked: %s\n", summary.Error)
		return
	}
	fmt.Fprintf(out, "Total tracked: %s (%d completed sessions)\n", summary.Formatted, summary.CompletedSessionsCount)
}

// explainConflict prints where the timer ended up when the server already had a session.
func explainConflict(out io.Writer, ctrl *controller.Controller, err error) error {
	if apperr.KindOf(err) != apperr.KindConflict {
		return err
	}
	state := ctrl.State()
	fmt.Fprintf(out, "A session for task %s is already running (%s elapsed); picked it up.\n",
		ctrl.TaskID(), aggregate.FormatHMS(state.ElapsedSeconds))
	return nil
}
