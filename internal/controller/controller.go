// Package controller drives one task's timer on this device: start, pause, stop, a
// one-second tick, and reconciliation with the server on load.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/models"
)

// PersistEvery is how many ticks pass between hint saves while running.
const PersistEvery = 60

var (
	// ErrBusy is returned when an action is attempted while another is in flight.
	ErrBusy = errors.New("another timer action is in progress")

	// ErrInvalidTransition is returned for actions that do not apply to the current phase.
	ErrInvalidTransition = errors.New("action not allowed in current state")
)

// SessionAPI is the server surface the controller calls.
type SessionAPI interface {
	Start(ctx context.Context, taskID string) (*models.TimeSession, error)
	Stop(ctx context.Context, taskID string) (*models.TimeSession, error)
	ActiveSession(ctx context.Context, taskID string) (*models.TimeSession, error)
}

// HintStore persists the local timer hint.
type HintStore interface {
	Load(ctx context.Context, taskID string) (*models.TimerHint, error)
	Save(ctx context.Context, hint models.TimerHint) error
	Clear(ctx context.Context, taskID string) error
}

// Invalidator drops cached totals after a state change.
type Invalidator interface {
	Invalidate(taskID string)
}

// Options configures a Controller.
type Options struct {
	TaskID string
	API    SessionAPI
	Hints  HintStore
	Cache  Invalidator
	Now    func() time.Time
}

// Controller is the per-task timer state machine.
type Controller struct {
	taskID string
	api    SessionAPI
	hints  HintStore
	cache  Invalidator
	now    func() time.Time

	mu    sync.Mutex
	state State
	busy  bool
	ticks int
}

// New creates a controller in the stopped phase. Call Load before showing it.
func New(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		taskID: opts.TaskID,
		api:    opts.API,
		hints:  opts.Hints,
		cache:  opts.Cache,
		now:    opts.Now,
		state:  State{Phase: PhaseStopped},
	}
}

// TaskID returns the task this controller drives.
func (c *Controller) TaskID() string {
	return c.taskID
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a server call is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Load asks the server for an active session and reconciles it with the local hint.
func (c *Controller) Load(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	return c.reconcile(ctx)
}

// Start opens a new server session. From stopped the counter restarts at zero; from
// paused it continues from the frozen value.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	prev := c.State()
	if prev.Phase == PhaseRunning {
		return fmt.Errorf("start: %w", ErrInvalidTransition)
	}

	session, err := c.api.Start(ctx, c.taskID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			c.resync(ctx, "start conflicted")
		}
		return fmt.Errorf("start timer: %w", err)
	}

	elapsed := int64(0)
	if prev.Phase == PhasePaused {
		elapsed = prev.ElapsedSeconds
	}
	start := session.StartTime
	c.set(State{Phase: PhaseRunning, ElapsedSeconds: elapsed, SessionID: session.ID, StartTime: &start})
	c.afterChange(ctx, true)
	return nil
}

// Pause closes the server session and freezes the counter.
func (c *Controller) Pause(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	prev := c.State()
	if prev.Phase != PhaseRunning {
		return fmt.Errorf("pause: %w", ErrInvalidTransition)
	}

	if _, err := c.api.Stop(ctx, c.taskID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			c.resync(ctx, "pause found no server session")
		}
		return fmt.Errorf("pause timer: %w", err)
	}

	c.set(State{Phase: PhasePaused, ElapsedSeconds: prev.ElapsedSeconds})
	c.afterChange(ctx, true)
	return nil
}

// Stop closes the server session if running and resets the timer. From paused no server
// call is made.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	switch c.State().Phase {
	case PhaseStopped:
		return nil
	case PhaseRunning:
		if _, err := c.api.Stop(ctx, c.taskID); err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				c.resync(ctx, "stop found no server session")
			}
			return fmt.Errorf("stop timer: %w", err)
		}
	}

	c.set(State{Phase: PhaseStopped})
	c.afterChange(ctx, false)
	return nil
}

// Tick advances a running timer by one second and saves the hint every PersistEvery ticks.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	if c.state.Phase != PhaseRunning {
		c.mu.Unlock()
		return
	}
	c.state.ElapsedSeconds++
	c.ticks++
	persist := c.ticks%PersistEvery == 0
	snapshot := c.state
	c.mu.Unlock()

	if persist {
		c.saveHint(ctx, snapshot)
	}
}

func (c *Controller) reconcile(ctx context.Context) error {
	server, err := c.api.ActiveSession(ctx, c.taskID)
	if err != nil {
		return fmt.Errorf("fetch active session: %w", err)
	}

	local, err := c.hints.Load(ctx, c.taskID)
	if err != nil {
		log.ErrorErr(log.CatCtrl, "load timer hint failed", err, "task_id", c.taskID)
		local = nil
	}

	decision := Reconcile(local, server, c.now())
	c.set(decision.State)
	switch {
	case decision.SaveHint:
		c.saveHint(ctx, decision.State)
	case decision.ClearHint:
		c.clearHint(ctx)
	}

	log.Debug(log.CatCtrl, "reconciled", "task_id", c.taskID, "phase", string(decision.State.Phase),
		"elapsed", decision.State.ElapsedSeconds)
	return nil
}

// resync re-reads server truth after a call whose outcome shows local state is stale.
func (c *Controller) resync(ctx context.Context, reason string) {
	log.Info(log.CatCtrl, reason+", reconciling", "task_id", c.taskID)
	if err := c.reconcile(ctx); err != nil {
		log.ErrorErr(log.CatCtrl, "reconcile failed", err, "task_id", c.taskID)
		return
	}
	if c.cache != nil {
		c.cache.Invalidate(c.taskID)
	}
}

func (c *Controller) afterChange(ctx context.Context, keepHint bool) {
	if keepHint {
		c.saveHint(ctx, c.State())
	} else {
		c.clearHint(ctx)
	}
	if c.cache != nil {
		c.cache.Invalidate(c.taskID)
	}
}

func (c *Controller) set(s State) {
	c.mu.Lock()
	c.state = s
	c.ticks = 0
	c.mu.Unlock()
}

func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) saveHint(ctx context.Context, s State) {
	if err := c.hints.Save(ctx, hintFromState(c.taskID, s)); err != nil {
		log.ErrorErr(log.CatCtrl, "save timer hint failed", err, "task_id", c.taskID)
	}
}

func (c *Controller) clearHint(ctx context.Context) {
	if err := c.hints.Clear(ctx, c.taskID); err != nil {
		log.ErrorErr(log.CatCtrl, "clear timer hint failed", err, "task_id", c.taskID)
	}
}
