package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/tasktime/internal/api"
	"github.com/balkashynov/tasktime/internal/controller"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/scheduler"
)

// Timer is the controller surface the timer view drives.
type Timer interface {
	TaskID() string
	State() controller.State
	Busy() bool
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Tick(ctx context.Context)
}

// Totals serves the task's aggregated server time.
type Totals interface {
	Get(taskID string) (api.Summary, bool)
	Refresh(ctx context.Context, taskID string) (api.Summary, error)
}

// TimerModel is the bubbletea model for one task's timer.
type TimerModel struct {
	ctx    context.Context
	timer  Timer
	totals Totals
	poll   *scheduler.Jitter
	keys   KeyMap
	help   help.Model

	width  int
	height int

	total     api.Summary
	haveTotal bool
	status    string
	err       error

	// Animation state
	frame int
}

// tickMsg advances the running counter by one second.
type tickMsg struct{}

// pollMsg triggers a jittered refresh of the server total.
type pollMsg struct{}

// animationTickMsg drives the header animation.
type animationTickMsg struct{}

// totalMsg carries a refreshed server total.
type totalMsg struct {
	summary api.Summary
	err     error
}

// actionDoneMsg reports the outcome of a start, pause or stop.
type actionDoneMsg struct {
	action string
	err    error
}

// NewTimerModel creates a timer view. The controller should already be loaded.
func NewTimerModel(ctx context.Context, timer Timer, totals Totals, poll *scheduler.Jitter) TimerModel {
	m := TimerModel{
		ctx:    ctx,
		timer:  timer,
		totals: totals,
		poll:   poll,
		keys:   DefaultKeyMap(),
		help:   help.New(),
	}
	if s, ok := totals.Get(timer.TaskID()); ok {
		m.total, m.haveTotal = s, true
	}
	return m
}

// Init starts the tick, animation and poll loops and fetches the total unless it is cached.
func (m TimerModel) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), animationCmd(), m.nextPoll()}
	if !m.haveTotal {
		cmds = append(cmds, m.fetchTotal())
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.timer.Tick(m.ctx)
		return m, tickCmd()

	case animationTickMsg:
		m.frame = (m.frame + 1) % 4
		return m, animationCmd()

	case pollMsg:
		// a fresh entry, failed fetches included, is served without a request
		if s, ok := m.totals.Get(m.timer.TaskID()); ok {
			m.total, m.haveTotal = s, true
			return m, m.nextPoll()
		}
		return m, tea.Batch(m.fetchTotal(), m.nextPoll())

	case totalMsg:
		if msg.err != nil {
			log.ErrorErr(log.CatCtrl, "refresh total failed", msg.err, "task_id", m.timer.TaskID())
			m.err = msg.err
			return m, nil
		}
		m.total, m.haveTotal = msg.summary, true
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = msg.action
		return m, m.fetchTotal()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m TimerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchTotal()

	case key.Matches(msg, m.keys.Toggle):
		if m.timer.Busy() {
			m.status = "busy"
			return m, nil
		}
		if m.timer.State().Phase == controller.PhaseRunning {
			return m, m.action("paused", m.timer.Pause)
		}
		return m, m.action("running", m.timer.Start)

	case key.Matches(msg, m.keys.Stop):
		if m.timer.Busy() {
			m.status = "busy"
			return m, nil
		}
		return m, m.action("stopped", m.timer.Stop)
	}
	return m, nil
}

func (m TimerModel) action(name string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: name, err: fn(ctx)}
	}
}

func (m TimerModel) fetchTotal() tea.Cmd {
	ctx, totals, id := m.ctx, m.totals, m.timer.TaskID()
	return func() tea.Msg {
		s, err := totals.Refresh(ctx, id)
		return totalMsg{summary: s, err: err}
	}
}

func (m TimerModel) nextPoll() tea.Cmd {
	return tea.Tick(m.poll.Delay(), func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func animationCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return animationTickMsg{}
	})
}

// View renders the timer TUI
func (m TimerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	helpBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Align(lipgloss.Center).
		Width(m.width).
		Render(m.help.View(m.keys))

	panel := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-2).
		Align(lipgloss.Center, lipgloss.Center).
		Render(m.renderPanel(m.width))

	return lipgloss.JoinVertical(lipgloss.Left, panel, helpBar)
}

func (m TimerModel) renderPanel(width int) string {
	state := m.timer.State()
	center := lipgloss.NewStyle().Align(lipgloss.Center).Width(width)

	var components []string

	frames := []string{"⏱", "⏲", "⏱", "⏲"}
	header := fmt.Sprintf("%s  %s  %s", frames[m.frame], phaseTitle(state.Phase), frames[m.frame])
	components = append(components, center.
		Foreground(lipgloss.Color(phaseColor(state.Phase))).
		Bold(true).
		Render(header))

	components = append(components, center.
		Foreground(lipgloss.Color(ColorAccentMain)).
		Bold(true).
		Render(m.timer.TaskID()))

	clock := strings.Split(renderBigClock(state.ElapsedSeconds, phaseColor(state.Phase)), "\n")
	for i, line := range clock {
		clock[i] = center.Render(line)
	}
	components = append(components, strings.Join(clock, "\n"))

	if state.Phase == controller.PhaseRunning && state.StartTime != nil {
		components = append(components, center.
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Italic(true).
			Render("Session started at "+state.StartTime.Local().Format("15:04:05")))
	}

	components = append(components, center.Render(m.renderTotal()))

	if line := m.renderStatus(); line != "" {
		components = append(components, center.Render(line))
	}

	return strings.Join(components, "\n\n")
}

func (m TimerModel) renderTotal() string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
	value := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright)).Bold(true)

	switch {
	case !m.haveTotal:
		return label.Render("Total tracked: ") + value.Render("--:--:--")
	case m.total.Error != "":
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render(m.total.Error)
	default:
		line := label.Render("Total tracked: ") + value.Render(m.total.Formatted)
		if m.total.CompletedSessionsCount > 0 {
			line += label.Render(fmt.Sprintf(" (%d sessions)", m.total.CompletedSessionsCount))
		}
		return line
	}
}

func (m TimerModel) renderStatus() string {
	if m.err != nil {
		msg := m.err.Error()
		if errors.Is(m.err, controller.ErrBusy) {
			msg = "busy, try again"
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render(msg)
	}
	if m.status != "" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDisabledText)).Italic(true).Render(m.status)
	}
	return ""
}

func phaseTitle(p controller.Phase) string {
	switch p {
	case controller.PhaseRunning:
		return "TRACKING TIME"
	case controller.PhasePaused:
		return "PAUSED"
	default:
		return "STOPPED"
	}
}

func phaseColor(p controller.Phase) string {
	switch p {
	case controller.PhaseRunning:
		return ColorSuccess
	case controller.PhasePaused:
		return ColorWarning
	default:
		return ColorAccentBright
	}
}

var bigDigits = map[rune][5]string{
	'0': {" ███ ", "█   █", "█   █", "█   █", " ███ "},
	'1': {"  █  ", " ██  ", "  █  ", "  █  ", "█████"},
	'2': {" ███ ", "█   █", "   █ ", "  █  ", "█████"},
	'3': {" ███ ", "█   █", "  ██ ", "█   █", " ███ "},
	'4': {"█   █", "█   █", "█████", "    █", "    █"},
	'5': {"█████", "█    ", "████ ", "    █", "████ "},
	'6': {" ███ ", "█    ", "████ ", "█   █", " ███ "},
	'7': {"█████", "    █", "   █ ", "  █  ", " █   "},
	'8': {" ███ ", "█   █", " ███ ", "█   █", " ███ "},
	'9': {" ███ ", "█   █", " ████", "    █", " ███ "},
	':': {"     ", "  █  ", "     ", "  █  ", "     "},
}

// renderBigClock draws seconds as block digits, MM:SS below an hour and HH:MM:SS above.
func renderBigClock(seconds int64, color string) string {
	if seconds < 0 {
		seconds = 0
	}
	h, mm, ss := seconds/3600, (seconds%3600)/60, seconds%60

	text := fmt.Sprintf("%02d:%02d", mm, ss)
	if h > 0 {
		text = fmt.Sprintf("%02d:%02d:%02d", h, mm, ss)
	}

	var lines [5]strings.Builder
	for _, r := range text {
		art, ok := bigDigits[r]
		if !ok {
			continue
		}
		for i := range lines {
			lines[i].WriteString(art[i])
			lines[i].WriteString(" ")
		}
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
	out := make([]string, len(lines))
	for i := range lines {
		out[i] = style.Render(lines[i].String())
	}
	return strings.Join(out, "\n")
}
