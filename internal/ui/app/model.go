package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "focuskit/internal/modules/session/dto"
	"focuskit/internal/ui/components"
	"focuskit/internal/ui/theme"
	statsview "focuskit/internal/ui/views/stats"
	timerview "focuskit/internal/ui/views/timer"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type sessionPort interface {
	Start(ctx context.Context, duration time.Duration, taskRef string, strict bool) (sessiondto.SessionView, error)
	Pause(ctx context.Context) (sessiondto.SessionView, error)
	Resume(ctx context.Context) (sessiondto.SessionView, error)
	Complete(ctx context.Context) (sessiondto.SessionView, error)
	Reset(ctx context.Context) (sessiondto.SessionView, error)
	Acknowledge(ctx context.Context) (sessiondto.SessionView, error)
	Watch(buffer int) (<-chan sessiondto.SessionView, func())
}

type Options struct {
	DefaultDuration time.Duration
	StrictMode      bool
	// Now overrides the wall clock used to pick "today" for stats.
	Now func() time.Time
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabTimer tabID = iota
	tabStats
	tabCount
)

var tabLabels = [tabCount]string{"Timer", "Stats"}

// ─── async messages ───────────────────────────────────────────────────────────

type sessionViewMsg struct {
	view sessiondto.SessionView
	ok   bool
}

type actionDoneMsg struct {
	op   string
	view sessiondto.SessionView
	err  error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Tab      key.Binding
	Start    key.Binding
	Toggle   key.Binding
	Complete key.Binding
	Reset    key.Binding
	Ack      key.Binding
	Longer   key.Binding
	Shorter  key.Binding
	Strict   key.Binding
	Help     key.Binding
	Palette  key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:      key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch tab")),
		Start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Toggle:   key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause/resume")),
		Complete: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
		Reset:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset")),
		Ack:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "acknowledge")),
		Longer:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "duration")),
		Shorter:  key.NewBinding(key.WithKeys("-"), key.WithHelp("+/-", "duration")),
		Strict:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "strict mode")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette:  key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Toggle, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Toggle, k.Complete, k.Reset, k.Ack},
		{k.Longer, k.Strict, k.Tab},
		{k.Help, k.Palette, k.Quit},
	}
}

var paletteHints = []string{
	"start [minutes] [task]",
	"pause",
	"resume",
	"complete",
	"reset",
	"ack",
	"strict on|off",
	"stats [YYYY-MM-DD]",
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It follows the controller's view
// stream, routes keys to session operations and owns the help overlay and
// command palette.
type Model struct {
	ctx     context.Context
	session sessionPort
	views   <-chan sessiondto.SessionView
	stop    func()

	timerView timerview.Model
	statsView statsview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

// ─── constructor ─────────────────────────────────────────────────────────────

func NewModel(ctx context.Context, session sessionPort, stats statsview.StatsPort, opts Options) Model {
	views, stop := session.Watch(8)
	return Model{
		ctx:       ctx,
		session:   session,
		views:     views,
		stop:      stop,
		timerView: timerview.New(opts.DefaultDuration, opts.StrictMode),
		statsView: statsview.New(stats, opts.Now),
		activeTab: tabTimer,
		keys:      defaultKeys(),
		help:      help.New(),
		palette:   components.NewPalette(paletteHints),
		status:    "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForView(), m.statsView.Init())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The palette intercepts all input while open.
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 72))
		m.help.Width = m.width
		sz := tea.WindowSizeMsg{Width: m.width, Height: max(m.height-3, 1)}
		m.timerView, _ = m.timerView.Update(sz)
		m.statsView, _ = m.statsView.Update(sz)
		return m, nil

	case sessionViewMsg:
		if !msg.ok {
			m.status = "session closed"
			return m, nil
		}
		prev := m.timerView.Session()
		m.timerView.SetSession(msg.view)
		cmds := []tea.Cmd{m.waitForView()}
		if prev.Status != msg.view.Status {
			cmds = append(cmds, m.statsView.Load())
			if msg.view.Status == "completed" && prev.Status != "" {
				m.status = "session complete"
			}
		}
		return m, tea.Batch(cmds...)

	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.op + ": " + msg.err.Error()
			return m, nil
		}
		m.timerView.SetSession(msg.view)
		m.status = msg.op + " ok"
		return m, m.statsView.Load()

	case statsview.LoadedMsg:
		var cmd tea.Cmd
		m.statsView, cmd = m.statsView.Update(msg)
		return m, cmd

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if key.Matches(msg, m.keys.Help) || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	view := m.timerView.Session()
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stop()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Tab):
		if msg.String() == "shift+tab" {
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
		} else {
			m.activeTab = (m.activeTab + 1) % tabCount
		}
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Palette):
		return m, m.palette.Open()
	case key.Matches(msg, m.keys.Start):
		return m, m.startCmd(m.timerView.Draft(), "")
	case key.Matches(msg, m.keys.Toggle):
		switch view.Status {
		case "active":
			return m, m.actionCmd("pause", m.session.Pause)
		case "paused":
			return m, m.actionCmd("resume", m.session.Resume)
		default:
			return m, m.startCmd(m.timerView.Draft(), "")
		}
	case key.Matches(msg, m.keys.Complete):
		return m, m.actionCmd("complete", m.session.Complete)
	case key.Matches(msg, m.keys.Reset):
		return m, m.actionCmd("reset", m.session.Reset)
	case key.Matches(msg, m.keys.Ack):
		return m, m.actionCmd("acknowledge", m.session.Acknowledge)
	case key.Matches(msg, m.keys.Longer):
		m.timerView.AdjustDraft(1)
	case key.Matches(msg, m.keys.Shorter):
		m.timerView.AdjustDraft(-1)
	case key.Matches(msg, m.keys.Strict):
		m.timerView.ToggleStrict()
		m.status = fmt.Sprintf("strict mode %s for next session", onOff(m.timerView.Strict()))
	}
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := max(m.height-lipgloss.Height(tabBar)-lipgloss.Height(statusBar), 1)

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.activeTab == tabStats:
		content = m.statsView.View()
	default:
		content = m.timerView.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + tabLabels[i] + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + tabLabels[i] + " ")
		}
	}
	bar := "focuskit  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if view := m.timerView.Session(); view.Running() {
		dot := lipgloss.NewStyle().Foreground(theme.StatusColor(view.Status)).Render("● ")
		left = dot + timerview.FormatClock(view.RemainingSeconds) + "  " + left
	}
	right := theme.Muted.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	switch parts[0] {
	case "start":
		duration := m.timerView.Draft()
		rest := parts[1:]
		if len(rest) > 0 {
			if minutes, err := strconv.Atoi(rest[0]); err == nil {
				if minutes <= 0 {
					m.status = "minutes must be positive"
					return m, nil
				}
				duration = time.Duration(minutes) * time.Minute
				rest = rest[1:]
			}
		}
		m.activeTab = tabTimer
		return m, m.startCmd(duration, strings.Join(rest, " "))
	case "pause":
		return m, m.actionCmd("pause", m.session.Pause)
	case "resume":
		return m, m.actionCmd("resume", m.session.Resume)
	case "complete":
		return m, m.actionCmd("complete", m.session.Complete)
	case "reset":
		return m, m.actionCmd("reset", m.session.Reset)
	case "ack":
		return m, m.actionCmd("acknowledge", m.session.Acknowledge)
	case "strict":
		if len(parts) < 2 || (parts[1] != "on" && parts[1] != "off") {
			m.status = "usage: strict on|off"
			return m, nil
		}
		if (parts[1] == "on") != m.timerView.Strict() {
			m.timerView.ToggleStrict()
		}
		m.status = "strict mode " + parts[1] + " for next session"
	case "stats":
		date := ""
		if len(parts) > 1 {
			if _, err := time.Parse(time.DateOnly, parts[1]); err != nil {
				m.status = "usage: stats [YYYY-MM-DD]"
				return m, nil
			}
			date = parts[1]
		}
		m.statsView.SetDate(date)
		m.activeTab = tabStats
		return m, m.statsView.Load()
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) waitForView() tea.Cmd {
	views := m.views
	return func() tea.Msg {
		view, ok := <-views
		return sessionViewMsg{view: view, ok: ok}
	}
}

func (m Model) startCmd(duration time.Duration, taskRef string) tea.Cmd {
	ctx, session, strict := m.ctx, m.session, m.timerView.Strict()
	return func() tea.Msg {
		view, err := session.Start(ctx, duration, taskRef, strict)
		return actionDoneMsg{op: "start", view: view, err: err}
	}
}

func (m Model) actionCmd(op string, call func(context.Context) (sessiondto.SessionView, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		view, err := call(ctx)
		return actionDoneMsg{op: op, view: view, err: err}
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
