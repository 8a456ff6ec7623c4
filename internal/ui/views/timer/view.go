package timer

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "focuskit/internal/modules/session/dto"
	"focuskit/internal/ui/theme"
)

const (
	draftStep   = 5 * time.Minute
	minDraft    = time.Minute
	maxDraft    = 4 * time.Hour
	maxBarWidth = 48
)

// ─── model ───────────────────────────────────────────────────────────────────

// Model renders the countdown for the latest session view. While no session
// runs it shows the draft duration the next start will use.
type Model struct {
	view   sessiondto.SessionView
	draft  time.Duration
	strict bool
	width  int
	height int
}

func New(defaultDuration time.Duration, strict bool) Model {
	if defaultDuration < minDraft {
		defaultDuration = 25 * time.Minute
	}
	return Model{draft: defaultDuration, strict: strict}
}

func (m Model) Session() sessiondto.SessionView { return m.view }
func (m Model) Draft() time.Duration           { return m.draft }
func (m Model) Strict() bool                   { return m.strict }

func (m *Model) SetSession(view sessiondto.SessionView) { m.view = view }

// AdjustDraft moves the draft duration by whole steps, clamped to sane bounds.
func (m *Model) AdjustDraft(steps int) {
	next := m.draft + time.Duration(steps)*draftStep
	if next < minDraft {
		next = minDraft
	}
	if next > maxDraft {
		next = maxDraft
	}
	m.draft = next
}

func (m *Model) SetDraft(d time.Duration) {
	if d >= minDraft && d <= maxDraft {
		m.draft = d
	}
}

func (m *Model) ToggleStrict() { m.strict = !m.strict }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	status := m.view.Status
	if status == "" {
		status = "inactive"
	}
	badge := lipgloss.NewStyle().Foreground(theme.StatusColor(status)).Bold(true).
		Render(strings.ToUpper(status))

	remaining := m.view.RemainingSeconds
	if !m.view.Running() && status != "completed" {
		remaining = int64(m.draft / time.Second)
	}

	lines := []string{
		badge,
		"",
		theme.Clock.Render(FormatClock(remaining)),
		"",
		m.bar(),
		"",
	}
	if m.view.TaskRef != "" {
		lines = append(lines, theme.Muted.Render("task  ")+m.view.TaskRef)
	}
	if m.view.Running() || status == "completed" {
		lines = append(lines, theme.Muted.Render(fmt.Sprintf("%s of %s",
			FormatClock(m.view.ElapsedSeconds), FormatClock(m.view.TargetSeconds))))
	}
	strict := m.strict
	if m.view.Running() {
		strict = m.view.StrictMode
	}
	if strict {
		lines = append(lines, theme.Alert.Render("strict: no pausing"))
	}
	lines = append(lines, "", theme.Muted.Render(m.actions(status)))

	pane := theme.Pane.Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
	if m.width == 0 || m.height == 0 {
		return pane
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, pane)
}

func (m Model) bar() string {
	width := maxBarWidth
	if m.width > 0 && m.width-12 < width {
		width = max(m.width-12, 10)
	}
	progress := m.view.Progress
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return theme.BarFilled.Render(strings.Repeat("█", filled)) +
		theme.BarEmpty.Render(strings.Repeat("░", width-filled)) +
		theme.Muted.Render(fmt.Sprintf(" %3.0f%%", progress*100))
}

func (m Model) actions(status string) string {
	switch status {
	case "active":
		if m.view.StrictMode {
			return "c complete · x reset"
		}
		return "space pause · c complete · x reset"
	case "paused":
		return "space resume · c complete · x reset"
	case "completed":
		return "a acknowledge · s start again"
	default:
		return "s start · +/- duration · t strict"
	}
}

// FormatClock renders seconds as mm:ss, switching to h:mm:ss past an hour.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	mm := (seconds % 3600) / 60
	ss := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mm, ss)
	}
	return fmt.Sprintf("%02d:%02d", mm, ss)
}
