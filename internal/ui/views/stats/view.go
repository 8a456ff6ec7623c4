package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	statsdto "focuskit/internal/modules/stats/dto"
	"focuskit/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

type StatsPort interface {
	Day(ctx context.Context, date string, now time.Time) (statsdto.DailyStatOutput, error)
	Total(ctx context.Context) (statsdto.TotalsOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type LoadedMsg struct {
	Day   statsdto.DailyStatOutput
	Total statsdto.TotalsOutput
	Err   error
}

// ─── model ───────────────────────────────────────────────────────────────────

type Model struct {
	port   StatsPort
	now    func() time.Time
	date   string
	day    statsdto.DailyStatOutput
	total  statsdto.TotalsOutput
	err    error
	loaded bool
	width  int
	height int
}

func New(port StatsPort, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	return Model{port: port, now: now}
}

func (m Model) Init() tea.Cmd { return m.Load() }

// Date is the day on display; empty means today.
func (m Model) Date() string { return m.date }

func (m *Model) SetDate(date string) { m.date = date }

func (m Model) Load() tea.Cmd {
	if m.port == nil {
		return nil
	}
	port, date, now := m.port, m.date, m.now()
	return func() tea.Msg {
		ctx := context.Background()
		day, err := port.Day(ctx, date, now)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		total, err := port.Total(ctx)
		return LoadedMsg{Day: day, Total: total, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case LoadedMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.day = msg.Day
			m.total = msg.Total
			m.loaded = true
		}
	}
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	var body string
	switch {
	case m.err != nil:
		body = theme.Alert.Render("stats unavailable: " + m.err.Error())
	case !m.loaded:
		body = theme.Muted.Render("loading…")
	default:
		body = m.render()
	}
	pane := theme.Pane.Render(body)
	if m.width == 0 || m.height == 0 {
		return pane
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, pane)
}

func (m Model) render() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Day "+m.day.DateKey) + "\n\n")
	sb.WriteString(row("completed", fmt.Sprintf("%d", m.day.CompletedCount)))
	sb.WriteString(row("partial", fmt.Sprintf("%d", m.day.PartialCount)))
	sb.WriteString(row("focus", fmt.Sprintf("%d min", m.day.FocusMinutes)))
	if m.day.Target > 0 {
		unit := "sessions"
		if m.day.TargetType == "minutes" {
			unit = "min"
		}
		sb.WriteString(row("target", fmt.Sprintf("%d %s", m.day.Target, unit)))
		sb.WriteString(row("progress", meter(m.day.Progress, 20)))
	}
	sb.WriteString("\n" + theme.Title.Render("All time") + "\n\n")
	sb.WriteString(row("days", fmt.Sprintf("%d", m.total.Days)))
	sb.WriteString(row("completed", fmt.Sprintf("%d", m.total.CompletedCount)))
	sb.WriteString(row("partial", fmt.Sprintf("%d", m.total.PartialCount)))
	sb.WriteString(row("focus", fmt.Sprintf("%d min", m.total.FocusMinutes)))
	return strings.TrimRight(sb.String(), "\n")
}

func row(label, value string) string {
	return theme.Muted.Render(fmt.Sprintf("%-10s", label)) + " " + value + "\n"
}

func meter(progress float64, width int) string {
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return theme.BarFilled.Render(strings.Repeat("■", filled)) +
		theme.BarEmpty.Render(strings.Repeat("·", width-filled)) +
		fmt.Sprintf(" %.0f%%", progress*100)
}
