package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/meshsd/internal/diag"
	"github.com/muurk/meshsd/internal/scheduler"
)

// StatusSource yields diagnostics samples, e.g. a *diag.Client.
type StatusSource interface {
	Next() (diag.Status, error)
}

type statusMsg diag.Status

type streamErrMsg struct{ err error }

func waitForStatus(src StatusSource) tea.Cmd {
	return func() tea.Msg {
		st, err := src.Next()
		if err != nil {
			return streamErrMsg{err: err}
		}
		return statusMsg(st)
	}
}

var monitorColumns = []table.Column{
	{Title: "Slot", Width: 4},
	{Title: "Name", Width: 8},
	{Title: "Type", Width: 8},
	{Title: "Scope", Width: 5},
	{Title: "Address", Width: 26},
	{Title: "Misses", Width: 6},
	{Title: "Last answer", Width: 12},
}

// MonitorModel is a live view of a node's scheduler.
type MonitorModel struct {
	addr    string
	source  StatusSource
	spinner spinner.Model
	table   table.Model
	status  *diag.Status
	err     error
	width   int
}

// NewMonitorModel creates a monitor reading from src. addr is only shown.
func NewMonitorModel(addr string, src StatusSource) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = PendingStyle

	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(AccentColor).Bold(true)
	styles.Selected = styles.Cell

	t := table.New(
		table.WithColumns(monitorColumns),
		table.WithHeight(4),
		table.WithFocused(false),
		table.WithStyles(styles),
	)

	return MonitorModel{
		addr:    addr,
		source:  src,
		spinner: s,
		table:   t,
		width:   GetTerminalWidth(),
	}
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForStatus(m.source))
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		st := diag.Status(msg)
		m.status = &st
		rows := statusRows(st.Scheduler)
		m.table.SetRows(rows)
		if len(rows) > 0 {
			m.table.SetHeight(len(rows) + 1)
		}
		return m, waitForStatus(m.source)

	case streamErrMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

// Err returns the error that ended the stream, if any.
func (m MonitorModel) Err() error {
	return m.err
}

// View implements tea.Model
func (m MonitorModel) View() string {
	if m.status == nil {
		return fmt.Sprintf("\n  %s Connecting to %s...\n", m.spinner.View(), m.addr)
	}
	st := m.status
	snap := st.Scheduler

	var b strings.Builder
	header := NewHeader("Node "+st.Instance, "meshsd monitor "+m.addr, map[string]string{
		"Version":  st.Version,
		"Services": serviceList(st),
		"Up since": st.StartedAt.Format(time.RFC3339),
	}).SetWidth(m.width)
	b.WriteString(header.Render())
	b.WriteString("\n\n")

	b.WriteString("  " + ListHeaderStyle.Render("Scheduler") + "  " + phaseLine(snap) + "\n\n")
	if len(snap.Entries) == 0 {
		b.WriteString(FooterStyle.Render("  nothing watched") + "\n")
	} else {
		b.WriteString(m.table.View() + "\n")
	}
	b.WriteString("\n" + FooterStyle.Render("  q to quit") + "\n")
	return b.String()
}

func serviceList(st *diag.Status) string {
	if len(st.Services) == 0 {
		return "none"
	}
	names := make([]string, len(st.Services))
	for i, svc := range st.Services {
		names[i] = svc.String()
	}
	return strings.Join(names, ", ")
}

// phaseLine describes what the loop waits for.
func phaseLine(snap scheduler.Snapshot) string {
	switch snap.Phase {
	case scheduler.PhaseIdle:
		return "idle"
	case scheduler.PhaseDiscovering:
		return PendingStyle.Render(PendingMarker + " discovering")
	}
	line := snap.Phase.String()
	if snap.Target != nil {
		line += " " + snap.Target.Name + "/" + snap.Target.Type
	}
	if !snap.Deadline.IsZero() && !snap.TakenAt.IsZero() {
		line += " in " + snap.Deadline.Sub(snap.TakenAt).Round(time.Second).String()
	}
	if snap.Phase == scheduler.PhaseWaitingForTimeout {
		return ResolvedStyle.Render(line)
	}
	return line
}

// statusRows builds one table row per watch entry.
func statusRows(snap scheduler.Snapshot) []table.Row {
	rows := make([]table.Row, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		scope := "site"
		if e.Mesh {
			scope = "mesh"
		}
		addr := PendingMarker + " searching"
		if e.Resolved {
			addr = SuccessMarker + " " + e.Addr
		}
		answered := "never"
		if !e.LastResponse.IsZero() && !snap.TakenAt.IsZero() {
			answered = snap.TakenAt.Sub(e.LastResponse).Round(time.Second).String() + " ago"
		}
		rows = append(rows, table.Row{
			strconv.Itoa(e.Slot),
			e.Name,
			e.Type,
			scope,
			addr,
			strconv.Itoa(e.Misses),
			answered,
		})
	}
	return rows
}

// RunMonitor runs the monitor until the user quits or the stream ends.
func RunMonitor(addr string, src StatusSource) error {
	p := tea.NewProgram(NewMonitorModel(addr, src), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(MonitorModel); ok && m.Err() != nil {
		return fmt.Errorf("status stream ended: %w", m.Err())
	}
	return nil
}
