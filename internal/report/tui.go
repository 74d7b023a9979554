package report

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

type deviceMsg struct{ DeviceRow }

type findingMsg struct {
	line string
	row  FindingRow
}

type paramMsg struct{ ParamRow }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tableHeaders = []table.Column{
		{Title: "Device", Width: 8},
		{Title: "State", Width: 10},
		{Title: "Params", Width: 12},
		{Title: "Findings", Width: 9},
		{Title: "Updated", Width: 16},
	}
)

// TUIWriter renders run progress and findings using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	text       *TextWriter
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program for the given roster and returns a TUIWriter.
func NewTUIWriter(devices []uint8, expected int) *TUIWriter {
	w := &TUIWriter{text: &TextWriter{}, done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(devices, expected), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		// Quitting the UI by hand ends the run too.
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteDevice implements Writer.
func (w *TUIWriter) WriteDevice(row DeviceRow) error {
	w.program.Send(deviceMsg{row})
	return nil
}

// WriteFinding implements Writer.
func (w *TUIWriter) WriteFinding(row FindingRow) error {
	w.program.Send(findingMsg{line: w.text.findingLine(row), row: row})
	return nil
}

// WriteParam implements ParamWriter.
func (w *TUIWriter) WriteParam(row ParamRow) error {
	w.program.Send(paramMsg{row})
	return nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	table      table.Model
	vp         viewport.Model
	bar        progress.Model
	devices    map[uint8]DeviceRow
	order      []uint8
	expected   int
	findings   []string
	params     int
	wrap       bool
	autoscroll bool
	width      int
	height     int
	started    time.Time
}

func newTUIModel(devices []uint8, expected int) tuiModel {
	m := tuiModel{
		table:      table.New(table.WithColumns(tableHeaders), table.WithHeight(len(devices)+1)),
		vp:         viewport.New(0, 0),
		bar:        progress.New(progress.WithDefaultGradient()),
		devices:    make(map[uint8]DeviceRow, len(devices)),
		expected:   expected,
		autoscroll: true,
		started:    time.Now(),
	}
	for _, d := range devices {
		m.devices[d] = DeviceRow{DeviceID: d, State: StateAcquiring, Expected: expected}
		m.order = append(m.order, d)
	}
	sort.Slice(m.order, func(i, j int) bool { return m.order[i] < m.order[j] })
	m.refreshTable()
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.bar.Width = msg.Width - 4
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	case deviceMsg:
		if _, ok := m.devices[msg.DeviceID]; !ok {
			m.order = append(m.order, msg.DeviceID)
			sort.Slice(m.order, func(i, j int) bool { return m.order[i] < m.order[j] })
		}
		m.devices[msg.DeviceID] = msg.DeviceRow
		m.refreshTable()
	case findingMsg:
		m.findings = append(m.findings, msg.line)
		m.refreshViewport()
	case paramMsg:
		m.params++
	}
	return m, nil
}

func (m *tuiModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.order))
	for _, id := range m.order {
		d := m.devices[id]
		updated := "-"
		if !d.Timestamp.IsZero() {
			updated = humanize.Time(d.Timestamp)
		}
		rows = append(rows, table.Row{
			strconv.Itoa(int(id)),
			string(d.State),
			fmt.Sprintf("%d/%d", d.Collected, d.Expected),
			strconv.Itoa(d.Findings),
			updated,
		})
	}
	m.table.SetRows(rows)
	m.table.SetHeight(len(rows) + 1)
}

func (m *tuiModel) updateViewportHeight() {
	// title, progress, table, divider, footer
	used := 2 + lipgloss.Height(m.table.View()) + 2 + 1
	h := m.height - used
	if h < 1 {
		h = 1
	}
	m.vp.Height = h
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.findings {
		if m.wrap && m.vp.Width > 0 {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

// percent reports acquisition progress over all devices. Devices that timed
// out count as finished.
func (m tuiModel) percent() float64 {
	total, done := 0, 0
	for _, d := range m.devices {
		total += d.Expected
		switch d.State {
		case StateTimeout, StateCollected, StateVerified:
			done += d.Expected
		default:
			done += d.Collected
		}
	}
	if total == 0 {
		return 1
	}
	return float64(done) / float64(total)
}

func (m tuiModel) summary() string {
	verified, timedOut := 0, 0
	for _, d := range m.devices {
		switch d.State {
		case StateVerified:
			verified++
		case StateTimeout:
			timedOut++
		}
	}
	parts := []string{
		okStyle.Render(fmt.Sprintf("%d verified", verified)),
		warnStyle.Render(fmt.Sprintf("%d timed out", timedOut)),
		badStyle.Render(fmt.Sprintf("%s findings", humanize.Comma(int64(len(m.findings))))),
		dimStyle.Render(fmt.Sprintf("%s values, started %s", humanize.Comma(int64(m.params)), humanize.Time(m.started))),
	}
	return strings.Join(parts, "  ")
}

func (m tuiModel) View() string {
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		titleStyle.Render(fmt.Sprintf("paramcheck: %d devices, %d params", len(m.order), m.expected)),
		m.bar.ViewAs(m.percent()),
		m.table.View(),
		divider,
		m.vp.View(),
		divider,
		m.summary() + dimStyle.Render("  [q]uit [w]rap [s]croll"),
	}
	return strings.Join(sections, "\n")
}
