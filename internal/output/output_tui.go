package output

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/compilin/latgraph/internal/probe"
)

// Control is the user-intent callback surface the TUI drives: pause/resume
// and rate changes are forwarded to the session controller.
type Control interface {
	TogglePause()
	Faster()
	Slower()
}

// TUIOutput renders the latency graph with Bubble Tea
type TUIOutput struct {
	mu      sync.RWMutex
	program *tea.Program
	model   *tuiModel
	frameCh chan Frame
	quitCh  chan struct{}
	doneCh  chan struct{}
}

// frameMsg delivers a new display frame to the model
type frameMsg Frame

// tuiModel holds the Bubble Tea model state
type tuiModel struct {
	frame Frame

	// UI state
	width  int
	height int
	help   help.Model
	keys   keyMap

	ctrl    Control
	frameCh chan Frame
	quitCh  chan struct{}
}

// keyMap defines keyboard shortcuts
type keyMap struct {
	Pause  key.Binding
	Faster key.Binding
	Slower key.Binding
	Quit   key.Binding
	Help   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Quit, k.Help}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Faster, k.Slower},
		{k.Quit, k.Help},
	}
}

var keys = keyMap{
	Pause: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "pause/resume"),
	),
	Faster: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "poll faster"),
	),
	Slower: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "poll slower"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FBBF24"))

	errStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F87171"))

	sampleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399"))

	sampleSlowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	lostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171"))

	staleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

var sparks = []rune("▁▂▃▄▅▆▇█")

type cellAlignment int

const (
	alignLeft cellAlignment = iota
	alignRight
)

func formatCell(value string, width int, alignment cellAlignment) string {
	if alignment == alignRight {
		return fmt.Sprintf("%*s", width, value)
	}
	return fmt.Sprintf("%-*s", width, value)
}

// formatLatency renders a duration the way ping output does: sub-ms values
// keep two decimals, larger ones one.
func formatLatency(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2fms", ms)
	}
	return fmt.Sprintf("%.1fms", ms)
}

// NewTUIOutput creates a new Bubble Tea TUI output. ctrl receives the user
// intent (pause/resume, rate changes).
func NewTUIOutput(ctrl Control) *TUIOutput {
	frameCh := make(chan Frame, 16)
	quitCh := make(chan struct{})

	model := &tuiModel{
		help:    help.New(),
		keys:    keys,
		ctrl:    ctrl,
		frameCh: frameCh,
		quitCh:  quitCh,
	}

	return &TUIOutput{
		model:   model,
		frameCh: frameCh,
		quitCh:  quitCh,
		doneCh:  make(chan struct{}),
	}
}

// Start launches the Bubble Tea program
func (t *TUIOutput) Start() {
	doneCh := make(chan struct{})
	t.doneCh = doneCh
	t.program = tea.NewProgram(
		t.model,
		tea.WithAltScreen(),
	)

	go func() {
		defer func() {
			close(doneCh)
			if r := recover(); r != nil {
				slog.Error("TUI panic", "panic", r)
				t.program.Kill()
			}
		}()

		if _, err := t.program.Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
		}
	}()
}

// QuitChan returns the channel that signals when the user quits the TUI
func (t *TUIOutput) QuitChan() <-chan struct{} {
	return t.quitCh
}

// Update implements the Output interface
func (t *TUIOutput) Update(frame Frame) {
	select {
	case t.frameCh <- frame:
	default:
		// Channel full, skip update
	}
}

// Close implements the Output interface
func (t *TUIOutput) Close() error {
	t.mu.Lock()
	program := t.program
	doneCh := t.doneCh
	quitCh := t.quitCh
	t.mu.Unlock()

	if program != nil {
		program.Quit()

		select {
		case <-doneCh:
		case <-time.After(500 * time.Millisecond):
			// Force cleanup if it takes too long
			program.Kill()
			<-doneCh
		}
	}

	select {
	case <-quitCh:
		// Already closed
	default:
		close(quitCh)
	}

	t.mu.Lock()
	t.program = nil
	t.mu.Unlock()

	return nil
}

func waitForFrame(ch chan Frame) tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-ch
		if !ok {
			return nil
		}
		return frameMsg(frame)
	}
}

// Init is the initial I/O for Bubble Tea
func (m *tuiModel) Init() tea.Cmd {
	return waitForFrame(m.frameCh)
}

// Update handles messages and updates the model
func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			select {
			case <-m.quitCh:
			default:
				close(m.quitCh)
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Pause):
			if m.ctrl != nil {
				m.ctrl.TogglePause()
			}
		case key.Matches(msg, m.keys.Faster):
			if m.ctrl != nil {
				m.ctrl.Faster()
			}
		case key.Matches(msg, m.keys.Slower):
			if m.ctrl != nil {
				m.ctrl.Slower()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case frameMsg:
		m.frame = Frame(msg)
		return m, waitForFrame(m.frameCh)
	}

	return m, nil
}

// View renders the TUI
func (m *tuiModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder

	title := fmt.Sprintf("latgraph - %s", m.frame.Status.Target)
	if m.frame.Status.Target == "" {
		title = "latgraph - no target"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	graphWidth := width - 4 // border + padding
	if graphWidth < 8 {
		graphWidth = 8
	}
	b.WriteString(borderStyle.Render(renderGraph(m.frame.Outcomes, graphWidth)))
	b.WriteString("\n")

	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m *tuiModel) renderStatusLine() string {
	sum := m.frame.Summary
	status := m.frame.Status

	var parts []string
	if status.Running {
		parts = append(parts, statusStyle.Render(fmt.Sprintf("polling every %s", status.Interval)))
	} else {
		parts = append(parts, pausedStyle.Render("PAUSED"))
	}

	if sum.Samples > 0 {
		parts = append(parts, statusStyle.Render(fmt.Sprintf(
			"last %s  min %s  avg %s  max %s  stddev %.0fµs",
			formatLatency(sum.Last),
			formatLatency(sum.Min),
			formatLatency(sum.Avg),
			formatLatency(sum.Max),
			sum.StdDev,
		)))
	}
	if sum.Lost > 0 || sum.Samples > 0 {
		style := sampleStyle
		if sum.LossPct >= 5 {
			style = lostStyle
		}
		parts = append(parts, style.Render(fmt.Sprintf("loss %.1f%% (%d/%d)",
			sum.LossPct, sum.Lost, sum.Lost+sum.Samples)))
	}
	if status.LastErr != "" {
		parts = append(parts, errStyle.Render(status.LastErr))
	}

	return strings.Join(parts, statusStyle.Render("  |  "))
}

// renderGraph draws one column per outcome, newest on the right: a spark
// bar scaled against the largest latency in view, ✕ for lost, · for stale.
func renderGraph(outcomes []probe.Outcome, width int) string {
	if width < 1 {
		width = 1
	}
	if len(outcomes) > width {
		outcomes = outcomes[len(outcomes)-width:]
	}

	var maxLat time.Duration
	for _, o := range outcomes {
		if o.Kind == probe.KindSample && o.Latency > maxLat {
			maxLat = o.Latency
		}
	}

	var b strings.Builder
	for _, o := range outcomes {
		switch o.Kind {
		case probe.KindSample:
			level := 0
			if maxLat > 0 {
				level = int(int64(o.Latency) * int64(len(sparks)-1) / int64(maxLat))
			}
			style := sampleStyle
			if level >= len(sparks)/2 {
				style = sampleSlowStyle
			}
			b.WriteString(style.Render(string(sparks[level])))
		case probe.KindLost:
			b.WriteString(lostStyle.Render("✕"))
		case probe.KindStale:
			b.WriteString(staleStyle.Render("·"))
		}
	}
	for i := len(outcomes); i < width; i++ {
		b.WriteByte(' ')
	}

	scale := "no samples yet"
	if maxLat > 0 {
		scale = fmt.Sprintf("scale: %s full bar", formatLatency(maxLat))
	}
	return b.String() + "\n" + helpStyle.Render(formatCell(scale, width, alignRight))
}
