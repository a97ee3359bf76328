// Package tui provides the interactive terminal dashboard.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
)

// App is the TUI application.
type App struct {
	engine *monitor.Engine
	logger *zap.Logger
}

// NewApp creates a TUI over a running engine.
func NewApp(engine *monitor.Engine, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{engine: engine, logger: logger}
}

// Run starts the TUI and blocks until the user quits.
func (a *App) Run() error {
	updates := make(chan struct{}, 1)
	unsubscribe := a.engine.Registry.Subscribe(func(monitor.Event) {
		// Coalesce: one pending refresh is enough.
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	p := tea.NewProgram(newAppModel(a.engine, updates), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		a.logger.Error("tui exited with error", zap.Error(err))
		return err
	}
	return nil
}

type inputMode int

const (
	modeTable inputMode = iota
	modeAdd
	modeRename
)

// Messages
type refreshMsg struct{}

type appModel struct {
	engine  *monitor.Engine
	updates <-chan struct{}

	snap     monitor.Snapshot
	settings model.Settings
	cursor   int
	mode     inputMode
	input    textinput.Model
	spinner  spinner.Model
	flash    string
	width    int
	height   int
	quitting bool
}

func newAppModel(engine *monitor.Engine, updates <-chan struct{}) appModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 60

	return appModel{
		engine:   engine,
		updates:  updates,
		snap:     engine.Registry.Snapshot(),
		settings: engine.Settings.Load(),
		input:    ti,
		spinner:  s,
		width:    100,
		height:   30,
	}
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

// waitForUpdate blocks until the registry publishes a change.
func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return refreshMsg{}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != modeTable {
			return m.updateInput(msg)
		}
		return m.updateTable(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, waitForUpdate(m.updates)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m appModel) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.snap.Targets)-1 {
			m.cursor++
		}

	case "a":
		return m.beginInput(modeAdd, "add> ", "8.8.8.8, 10.0.0.1-5, 192.168.1.0/28, example.com", "")

	case "n":
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		return m.beginInput(modeRename, "name> ", "empty clears the label", t.Label.Value)

	case " ":
		if t, ok := m.current(); ok {
			m.engine.Registry.Toggle(t.ID)
			m.refresh()
		}

	case "d", "delete":
		if t, ok := m.current(); ok {
			m.engine.Registry.Remove(t.ID)
			m.flash = "removed " + t.Address
			m.refresh()
		}

	case "t":
		if t, ok := m.current(); ok {
			if !m.engine.StartTrace(t.ID) {
				m.flash = "trace already running for " + t.Address
			}
			m.refresh()
		}

	case "p":
		m.engine.Scheduler.Trigger()
		m.flash = "probing now"

	case "r":
		m.refresh()
	}
	return m, nil
}

func (m appModel) beginInput(mode inputMode, prompt, placeholder, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Prompt = prompt
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m appModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.endInput()
		return m, nil

	case tea.KeyEnter:
		value := m.input.Value()
		mode := m.mode
		m.endInput()
		m.submit(mode, value)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *appModel) endInput() {
	m.mode = modeTable
	m.input.Blur()
	m.input.Reset()
}

func (m *appModel) submit(mode inputMode, value string) {
	switch mode {
	case modeAdd:
		ids := m.engine.AddTargets(value)
		if len(ids) == 0 {
			m.flash = "no valid targets in input"
			return
		}
		m.flash = fmt.Sprintf("added %d target(s)", len(ids))
		m.refresh()
		m.cursor = len(m.snap.Targets) - 1
	case modeRename:
		if t, ok := m.current(); ok {
			m.engine.Registry.Rename(t.ID, value)
			m.refresh()
		}
	}
}

// refresh loads the latest snapshot and settings, keeping the cursor on the
// same target when it still exists.
func (m *appModel) refresh() {
	var selected model.TargetID
	if t, ok := m.current(); ok {
		selected = t.ID
	}

	m.snap = m.engine.Registry.Snapshot()
	m.settings = m.engine.Settings.Load()

	for i, t := range m.snap.Targets {
		if t.ID == selected {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(m.snap.Targets) {
		m.cursor = len(m.snap.Targets) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m appModel) current() (model.Target, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Targets) {
		return model.Target{}, false
	}
	return m.snap.Targets[m.cursor], true
}

func (m appModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	dash := NewDashboard(m.snap, m.settings, m.cursor, m.width, m.height)
	sb.WriteString(dash.View(m.spinner.View()))

	if m.mode != modeTable {
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
		sb.WriteString(HelpStyle.Render("enter confirm • esc cancel"))
		return sb.String()
	}

	if m.flash != "" {
		sb.WriteString(DimStyle.Render(m.flash))
		sb.WriteString("\n")
	}
	sb.WriteString(HelpStyle.Render("↑/↓ select • a add • space pause/resume • d remove • n rename • t trace • p probe now • q quit"))
	return sb.String()
}
