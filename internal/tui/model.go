// Package tui provides an interactive status screen: the configured
// hooks on top, the recent delivery log below, with on-demand
// verification probes.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crashfeed/relay/internal/dispatch"
	"github.com/crashfeed/relay/internal/model"
	"github.com/crashfeed/relay/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(1, 0, 0, 0)
	columnStyle = lipgloss.NewStyle().Padding(0, 1)
)

// KeyMap defines the key bindings for the status screen.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Verify  key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Verify:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "verify hook")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh log")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// verifyResultMsg carries a completed verification probe.
type verifyResultMsg struct {
	result dispatch.VerifyResult
	err    error
}

// deliveriesMsg carries a refreshed delivery log page.
type deliveriesMsg struct {
	deliveries []model.Delivery
	err        error
}

// Model is the Bubble Tea model for the status screen.
type Model struct {
	dispatcher *dispatch.Dispatcher
	store      store.Store
	keys       KeyMap
	spin       spinner.Model

	hooks      []model.HookConfig
	cursor     int
	verifying  bool
	lastVerify map[string]dispatch.VerifyResult

	deliveries []model.Delivery
	status     string
	width      int
	height     int
}

// New creates the status screen model.
func New(d *dispatch.Dispatcher, s store.Store) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		dispatcher: d,
		store:      s,
		keys:       DefaultKeyMap(),
		spin:       sp,
		hooks:      d.Hooks(),
		lastVerify: make(map[string]dispatch.VerifyResult),
	}
}

// Init loads the first page of the delivery log.
func (m Model) Init() tea.Cmd {
	return m.loadDeliveries()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.hooks)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Verify):
			if m.verifying || len(m.hooks) == 0 {
				return m, nil
			}
			m.verifying = true
			hook := m.hooks[m.cursor]
			m.status = fmt.Sprintf("verifying %s...", hook.Name)
			return m, tea.Batch(m.spin.Tick, m.verifyHook(hook.ID))
		case key.Matches(msg, m.keys.Refresh):
			return m, m.loadDeliveries()
		}
		return m, nil

	case verifyResultMsg:
		m.verifying = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.lastVerify[msg.result.HookID] = msg.result
		m.status = msg.result.Message
		return m, nil

	case deliveriesMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.deliveries = msg.deliveries
		return m, nil

	case spinner.TickMsg:
		if !m.verifying {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the status screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("crashrelay hooks"))
	b.WriteString("\n\n")

	if len(m.hooks) == 0 {
		b.WriteString(dimStyle.Render("no hooks configured"))
		b.WriteString("\n")
	}

	for i, hook := range m.hooks {
		line := fmt.Sprintf("%-20s %-10s %s", hook.Name, hook.Type, enabledLabel(hook.Enabled))
		if v, ok := m.lastVerify[hook.ID]; ok {
			if v.OK {
				line += "  " + okStyle.Render("✓ "+v.Message)
			} else {
				line += "  " + failStyle.Render("✗ "+v.Message)
			}
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = columnStyle.Render("  " + line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("recent deliveries"))
	b.WriteString("\n\n")

	if len(m.deliveries) == 0 {
		b.WriteString(dimStyle.Render("no deliveries yet"))
		b.WriteString("\n")
	}
	for _, d := range m.deliveries {
		mark := okStyle.Render("✓")
		detail := d.Resource
		if !d.OK {
			mark = failStyle.Render("✗")
			detail = d.Error
		}
		line := fmt.Sprintf(
			"%s %s  %-8s %-24s %-30s %s",
			mark,
			d.CreatedAt.Local().Format("2006-01-02 15:04"),
			d.HookType, d.Event, truncate(d.PayloadTitle, 30), truncate(detail, 40),
		)
		b.WriteString(columnStyle.Render(line))
		b.WriteString("\n")
	}

	if m.verifying {
		b.WriteString("\n" + m.spin.View() + dimStyle.Render(m.status))
	} else if m.status != "" {
		b.WriteString("\n" + dimStyle.Render(m.status))
	}

	b.WriteString(helpStyle.Render("\n↑/↓ move · v verify · r refresh · q quit"))
	return b.String()
}

// verifyHook runs the verification probe off the UI goroutine.
func (m Model) verifyHook(hookID string) tea.Cmd {
	d := m.dispatcher
	return func() tea.Msg {
		result, err := d.Verify(context.Background(), hookID)
		return verifyResultMsg{result: result, err: err}
	}
}

// loadDeliveries fetches the latest delivery log page.
func (m Model) loadDeliveries() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		deliveries, err := s.GetDeliveries(
			context.Background(),
			store.DeliveryFilter{Limit: 20},
		)
		return deliveriesMsg{deliveries: deliveries, err: err}
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return okStyle.Render("enabled")
	}
	return dimStyle.Render("disabled")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
