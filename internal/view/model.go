package view

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"kvm-dashboard/internal/model"
)

const queueFullMessage = "too many pending actions, try again in a moment"

// Health is what the footer reports about the backends.
type Health interface {
	LastRefresh() time.Time
	LibvirtConnected() bool
	ExportStatus() (enabled, connected bool)
}

type row struct {
	name        string
	label       string
	affordance  model.Affordance
	cpu         model.CPURate
	// pending is set when the row's action was sent. It is cleared by the
	// next state event for the row, or once a full refresh cycle has passed
	// without one.
	pending     bool
	pendingTick uint64
}

// pendingTicks is how many ticks a pending marker survives without a state
// event: the first tick queues a refresh behind the action, the second
// comes after that refresh.
const pendingTicks = 2

type dialog struct {
	message string
	fatal   bool
}

// Model is the Bubble Tea model of the dashboard.
type Model struct {
	uri      string
	actions  chan<- model.Action
	interval time.Duration
	health   Health
	now      func() time.Time

	rows     map[string]*row
	order    []string
	selected int

	connected bool
	ticks     uint64
	dialogs   []dialog
	showHelp  bool
	quitting  bool
	width     int

	keys    keyMap
	help    help.Model
	spinner spinner.Model
}

// NewModel builds the dashboard for uri. Actions are written to actions
// without blocking; interval paces the periodic refresh. health may be nil.
func NewModel(uri string, actions chan<- model.Action, interval time.Duration, health Health) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = spinnerStyle

	return Model{
		uri:      uri,
		actions:  actions,
		interval: interval,
		health:   health,
		now:      time.Now,
		rows:     map[string]*row{},
		keys:     defaultKeyMap(),
		help:     help.New(),
		spinner:  sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		m.ticks++
		m.expirePending()
		m.enqueue(model.RefreshAction(), false)
		return m, m.tickCmd()

	case spinner.TickMsg:
		if m.connected {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.connected = true

	case clearedMsg:
		clear(m.rows)
		m.order = nil
		m.selected = 0

	case vmAddedMsg:
		m.addRow(msg)

	case vmRemovedMsg:
		m.removeRow(msg.name)

	case vmStateMsg:
		if r, ok := m.rows[msg.name]; ok {
			if r.label != msg.label {
				r.cpu = model.UnknownCPURate
			}
			r.label = msg.label
			r.affordance = msg.affordance
			r.pending = false
		}

	case vmCPUMsg:
		if r, ok := m.rows[msg.name]; ok {
			r.cpu = msg.rate
		}

	case errorMsg:
		m.showError(msg.message, msg.fatal)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return tea.Quit
	}

	if len(m.dialogs) > 0 {
		if key.Matches(msg, m.keys.Dismiss) {
			if m.dialogs[0].fatal {
				m.quitting = true
				return tea.Quit
			}
			m.dialogs = m.dialogs[1:]
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.order)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Refresh):
		m.enqueue(model.RefreshAction(), true)
	case key.Matches(msg, m.keys.Press):
		m.press()
	}
	return nil
}

// press sends the selected row's action. A row with a pending action or no
// affordance ignores the press.
func (m *Model) press() {
	if len(m.order) == 0 {
		return
	}
	r := m.rows[m.order[m.selected]]
	if r.pending {
		return
	}
	a, ok := r.affordance.Action(r.name)
	if !ok {
		return
	}
	if m.enqueue(a, true) {
		r.pending = true
		r.pendingTick = m.ticks
	}
}

// expirePending drops markers whose action produced no state change, so
// the row offers the action derived from its last observed state again.
func (m *Model) expirePending() {
	for _, r := range m.rows {
		if r.pending && m.ticks-r.pendingTick >= pendingTicks {
			r.pending = false
		}
	}
}

// enqueue hands a to the loop without blocking. When the buffer is full a
// user action surfaces an error; a periodic refresh is simply skipped.
func (m *Model) enqueue(a model.Action, userInitiated bool) bool {
	if m.actions == nil {
		return false
	}
	select {
	case m.actions <- a:
		return true
	default:
		if userInitiated {
			m.showError(queueFullMessage, false)
		}
		return false
	}
}

func (m *Model) showError(message string, fatal bool) {
	if fatal {
		m.dialogs = []dialog{{message: message, fatal: true}}
		return
	}
	if len(m.dialogs) > 0 && m.dialogs[0].fatal {
		return
	}
	if n := len(m.dialogs); n > 0 && m.dialogs[n-1].message == message {
		return
	}
	m.dialogs = append(m.dialogs, dialog{message: message})
}

func (m *Model) addRow(msg vmAddedMsg) {
	if r, ok := m.rows[msg.name]; ok {
		r.label = msg.label
		r.affordance = msg.affordance
		r.cpu = model.UnknownCPURate
		r.pending = false
		return
	}
	m.rows[msg.name] = &row{name: msg.name, label: msg.label, affordance: msg.affordance}

	i := sort.SearchStrings(m.order, msg.name)
	m.order = append(m.order, "")
	copy(m.order[i+1:], m.order[i:])
	m.order[i] = msg.name
	if len(m.order) > 1 && i <= m.selected {
		m.selected++
	}
}

func (m *Model) removeRow(name string) {
	if _, ok := m.rows[name]; !ok {
		return
	}
	delete(m.rows, name)

	i := sort.SearchStrings(m.order, name)
	m.order = append(m.order[:i], m.order[i+1:]...)
	if i < m.selected || m.selected >= len(m.order) {
		m.selected--
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Names returns the row names in display order.
func (m Model) Names() []string {
	return append([]string(nil), m.order...)
}
