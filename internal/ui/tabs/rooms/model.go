// Package rooms provides the rooms tab: per-room climate, quick controls and
// the temperature trend of the selected room.
package rooms

import (
	"math"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/tadox-dashboard-tui/internal/app"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/components"
)

// defaultTarget is used when a room has neither a target nor a reading.
const defaultTarget = 20.0

// keyMap defines the key bindings specific to the rooms tab.
type keyMap struct {
	Next      key.Binding
	Prev      key.Binding
	Warmer    key.Binding
	Cooler    key.Binding
	Hold      key.Binding
	Resume    key.Binding
	Off       key.Binding
	BoostAll  key.Binding
	AllOff    key.Binding
	ResumeAll key.Binding
}

// defaultKeyMap returns the default key bindings for the rooms tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next room"),
		),
		Prev: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev room"),
		),
		Warmer: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "+0.5°C for 30m"),
		),
		Cooler: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "-0.5°C for 30m"),
		),
		Hold: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "hold target"),
		),
		Resume: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "resume schedule"),
		),
		Off: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "room off"),
		),
		BoostAll: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "boost all"),
		),
		AllOff: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "all off"),
		),
		ResumeAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "resume all"),
		),
	}
}

// pendingTarget is a setpoint sent but not yet reflected in a snapshot.
type pendingTarget struct {
	at    time.Time
	value float64
}

// Model represents the rooms tab state.
type Model struct {
	state    *app.State
	pending  map[int]pendingTarget
	now      func() time.Time
	spinner  components.LoadingSpinner
	keys     keyMap
	viewport viewport.Model
	quotaBar components.QuotaBar
	width    int
	height   int
	selected int
}

// New creates a new rooms model.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		pending:  make(map[int]pendingTarget),
		now:      time.Now,
		spinner:  components.NewSpinner("Waiting for the first snapshot..."),
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		quotaBar: components.NewQuotaBar(),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Init()
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)

	case app.SnapshotUpdatedMsg:
		m.clampSelection()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) rooms() []models.Room {
	snap := m.state.Snapshot()
	if snap == nil {
		return nil
	}
	return snap.SortedRooms()
}

func (m *Model) clampSelection() {
	n := len(m.rooms())
	if n == 0 {
		m.selected = 0
		return
	}
	m.selected = min(max(m.selected, 0), n-1)
}

func (m *Model) selectedRoom() (models.Room, bool) {
	rooms := m.rooms()
	if len(rooms) == 0 {
		return models.Room{}, false
	}
	return rooms[min(m.selected, len(rooms)-1)], true
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.BoostAll):
		return app.Emit(app.QuickActionMsg{Action: models.QuickActionBoost})
	case key.Matches(msg, m.keys.AllOff):
		return app.Emit(app.QuickActionMsg{Action: models.QuickActionAllOff})
	case key.Matches(msg, m.keys.ResumeAll):
		return app.Emit(app.QuickActionMsg{Action: models.QuickActionResume})
	}

	n := len(m.rooms())
	if n == 0 {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.selected = (m.selected + 1) % n
		return nil
	case key.Matches(msg, m.keys.Prev):
		m.selected = (m.selected - 1 + n) % n
		return nil
	}

	room, _ := m.selectedRoom()
	switch {
	case key.Matches(msg, m.keys.Warmer):
		return m.adjust(room, models.TemperatureStep)
	case key.Matches(msg, m.keys.Cooler):
		return m.adjust(room, -models.TemperatureStep)
	case key.Matches(msg, m.keys.Hold):
		return app.Emit(app.SetRoomTemperatureMsg{
			RoomID:      room.ID,
			RoomName:    room.Name,
			Temperature: m.baseTarget(room),
			Termination: models.ManualTermination(),
		})
	case key.Matches(msg, m.keys.Resume):
		delete(m.pending, room.ID)
		return app.Emit(app.ResumeScheduleMsg{RoomID: room.ID, RoomName: room.Name})
	case key.Matches(msg, m.keys.Off):
		delete(m.pending, room.ID)
		return app.Emit(app.RoomOffMsg{RoomID: room.ID, RoomName: room.Name})
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

// adjust nudges the room setpoint by delta as a timer override. Repeated
// presses before the next snapshot build on the previous press.
func (m *Model) adjust(room models.Room, delta float64) tea.Cmd {
	target := clampTemperature(m.baseTarget(room) + delta)
	m.pending[room.ID] = pendingTarget{value: target, at: m.now()}

	return app.Emit(app.SetRoomTemperatureMsg{
		RoomID:      room.ID,
		RoomName:    room.Name,
		Temperature: target,
		Termination: models.TimerTermination(models.DefaultTimerDuration),
	})
}

// baseTarget is the setpoint the next adjustment starts from.
func (m *Model) baseTarget(room models.Room) float64 {
	if p, ok := m.pending[room.ID]; ok {
		snap := m.state.Snapshot()
		if snap == nil || p.at.After(snap.UpdatedAt) {
			return p.value
		}
		delete(m.pending, room.ID)
	}
	switch {
	case room.TargetTemperature != nil:
		return *room.TargetTemperature
	case room.CurrentTemperature != nil:
		return clampTemperature(roundToStep(*room.CurrentTemperature))
	default:
		return defaultTarget
	}
}

func roundToStep(v float64) float64 {
	return math.Round(v/models.TemperatureStep) * models.TemperatureStep
}

func clampTemperature(v float64) float64 {
	return min(max(v, models.MinTemperature), models.MaxTemperature)
}

// SetSize sets the available size for the tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.Next,
		m.keys.Warmer,
		m.keys.Cooler,
		m.keys.Hold,
		m.keys.Resume,
		m.keys.Off,
		m.keys.BoostAll,
		m.keys.AllOff,
		m.keys.ResumeAll,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Next, m.keys.Prev},
		{m.keys.Warmer, m.keys.Cooler, m.keys.Hold, m.keys.Resume, m.keys.Off},
		{m.keys.BoostAll, m.keys.AllOff, m.keys.ResumeAll},
	}
}
