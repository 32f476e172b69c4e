package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/auth"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/gateway"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

type controlCall struct {
	roomID      int
	power       string
	temperature *float64
	term        models.Termination
}

type fakeBackend struct {
	mu          sync.Mutex
	snapshot    *models.Snapshot
	status      quota.Status
	calls       []models.APICall
	controls    []controlCall
	resumed     []int
	actions     []models.QuickAction
	refreshes   int
	err         error
	interval    time.Duration
	subscribers []chan services.ServiceEvent
}

func (f *fakeBackend) Subscribe() (chan services.ServiceEvent, tea.Cmd) {
	ch := make(chan services.ServiceEvent, 1)
	f.subscribers = append(f.subscribers, ch)
	return ch, nil
}

func (f *fakeBackend) InitialState() (*models.Snapshot, quota.Status) {
	return f.snapshot, f.status
}

func (f *fakeBackend) Interval() time.Duration { return f.interval }

func (f *fakeBackend) RecentCalls(limit int) ([]models.APICall, error) {
	if len(f.calls) > limit {
		return f.calls[:limit], nil
	}
	return f.calls, nil
}

func (f *fakeBackend) RequestRefresh(context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.snapshot, f.err
}

func (f *fakeBackend) SetRoomManualControl(_ context.Context, roomID int, power string, temperature *float64, term models.Termination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, controlCall{roomID: roomID, power: power, temperature: temperature, term: term})
	return f.err
}

func (f *fakeBackend) ResumeSchedule(_ context.Context, roomID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, roomID)
	return f.err
}

func (f *fakeBackend) QuickAction(_ context.Context, action models.QuickAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return f.err
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// collect runs cmd and flattens batches into their messages. Commands that
// would block on timers or channels must not be passed here.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func findMsg[T tea.Msg](msgs []tea.Msg) (T, bool) {
	for _, msg := range msgs {
		if m, ok := msg.(T); ok {
			return m, true
		}
	}
	var zero T
	return zero, false
}

func testSnapshot(at time.Time) *models.Snapshot {
	snap := models.NewSnapshot(models.Home{ID: 1, Name: "Cabin"})
	snap.UpdatedAt = at
	temp, target := 20.5, 21.0
	snap.Rooms[1] = models.Room{ID: 1, Name: "Living", CurrentTemperature: &temp, TargetTemperature: &target}
	return snap
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil)
	if model == nil {
		t.Fatal("NewModel returned nil")
	}
	if model.GetState() == nil {
		t.Error("State should be initialized")
	}
	if model.GetActiveTab() != TabRooms {
		t.Error("Default tab should be Rooms")
	}
	if len(model.tabs) != 3 {
		t.Errorf("Should have 3 tabs placeholder, got %d", len(model.tabs))
	}
}

func TestModel_Init(t *testing.T) {
	model := NewModel(nil)
	if model.Init() == nil {
		t.Error("Init returned nil command")
	}

	notifications := model.state.GetNotifications()
	if len(notifications) != 1 || notifications[0].ID != LoadingNotificationID {
		t.Errorf("Init should show the loading toast, got %+v", notifications)
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	model := NewModel(nil)
	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 50})

	m, ok := newModel.(*Model)
	if !ok {
		t.Fatal("Update returned wrong model type")
	}
	if m.width != 100 || m.height != 50 {
		t.Errorf("size = %dx%d, want 100x50", m.width, m.height)
	}
	if !m.ready {
		t.Error("Model should be ready after WindowSizeMsg")
	}
}

func TestModel_Update_TabSwitch(t *testing.T) {
	tests := []struct {
		name string
		from TabID
		msg  tea.KeyMsg
		want TabID
	}{
		{"key 2", TabRooms, keyRune('2'), TabDevices},
		{"key 3", TabRooms, keyRune('3'), TabInfo},
		{"key 1", TabInfo, keyRune('1'), TabRooms},
		{"tab wraps", TabInfo, tea.KeyMsg{Type: tea.KeyTab}, TabRooms},
		{"shift+tab wraps", TabRooms, tea.KeyMsg{Type: tea.KeyShiftTab}, TabInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewModel(nil)
			model.activeTab = tt.from
			model.Update(tt.msg)
			if model.activeTab != tt.want {
				t.Errorf("activeTab = %v, want %v", model.activeTab, tt.want)
			}
		})
	}
}

func TestModel_SwitchToInfoLoadsCalls(t *testing.T) {
	backend := &fakeBackend{calls: []models.APICall{{ID: 1, Method: "GET", Path: "/me", StatusCode: 200}}}
	model := NewModel(backend)

	_, cmd := model.Update(keyRune('3'))
	msg, ok := findMsg[RecentCallsLoadedMsg](collect(cmd))
	if !ok {
		t.Fatal("switching to the info tab should load recent calls")
	}

	model.Update(msg)
	if got := model.state.RecentCalls(); len(got) != 1 || got[0].Path != "/me" {
		t.Errorf("RecentCalls() = %+v", got)
	}
}

func TestModel_Help(t *testing.T) {
	model := NewModel(nil)

	model.Update(keyRune('?'))
	if !model.showHelp {
		t.Fatal("? should open help")
	}

	model.Update(keyRune('2'))
	if model.activeTab != TabRooms {
		t.Error("keys other than close should be swallowed while help is open")
	}

	model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.showHelp {
		t.Error("esc should close help")
	}

	model.Update(ToggleHelpMsg{})
	if !model.showHelp {
		t.Error("ToggleHelpMsg should open help")
	}
}

func TestModel_Quit(t *testing.T) {
	model := NewModel(nil)
	_, cmd := model.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestModel_RefreshCoalesces(t *testing.T) {
	backend := &fakeBackend{snapshot: testSnapshot(time.Now())}
	model := NewModel(backend)

	_, cmd := model.Update(keyRune('r'))
	if cmd == nil {
		t.Fatal("r should start a refresh")
	}
	if !model.state.IsRefreshing() {
		t.Error("state should be refreshing")
	}

	if _, second := model.Update(keyRune('r')); second != nil {
		t.Error("a second refresh while one is in flight should be ignored")
	}

	result, ok := cmd().(RefreshResultMsg)
	if !ok {
		t.Fatal("refresh should report a RefreshResultMsg")
	}
	if backend.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", backend.refreshes)
	}

	model.Update(result)
	if model.state.IsRefreshing() {
		t.Error("refresh flag should clear on result")
	}
}

func TestModel_RefreshFailureNotifies(t *testing.T) {
	model := NewModel(&fakeBackend{})
	model.state.SetRefreshing(true)

	_, cmd := model.Update(RefreshResultMsg{Error: &gateway.RateLimitError{ResetTime: time.Now().Add(time.Hour)}})
	msg, ok := findMsg[AddNotificationMsg](collect(cmd))
	if !ok {
		t.Fatal("a failed refresh should raise a notification")
	}
	if msg.Type != NotificationError || !strings.Contains(msg.Message, "quota exhausted") {
		t.Errorf("notification = %+v", msg)
	}
}

func TestModel_RoomActions(t *testing.T) {
	temp := 21.5
	tests := []struct {
		name  string
		msg   tea.Msg
		check func(t *testing.T, b *fakeBackend)
	}{
		{"set temperature", SetRoomTemperatureMsg{RoomID: 1, RoomName: "Living", Temperature: temp, Termination: models.TimerTermination(30 * time.Minute)}, func(t *testing.T, b *fakeBackend) {
			if len(b.controls) != 1 {
				t.Fatalf("controls = %d, want 1", len(b.controls))
			}
			c := b.controls[0]
			if c.roomID != 1 || c.power != models.PowerOn || c.temperature == nil || *c.temperature != 21.5 {
				t.Errorf("control = %+v", c)
			}
			if c.term.Type != models.TerminationTimer {
				t.Errorf("termination = %+v", c.term)
			}
		}},
		{"room off", RoomOffMsg{RoomID: 2, RoomName: "Bedroom"}, func(t *testing.T, b *fakeBackend) {
			if len(b.controls) != 1 {
				t.Fatalf("controls = %d, want 1", len(b.controls))
			}
			c := b.controls[0]
			if c.power != models.PowerOff || c.temperature != nil || c.term.Type != models.TerminationManual {
				t.Errorf("control = %+v", c)
			}
		}},
		{"resume", ResumeScheduleMsg{RoomID: 3, RoomName: "Attic"}, func(t *testing.T, b *fakeBackend) {
			if len(b.resumed) != 1 || b.resumed[0] != 3 {
				t.Errorf("resumed = %v", b.resumed)
			}
		}},
		{"quick action", QuickActionMsg{Action: models.QuickActionBoost}, func(t *testing.T, b *fakeBackend) {
			if len(b.actions) != 1 || b.actions[0] != models.QuickActionBoost {
				t.Errorf("actions = %v", b.actions)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			model := NewModel(backend)

			_, cmd := model.Update(tt.msg)
			result, ok := findMsg[ActionResultMsg](collect(cmd))
			if !ok {
				t.Fatal("action should report an ActionResultMsg")
			}
			if result.Error != nil {
				t.Errorf("unexpected error: %v", result.Error)
			}
			tt.check(t, backend)

			_, cmd = model.Update(result)
			note, ok := findMsg[AddNotificationMsg](collect(cmd))
			if !ok || note.Type != NotificationSuccess {
				t.Errorf("expected a success toast, got %+v", note)
			}
		})
	}
}

func TestModel_ActionFailure(t *testing.T) {
	backend := &fakeBackend{err: &auth.AuthError{Op: "refresh", Message: "invalid_grant"}}
	model := NewModel(backend)

	_, cmd := model.Update(QuickActionMsg{Action: models.QuickActionAllOff})
	result, ok := findMsg[ActionResultMsg](collect(cmd))
	if !ok || result.Error == nil {
		t.Fatalf("expected a failed ActionResultMsg, got %+v", result)
	}

	_, cmd = model.Update(result)
	note, ok := findMsg[AddNotificationMsg](collect(cmd))
	if !ok || note.Type != NotificationError {
		t.Fatalf("expected an error toast, got %+v", note)
	}
	if !strings.Contains(note.Message, "txd login") {
		t.Errorf("message = %q, want a login hint", note.Message)
	}
}

func TestModel_ActionsWithoutBackend(t *testing.T) {
	model := NewModel(nil)
	if _, cmd := model.Update(QuickActionMsg{Action: models.QuickActionBoost}); collect(cmd) != nil {
		t.Error("actions without a backend should be dropped")
	}
}

func TestModel_InitialState(t *testing.T) {
	model := NewModel(nil)
	model.Init()

	snap := testSnapshot(time.Now())
	model.Update(InitialStateMsg{
		Snapshot: snap,
		Quota:    quota.Status{Limit: 100, Remaining: 90},
		Interval: 15 * time.Minute,
	})

	if model.state.Snapshot() != snap {
		t.Error("snapshot should be stored")
	}
	if model.state.Quota().Remaining != 90 {
		t.Error("quota should be stored")
	}
	if model.state.Interval() != 15*time.Minute {
		t.Error("interval should be stored")
	}
	for _, n := range model.state.GetNotifications() {
		if n.ID == LoadingNotificationID {
			t.Error("loading toast should clear once a snapshot is known")
		}
	}
}

func TestModel_HandleServiceEvents(t *testing.T) {
	backend := &fakeBackend{}
	model := NewModel(backend)
	now := time.Now()

	_, cmd := model.Update(ServiceEventMsg{Event: services.SnapshotUpdatedEvent{Snapshot: testSnapshot(now)}})
	msgs := collect(cmd)
	if model.state.Snapshot() == nil {
		t.Fatal("snapshot event should update state")
	}
	if _, ok := findMsg[SnapshotUpdatedMsg](msgs); !ok {
		t.Error("snapshot event should be forwarded to tabs")
	}
	if _, ok := findMsg[RecentCallsLoadedMsg](msgs); !ok {
		t.Error("snapshot event should reload recent calls")
	}

	_, cmd = model.Update(ServiceEventMsg{Event: services.QuotaUpdatedEvent{Status: quota.Status{Limit: 100, Remaining: 5}}})
	if model.state.Quota().Remaining != 5 {
		t.Error("quota event should update state")
	}
	if _, ok := findMsg[QuotaUpdatedMsg](collect(cmd)); !ok {
		t.Error("quota event should be forwarded to tabs")
	}

	model.Update(ServiceEventMsg{Event: services.IntervalChangedEvent{Interval: 20 * time.Minute}})
	if model.state.Interval() != 20*time.Minute {
		t.Error("interval event should update state")
	}

	_, cmd = model.Update(ServiceEventMsg{Event: services.OptionsChangedEvent{Interval: 30 * time.Minute}})
	if model.state.Interval() != 30*time.Minute {
		t.Error("options event should update the interval")
	}
	if note, ok := findMsg[AddNotificationMsg](collect(cmd)); !ok || note.Type != NotificationInfo {
		t.Error("options event should raise an info toast")
	}

	_, cmd = model.Update(ServiceEventMsg{Event: services.RefreshFailedEvent{Error: errors.New("timeout")}})
	if note, ok := findMsg[AddNotificationMsg](collect(cmd)); !ok || note.Type != NotificationWarning {
		t.Error("refresh failure should raise a warning toast")
	}

	_, cmd = model.Update(ServiceEventMsg{Event: services.ErrorEvent{Service: "options", Error: errors.New("bad json")}})
	note, ok := findMsg[AddNotificationMsg](collect(cmd))
	if !ok || note.Type != NotificationError || !strings.Contains(note.Message, "options: bad json") {
		t.Errorf("error event toast = %+v", note)
	}
}

func TestModel_Notifications(t *testing.T) {
	model := NewModel(nil)

	model.Update(AddNotificationMsg{Type: NotificationInfo, Message: "hello"})
	notifications := model.state.GetNotifications()
	if len(notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifications))
	}

	model.Update(RemoveNotificationMsg{ID: notifications[0].ID})
	if len(model.state.GetNotifications()) != 0 {
		t.Error("notification should be removed")
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limit", &gateway.RateLimitError{ResetTime: time.Now().Add(time.Hour)}, "Boost: quota exhausted until"},
		{"auth", &auth.AuthError{Op: "refresh", Message: "expired"}, "Boost: login expired, run `txd login`"},
		{"configuration", &gateway.ConfigurationError{Message: "no home"}, "Boost: configuration error: no home"},
		{"other", errors.New("boom"), "Boost: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeError("Boost", tt.err); !strings.HasPrefix(got, tt.want) {
				t.Errorf("describeError() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel(nil)
	if !strings.Contains(model.View(), "Loading...") {
		t.Error("View() before sizing should show loading")
	}

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model.state.SetSnapshot(testSnapshot(time.Now()))

	view := model.View()
	for _, want := range []string{"Rooms", "Devices", "Info", "Cabin", "updated"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}

	model.Update(AddNotificationMsg{Type: NotificationError, Message: "broken"})
	if !strings.Contains(model.View(), "[ERR] broken") {
		t.Error("View() should render toasts")
	}

	model.Update(keyRune('?'))
	if !strings.Contains(model.View(), "Keyboard Shortcuts") {
		t.Error("View() should render the help overlay")
	}
}

func TestWaitForServiceEventClosed(t *testing.T) {
	ch := make(chan services.ServiceEvent)
	close(ch)
	if msg := waitForServiceEventCmd(ch)(); msg != nil {
		t.Errorf("closed channel should yield nil, got %v", msg)
	}
}

func TestTabID_String(t *testing.T) {
	if TabRooms.String() != "Rooms" || TabInfo.String() != "Info" {
		t.Error("unexpected tab names")
	}
	if TabID(9).String() != "Unknown" {
		t.Error("out of range tab should be Unknown")
	}
}
