package app

import (
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

// TickMsg is sent periodically to expire toasts and redraw countdowns.
type TickMsg struct {
	Time time.Time
}

// InitialStateMsg carries the state available before the first event.
type InitialStateMsg struct {
	Snapshot *models.Snapshot
	Quota    quota.Status
	Interval time.Duration
}

// SnapshotUpdatedMsg is forwarded to the tabs when a new snapshot arrives.
type SnapshotUpdatedMsg struct {
	Snapshot *models.Snapshot
}

// QuotaUpdatedMsg is forwarded to the tabs when the quota counter changes.
type QuotaUpdatedMsg struct {
	Status quota.Status
}

// RefreshMsg requests a coalesced poll cycle.
type RefreshMsg struct{}

// RefreshResultMsg contains the outcome of a requested poll cycle.
type RefreshResultMsg struct {
	Error error
}

// RecentCallsLoadedMsg contains the newest API call journal entries.
type RecentCallsLoadedMsg struct {
	Error error
	Calls []models.APICall
}

// SetRoomTemperatureMsg requests a heating override for one room.
type SetRoomTemperatureMsg struct {
	Termination models.Termination
	RoomName    string
	Temperature float64
	RoomID      int
}

// RoomOffMsg requests switching one room's heating off.
type RoomOffMsg struct {
	RoomName string
	RoomID   int
}

// ResumeScheduleMsg requests dropping a room's override.
type ResumeScheduleMsg struct {
	RoomName string
	RoomID   int
}

// QuickActionMsg requests a home-wide action.
type QuickActionMsg struct {
	Action models.QuickAction
}

// ActionResultMsg contains the result of a control command.
type ActionResultMsg struct {
	Error       error
	Description string
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Message  string
	Type     NotificationType
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}
