package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second

	// commandTimeout bounds one control command including its 401 retry.
	commandTimeout = 90 * time.Second

	// recentCallsLimit is the number of journal rows shown on the info tab.
	recentCallsLimit = 15
)

// Backend is the service surface the TUI drives. *services.Manager
// implements it.
type Backend interface {
	Subscribe() (chan services.ServiceEvent, tea.Cmd)
	InitialState() (*models.Snapshot, quota.Status)
	Interval() time.Duration
	RecentCalls(limit int) ([]models.APICall, error)
	RequestRefresh(ctx context.Context) (*models.Snapshot, error)

	SetRoomManualControl(ctx context.Context, roomID int, power string, temperature *float64, term models.Termination) error
	ResumeSchedule(ctx context.Context, roomID int) error
	QuickAction(ctx context.Context, action models.QuickAction) error
}

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadInitialStateCmd reads what the manager already knows.
func loadInitialStateCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		snap, status := b.InitialState()
		return InitialStateMsg{Snapshot: snap, Quota: status, Interval: b.Interval()}
	}
}

// loadRecentCallsCmd reads the newest journal entries.
func loadRecentCallsCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		calls, err := b.RecentCalls(recentCallsLimit)
		return RecentCallsLoadedMsg{Calls: calls, Error: err}
	}
}

// refreshCmd runs or joins a poll cycle.
func refreshCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := b.RequestRefresh(ctx)
		return RefreshResultMsg{Error: err}
	}
}

// actionCmd runs one control command and reports it as an ActionResultMsg.
func actionCmd(description string, run func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return ActionResultMsg{Description: description, Error: run(ctx)}
	}
}

// setRoomTemperatureCmd applies a heating override.
func setRoomTemperatureCmd(b Backend, msg SetRoomTemperatureMsg) tea.Cmd {
	temp := msg.Temperature
	desc := fmt.Sprintf("%s set to %.1f°C", msg.RoomName, temp)
	if msg.Termination.Type == models.TerminationTimer {
		desc += fmt.Sprintf(" for %s", msg.Termination.Duration)
	}
	return actionCmd(desc, func(ctx context.Context) error {
		return b.SetRoomManualControl(ctx, msg.RoomID, models.PowerOn, &temp, msg.Termination)
	})
}

// roomOffCmd switches a room's heating off until cancelled.
func roomOffCmd(b Backend, msg RoomOffMsg) tea.Cmd {
	return actionCmd(msg.RoomName+" switched off", func(ctx context.Context) error {
		return b.SetRoomManualControl(ctx, msg.RoomID, models.PowerOff, nil, models.ManualTermination())
	})
}

// resumeScheduleCmd drops a room's override.
func resumeScheduleCmd(b Backend, msg ResumeScheduleMsg) tea.Cmd {
	return actionCmd(msg.RoomName+" back on schedule", func(ctx context.Context) error {
		return b.ResumeSchedule(ctx, msg.RoomID)
	})
}

// quickActionCmd runs a home-wide action.
func quickActionCmd(b Backend, action models.QuickAction) tea.Cmd {
	desc := map[models.QuickAction]string{
		models.QuickActionBoost:  "Boosting all rooms",
		models.QuickActionAllOff: "All rooms switched off",
		models.QuickActionResume: "All rooms back on schedule",
	}[action]
	return actionCmd(desc, func(ctx context.Context) error {
		return b.QuickAction(ctx, action)
	})
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(b Backend) tea.Cmd {
	ch, _ := b.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service
// event. A closed channel ends the subscription.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// Emit wraps msg in a command. Tabs use it to hand requests to the model.
func Emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
