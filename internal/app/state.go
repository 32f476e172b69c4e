// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

// HistorySize is the number of snapshots kept per room for the trend chart.
const HistorySize = 60

// maxNotifications bounds the toast stack.
const maxNotifications = 10

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

// LoadingNotificationID is the fixed ID for the loading notification.
const LoadingNotificationID = "__loading__"

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing toast.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// TemperaturePoint is one room sample taken from a snapshot.
type TemperaturePoint struct {
	At       time.Time
	Measured float64
	Target   float64
}

// LoadingState tracks what the UI is waiting for.
type LoadingState struct {
	Initial bool
	Refresh bool
}

// State is the UI state shared by the model and the tabs. It is only ever
// written from the Bubble Tea update loop but tabs read it while rendering.
type State struct {
	lastUpdated   time.Time
	snapshot      *models.Snapshot
	history       map[int][]TemperaturePoint
	calls         []models.APICall
	notifications []Notification
	quota         quota.Status
	Loading       LoadingState
	interval      time.Duration
	notifySeq     int
	mu            sync.RWMutex
}

// NewState returns an empty state waiting for its first snapshot.
func NewState() *State {
	return &State{
		history: make(map[int][]TemperaturePoint),
		Loading: LoadingState{Initial: true},
	}
}

// SetSnapshot stores snap and appends one history sample per room. A snapshot
// already seen is ignored so repeated deliveries do not skew the trend.
func (s *State) SetSnapshot(snap *models.Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil && !snap.UpdatedAt.After(s.snapshot.UpdatedAt) {
		return
	}
	s.snapshot = snap
	s.lastUpdated = snap.UpdatedAt
	s.Loading.Initial = false

	for id, room := range snap.Rooms {
		if room.CurrentTemperature == nil {
			continue
		}
		point := TemperaturePoint{At: snap.UpdatedAt, Measured: *room.CurrentTemperature}
		if room.TargetTemperature != nil {
			point.Target = *room.TargetTemperature
		} else {
			point.Target = point.Measured
		}

		points := append(s.history[id], point)
		if len(points) > HistorySize {
			points = points[len(points)-HistorySize:]
		}
		s.history[id] = points
	}
}

// Snapshot returns the latest snapshot, or nil before the first one.
func (s *State) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// RoomHistory returns the measured and target series for a room, oldest first.
func (s *State) RoomHistory(roomID int) (measured, target []float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.history[roomID]
	measured = make([]float64, len(points))
	target = make([]float64, len(points))
	for i, p := range points {
		measured[i] = p.Measured
		target[i] = p.Target
	}
	return measured, target
}

// SetQuota stores the latest quota status.
func (s *State) SetQuota(status quota.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota = status
}

// Quota returns the latest quota status.
func (s *State) Quota() quota.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quota
}

// SetInterval stores the effective poll interval.
func (s *State) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
}

// Interval returns the effective poll interval.
func (s *State) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// SetRecentCalls replaces the cached journal entries.
func (s *State) SetRecentCalls(calls []models.APICall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = slices.Clone(calls)
}

// RecentCalls returns the cached journal entries, newest first.
func (s *State) RecentCalls() []models.APICall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.calls)
}

// SetRefreshing marks a user requested refresh as in flight.
func (s *State) SetRefreshing(refreshing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Loading.Refresh = refreshing
}

// IsRefreshing reports whether a user requested refresh is in flight.
func (s *State) IsRefreshing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Refresh
}

// IsInitialLoading returns true until the first snapshot arrives.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// SetInitialLoading overrides the initial loading flag.
func (s *State) SetInitialLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Loading.Initial = loading
}

// LastUpdated returns when the latest snapshot was taken.
func (s *State) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifySeq++
	id := fmt.Sprintf("n-%d", s.notifySeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}
	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool {
		return n.ID == id
	})
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool {
		return n.IsExpired()
	})
}

// GetNotifications returns the notifications that have not expired.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification shows or updates the loading toast.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading toast.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}
