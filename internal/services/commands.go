package services

import (
	"context"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

// Each command issues exactly one vendor write. None of them refreshes the
// snapshot; callers follow up with RequestRefresh when they need to.

// SetRoomManualControl overrides a room's schedule.
func (m *Manager) SetRoomManualControl(ctx context.Context, roomID int, power string, temperature *float64, term models.Termination) error {
	return m.command(m.gateway.SetRoomManualControl(ctx, roomID, power, temperature, term))
}

// ResumeSchedule cancels a room's manual override.
func (m *Manager) ResumeSchedule(ctx context.Context, roomID int) error {
	return m.command(m.gateway.ResumeSchedule(ctx, roomID))
}

// BoostRoom boosts one room.
func (m *Manager) BoostRoom(ctx context.Context, roomID int) error {
	return m.command(m.gateway.BoostRoom(ctx, roomID))
}

// BoostAll boosts every room.
func (m *Manager) BoostAll(ctx context.Context) error {
	return m.command(m.gateway.BoostAll(ctx))
}

// AllOff turns every room off.
func (m *Manager) AllOff(ctx context.Context) error {
	return m.command(m.gateway.AllOff(ctx))
}

// ResumeAllSchedules cancels every manual override.
func (m *Manager) ResumeAllSchedules(ctx context.Context) error {
	return m.command(m.gateway.ResumeAllSchedules(ctx))
}

// QuickAction runs a home-wide quick action.
func (m *Manager) QuickAction(ctx context.Context, action models.QuickAction) error {
	return m.command(m.gateway.QuickAction(ctx, action))
}

// SetPresence locks or releases the home presence.
func (m *Manager) SetPresence(ctx context.Context, mode models.PresenceMode) error {
	return m.command(m.gateway.SetPresence(ctx, mode))
}

// SetBoilerTemperature sets a boiler flow temperature.
func (m *Manager) SetBoilerTemperature(ctx context.Context, serial string, celsius float64) error {
	return m.command(m.gateway.SetBoilerTemperature(ctx, serial, celsius))
}

// SetTemperatureOffset calibrates a device.
func (m *Manager) SetTemperatureOffset(ctx context.Context, serial string, offset float64) error {
	return m.command(m.gateway.SetTemperatureOffset(ctx, serial, offset))
}

// AddMeterReading submits a meter reading.
func (m *Manager) AddMeterReading(ctx context.Context, date time.Time, reading int) error {
	return m.command(m.gateway.AddMeterReading(ctx, date, reading))
}

// SetTariff stores a tariff.
func (m *Manager) SetTariff(ctx context.Context, tariff models.Tariff) error {
	return m.command(m.gateway.SetTariff(ctx, tariff))
}

// command records the quota change caused by a write and notifies on
// failures the user must act on.
func (m *Manager) command(err error) error {
	m.publishQuota()
	if err != nil {
		m.handleFailure("command", err)
	}
	return err
}
