package rooms

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/styles"
)

// Column widths of the room table.
const (
	colName     = 16
	colTemp     = 8
	colTarget   = 8
	colHumidity = 6
	colHeating  = 14
)

// View renders the rooms tab.
func (m *Model) View() string {
	snap := m.state.Snapshot()
	if snap == nil {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	cardWidth := max(m.width-6, 40)
	sections := []string{
		m.renderTitle(snap),
		m.quotaBar.View(m.state.Quota(), m.now(), cardWidth),
		"",
		m.renderRoomList(snap, cardWidth),
	}
	if room, ok := m.selectedRoom(); ok {
		sections = append(sections, m.renderTrend(room, cardWidth))
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle(snap *models.Snapshot) string {
	title := styles.TitleStyle.Render(snap.Home.Name)

	var parts []string
	if snap.Home.Presence != "" {
		parts = append(parts, "presence "+strings.ToLower(snap.Home.Presence))
	}
	if w := snap.Weather; w != nil && w.OutsideTemperature != nil {
		parts = append(parts, fmt.Sprintf("outside %.1f°C %s", *w.OutsideTemperature, strings.ToLower(w.State)))
	}
	if snap.IsStale(models.SectionWeather) {
		parts = append(parts, styles.StaleStyle.Render("weather stale"))
	}
	subtitle := styles.HelpStyle.Render(strings.Join(parts, " · "))

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderRoomList(snap *models.Snapshot, width int) string {
	rooms := snap.SortedRooms()

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Rooms"))

	if len(rooms) == 0 {
		rows = append(rows, styles.HelpStyle.Render("No rooms reported for this home"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	header := fmt.Sprintf("  %-*s %*s %*s %*s  %-*s %s",
		colName, "Room", colTemp, "Temp", colTarget, "Target", colHumidity, "Hum", colHeating, "Heating", "Mode")
	rows = append(rows, styles.TableHeaderStyle.Render(header))

	for i, room := range rooms {
		rows = append(rows, m.renderRoomRow(room, i == m.selected))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderRoomRow(room models.Room, selected bool) string {
	prefix := "  "
	if selected {
		prefix = styles.FocusedStyle.Render("▸ ")
	}

	name := room.Name
	if len(name) > colName {
		name = name[:colName-1] + "…"
	}

	temp := "--"
	tempStyle := lipgloss.NewStyle()
	if room.CurrentTemperature != nil {
		temp = fmt.Sprintf("%.1f°", *room.CurrentTemperature)
		if room.TargetTemperature != nil {
			tempStyle = styles.GetTemperatureStyle(*room.CurrentTemperature, *room.TargetTemperature)
		}
	}

	target := "off"
	if room.TargetTemperature != nil {
		target = fmt.Sprintf("%.1f°", *room.TargetTemperature)
	}
	if p, ok := m.pending[room.ID]; ok && p.at.After(m.state.LastUpdated()) {
		target = fmt.Sprintf("→%.1f°", p.value)
	}

	humidity := "--"
	if room.Humidity != nil {
		humidity = fmt.Sprintf("%.0f%%", *room.Humidity)
	}

	heating := fmt.Sprintf("%s %3d%%", components.HeatingBar(room.HeatingPowerPercent, 8), room.HeatingPowerPercent)

	line := fmt.Sprintf("%-*s %s %*s %*s  %s  %s",
		colName, name,
		tempStyle.Width(colTemp).Align(lipgloss.Right).Render(temp),
		colTarget, target,
		colHumidity, humidity,
		heating,
		renderMode(room),
	)
	if selected {
		line = styles.TableSelectedStyle.Render(line)
	}
	return prefix + line
}

// renderMode summarizes how the room is currently controlled.
func renderMode(room models.Room) string {
	var badges []string

	switch {
	case room.Boost:
		badges = append(badges, styles.BoostStyle.Render("boost"))
	case room.ManualControlActive:
		label := "manual"
		if room.ManualControlRemainingSeconds != nil {
			remaining := time.Duration(*room.ManualControlRemainingSeconds) * time.Second
			label += " " + components.FormatCountdown(remaining)
		}
		badges = append(badges, styles.ManualStyle.Render(label))
	case room.Power == models.PowerOff:
		badges = append(badges, styles.OffStyle.Render("off"))
	default:
		badges = append(badges, styles.HelpStyle.Render("schedule"))
	}

	if room.OpenWindow {
		badges = append(badges, styles.WarningTextStyle.Render("window open"))
	}
	if room.IsHeating() {
		badges = append(badges, styles.HeatingStyle.Render("heating"))
	}
	return strings.Join(badges, " ")
}

// renderTrend charts the selected room over the snapshots seen this session.
func (m *Model) renderTrend(room models.Room, width int) string {
	measured, target := m.state.RoomHistory(room.ID)

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render(room.Name+" trend"))

	chartWidth := max(width-16, 20)
	caption := fmt.Sprintf("last %d snapshots", len(measured))
	rows = append(rows, components.RenderTemperatureChart(measured, target, chartWidth, 6, caption))

	if len(measured) >= 2 {
		rows = append(rows, "", components.RenderLegend([]components.LegendItem{
			{Label: "measured", Color: components.ChartMeasuredColor},
			{Label: "target", Color: components.ChartTargetColor},
		}))
	}

	if room.NextScheduleChange != nil && room.NextScheduleTemperature != nil {
		next := fmt.Sprintf("next: %.1f°C at %s", *room.NextScheduleTemperature, room.NextScheduleChange.Local().Format("15:04"))
		rows = append(rows, styles.HelpStyle.Render(next))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
