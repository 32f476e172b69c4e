package devices

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/styles"
)

const unassigned = "Unassigned"

var deviceTypeNames = map[string]string{
	models.DeviceTypeValve:      "Radiator valve",
	models.DeviceTypeThermostat: "Thermostat",
	models.DeviceTypeBridge:     "Bridge",
	models.DeviceTypeSensor:     "Sensor",
	models.DeviceTypeOptimizer:  "Boiler optimizer",
}

// View renders the devices tab.
func (m *Model) View() string {
	var content string

	snap := m.state.Snapshot()
	if snap == nil {
		content = styles.HelpStyle.Render("No snapshot yet")
	} else {
		cardWidth := max(m.width-6, 40)
		content = lipgloss.JoinVertical(lipgloss.Left,
			styles.TitleStyle.Render("Devices"),
			m.renderDevices(snap, cardWidth),
			m.renderMobileDevices(snap, cardWidth),
			m.renderComfort(snap, cardWidth),
		)
	}

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// groupByRoom keeps the snapshot's device order, which is sorted by room name.
func groupByRoom(devices []models.Device) (order []string, groups map[string][]models.Device) {
	groups = make(map[string][]models.Device)
	for _, d := range devices {
		room := d.RoomName
		if room == "" {
			room = unassigned
		}
		if _, seen := groups[room]; !seen {
			order = append(order, room)
		}
		groups[room] = append(groups[room], d)
	}
	return order, groups
}

func (m *Model) renderDevices(snap *models.Snapshot, width int) string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Hardware"))

	devices := snap.SortedDevices()
	if len(devices) == 0 {
		rows = append(rows, styles.HelpStyle.Render("No devices reported"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	if low := snap.LowBatteryDevices(); len(low) > 0 {
		rows = append(rows, styles.WarningTextStyle.Render(fmt.Sprintf("Low battery: %s", strings.Join(low, ", "))), "")
	}

	order, groups := groupByRoom(devices)
	for i, room := range order {
		if i > 0 {
			rows = append(rows, "")
		}
		rows = append(rows, lipgloss.NewStyle().Bold(true).Render(room))
		for _, d := range groups[room] {
			rows = append(rows, renderDevice(d))
		}
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderDevice(d models.Device) string {
	typeName, ok := deviceTypeNames[d.Type]
	if !ok {
		typeName = d.Type
	}

	connection := styles.SuccessTextStyle.Render("●")
	if !d.Connected() {
		connection = styles.ErrorTextStyle.Render("○")
	}

	battery := ""
	switch {
	case d.LowBattery():
		battery = styles.ErrorTextStyle.Render("battery low")
	case d.BatteryState != "":
		battery = styles.HelpStyle.Render("battery ok")
	}

	var extras []string
	if d.TemperatureMeasured != nil {
		extras = append(extras, fmt.Sprintf("%.1f°C", *d.TemperatureMeasured))
	}
	if d.TemperatureOffset != nil && *d.TemperatureOffset != 0 {
		extras = append(extras, fmt.Sprintf("offset %+.1f", *d.TemperatureOffset))
	}
	if d.ChildLock {
		extras = append(extras, "child lock")
	}
	if d.DomesticHotWaterActive {
		extras = append(extras, "hot water on")
	}
	if d.FirmwareVersion != "" {
		extras = append(extras, "fw "+d.FirmwareVersion)
	}

	return fmt.Sprintf("  %s %-16s %-12s %-12s %s",
		connection, typeName, d.SerialNumber, battery, styles.HelpStyle.Render(strings.Join(extras, " · ")))
}

func (m *Model) renderMobileDevices(snap *models.Snapshot, width int) string {
	var rows []string
	title := "Mobile devices"
	if snap.IsStale(models.SectionMobileDevices) {
		title += " " + styles.StaleStyle.Render("(stale)")
	}
	rows = append(rows, styles.CardTitleStyle.Render(title))

	mobiles := snap.SortedMobileDevices()
	if len(mobiles) == 0 {
		rows = append(rows, styles.HelpStyle.Render("None registered or disabled"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	for _, md := range mobiles {
		location := md.Location
		switch {
		case !md.GeofencingEnabled:
			location = styles.HelpStyle.Render("geofencing off")
		case md.AtHome:
			location = styles.SuccessTextStyle.Render("home")
		case location == "":
			location = "away"
		}

		platform := strings.TrimSpace(md.Metadata.Platform + " " + md.Metadata.OSVersion)
		rows = append(rows, fmt.Sprintf("  %-20s %-14s %s", md.Name, location, styles.HelpStyle.Render(platform)))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderComfort(snap *models.Snapshot, width int) string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Comfort"))

	if ac := snap.AirComfort; ac != nil {
		line := "Air freshness: " + strings.ToLower(ac.Freshness)
		if snap.IsStale(models.SectionAirComfort) {
			line += " " + styles.StaleStyle.Render("(stale)")
		}
		rows = append(rows, line)
		if ac.LastOpenWindow != nil {
			rows = append(rows, styles.HelpStyle.Render("Last open window "+ac.LastOpenWindow.Local().Format("Jan 2 15:04")))
		}
	}

	if rt := snap.RunningTimes; rt != nil {
		total := time.Duration(rt.TotalSeconds) * time.Second
		mean := time.Duration(rt.MeanSecondsPerDay) * time.Second
		line := fmt.Sprintf("Heating ran %s since %s (%s/day)",
			total.Round(time.Minute), rt.From.Format("Jan 2"), mean.Round(time.Minute))
		if snap.IsStale(models.SectionRunningTimes) {
			line += " " + styles.StaleStyle.Render("(stale)")
		}
		rows = append(rows, line)
	}

	if len(rows) == 1 {
		rows = append(rows, styles.HelpStyle.Render("Comfort data disabled"))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
