package info

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/styles"
	"github.com/j-veylop/tadox-dashboard-tui/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderQuotaCard(),
		m.renderCallsCard(),
		m.renderConfigCard(),
		m.renderAboutCard(),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 100)
}

// renderTitle renders the info tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Quota, vendor calls and configuration")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

// renderQuotaCard shows the daily budget and the polling cadence it drives.
func (m *Model) renderQuotaCard() string {
	status := m.state.Quota()
	now := m.now()
	width := m.cardWidth()

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Quota"))

	tier := styles.GetTierStyle(status.Tier.Premium()).Render(status.Tier.DisplayName())
	rows = append(rows, renderRow("Subscription", tier))

	remainingStyle := styles.GetQuotaStyle(components.RemainingPercent(status), status.Remaining <= 0)
	rows = append(rows, renderRow("Remaining", remainingStyle.Render(fmt.Sprintf("%d of %d", status.Remaining, status.Limit))))
	rows = append(rows, renderRow("Calls today", fmt.Sprintf("%d", status.State.CallsToday)))

	if status.State.QuotaLimit != nil && status.State.QuotaRemaining != nil {
		rows = append(rows, renderRow("Vendor reports", fmt.Sprintf("%d of %d", *status.State.QuotaRemaining, *status.State.QuotaLimit)))
	}

	if interval := m.state.Interval(); interval > 0 {
		rows = append(rows, renderRow("Poll interval", interval.String()))
	}

	if !status.State.ResetTime.IsZero() {
		rows = append(rows, renderRow("Resets", status.State.ResetTime.Local().Format("Jan 2 15:04")))
		rows = append(rows, "", components.ResetBar(status.State.ResetTime, now, width-8))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderCallsCard lists the most recent vendor requests.
func (m *Model) renderCallsCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Recent calls"))

	calls := m.state.RecentCalls()
	if len(calls) == 0 {
		rows = append(rows, styles.HelpStyle.Render("No calls recorded yet"))
	}
	for _, call := range calls {
		rows = append(rows, renderCall(call))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderCall(call models.APICall) string {
	status := styles.SuccessTextStyle.Render(fmt.Sprintf("%3d", call.StatusCode))
	switch {
	case call.StatusCode == http.StatusTooManyRequests:
		status = styles.WarningTextStyle.Render(fmt.Sprintf("%3d", call.StatusCode))
	case call.StatusCode == 0:
		status = styles.ErrorTextStyle.Render("ERR")
	case !call.Succeeded():
		status = styles.ErrorTextStyle.Render(fmt.Sprintf("%3d", call.StatusCode))
	}

	line := fmt.Sprintf("%s %s %-6s %-40s %5dms",
		call.Timestamp.Local().Format("15:04:05"), status, call.Method, call.Path, call.DurationMs)
	if call.Error != "" {
		line += " " + styles.HelpStyle.Render(call.Error)
	}
	return line
}

// renderConfigCard renders the configuration paths card.
func (m *Model) renderConfigCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Configuration"))

	if m.config != nil {
		rows = append(rows, renderRow("Database", m.config.DatabasePath))
		rows = append(rows, renderRow("Options", m.config.OptionsPath))
		rows = append(rows, renderRow("Log file", m.config.LogPath))
		if m.config.HTTPAddr != "" {
			rows = append(rows, renderRow("HTTP API", m.config.HTTPAddr))
		}
		if m.config.MQTTBroker != "" {
			rows = append(rows, renderRow("MQTT broker", m.config.MQTTBroker))
		}
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderRow renders a key-value row.
func renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(16).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// renderAboutCard renders the version information card.
func (m *Model) renderAboutCard() string {
	b := version.Current()

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("About txd"))
	rows = append(rows, renderRow("Version", b.Version))
	rows = append(rows, renderRow("Build date", b.Date))
	rows = append(rows, renderRow("Git commit", b.Commit))
	rows = append(rows, renderRow("Go version", b.Go))
	rows = append(rows, renderRow("Platform", b.Platform))

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
