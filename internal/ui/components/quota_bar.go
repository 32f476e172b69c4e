// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/styles"
)

const resetPeriod = 24 * time.Hour

// QuotaBar renders the remaining daily request budget.
type QuotaBar struct {
	progress progress.Model
}

// NewQuotaBar creates a quota bar with a red to green gradient.
func NewQuotaBar() QuotaBar {
	p := progress.New(
		progress.WithScaledGradient("#ff6b6b", "#51cf66"),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return QuotaBar{progress: p}
}

// RemainingPercent is the share of the effective limit still available.
func RemainingPercent(status quota.Status) float64 {
	if status.Limit <= 0 {
		return 0
	}
	p := float64(status.Remaining) / float64(status.Limit) * 100
	return min(max(p, 0), 100)
}

// View renders the bar with the label, the remaining count and the reset
// countdown, fitted to width.
func (q QuotaBar) View(status quota.Status, now time.Time, width int) string {
	percent := RemainingPercent(status)
	exhausted := status.Remaining <= 0

	counts := fmt.Sprintf("%d/%d left", status.Remaining, status.Limit)
	reset := "resets in " + FormatCountdown(status.State.ResetTime.Sub(now))

	labelStr := styles.ProgressLabelStyle.Width(8).Render("Quota")
	countStyle := styles.GetQuotaStyle(percent, exhausted)
	countStr := countStyle.Width(len(counts) + 2).Align(lipgloss.Right).Render(counts)
	resetStr := styles.HelpStyle.Render("  " + reset)

	barWidth := max(width-8-lipgloss.Width(countStr)-lipgloss.Width(resetStr)-1, 10)
	q.progress.Width = barWidth

	var bar string
	if exhausted {
		bar = lipgloss.NewStyle().Foreground(styles.Error).Render(strings.Repeat("░", barWidth))
	} else {
		bar = q.progress.ViewAs(percent / 100)
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, bar, " ", countStr, resetStr)
}

// ViewCompact renders the bar and percentage only.
func (q QuotaBar) ViewCompact(status quota.Status, width int) string {
	percent := RemainingPercent(status)
	q.progress.Width = max(width-8, 5)

	bar := q.progress.ViewAs(percent / 100)
	percentStr := styles.GetQuotaStyle(percent, status.Remaining <= 0).Render(fmt.Sprintf("%.0f%%", percent))

	return lipgloss.JoinHorizontal(lipgloss.Center, bar, " ", percentStr)
}

// FormatCountdown renders d as "3h 05m", "12m" or "< 1m".
func FormatCountdown(d time.Duration) string {
	switch {
	case d <= 0:
		return "now"
	case d < time.Minute:
		return "< 1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}

// ResetBar renders how much of the current quota window has elapsed. The bar
// fills up as the reset approaches.
func ResetBar(resetTime, now time.Time, width int) string {
	remaining := resetTime.Sub(now)
	percent := 1.0
	if remaining > 0 {
		percent = 1.0 - float64(remaining)/float64(resetPeriod)
	}
	percent = min(max(percent, 0), 1)

	timeStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(9).
		Align(lipgloss.Right)

	bar := RenderTimeBarChars(percent, max(width-12, 10))
	return fmt.Sprintf("[%s] %s", bar, timeStyle.Render(FormatCountdown(remaining)))
}

// RenderTimeBarChars renders just the bar characters for a time bar.
func RenderTimeBarChars(percent float64, width int) string {
	if width < 1 {
		return ""
	}
	filled := min(max(int(float64(width)*percent), 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#ffd93d", "#6c5ce7", t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

// RenderGradientBar renders a red to green bar filled to percent.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}
	filled := min(max(int(float64(width)*percent/100), 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#ff6b6b", "#51cf66", t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

// HeatingBar renders a short bar for a room's heating power percentage.
func HeatingBar(percent, width int) string {
	width = max(width, 4)
	filled := min(max(percent*width/100, 0), width)
	on := lipgloss.NewStyle().Foreground(styles.Heat).Render(strings.Repeat("▮", filled))
	off := lipgloss.NewStyle().Foreground(styles.Subtle).Render(strings.Repeat("▯", width-filled))
	return on + off
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
