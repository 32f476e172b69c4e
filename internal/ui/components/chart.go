package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/styles"
)

// Chart series colors.
var (
	ChartMeasuredColor = lipgloss.Color("#ff5f5f")
	ChartTargetColor   = lipgloss.Color("#4285f4")
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	return asciigraph.Plot(data,
		asciigraph.Height(max(height, 3)),
		asciigraph.Width(max(width, 20)),
		asciigraph.Precision(1),
		asciigraph.Caption(caption),
	)
}

// RenderTemperatureChart plots measured against target temperatures. A
// single point is not enough for a line, so fewer than two samples render a
// placeholder.
func RenderTemperatureChart(measured, target []float64, width, height int, caption string) string {
	if len(measured) < 2 {
		return styles.HelpStyle.Render("Collecting samples...")
	}

	series := [][]float64{measured}
	colors := []asciigraph.AnsiColor{asciigraph.Red}
	if len(target) == len(measured) {
		series = append(series, target)
		colors = append(colors, asciigraph.Blue)
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(max(height, 3)),
		asciigraph.Width(max(width, 20)),
		asciigraph.Precision(1),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
	)
}

// RenderSparkline creates a compact inline sparkline chart scaled between the
// smallest and largest value.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo

	// Keep the newest samples when there are more than fit.
	if len(values) > width {
		values = values[len(values)-width:]
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if span > 0 {
			idx = int((v - lo) / span * float64(len(sparkChars)-1))
		}
		b.WriteRune(sparkChars[min(max(idx, 0), len(sparkChars)-1)])
	}
	return b.String()
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	var parts []string
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}
