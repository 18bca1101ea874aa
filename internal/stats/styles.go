package stats

import (
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	colorWarning = lipgloss.Color("#F59E0B") // Amber

	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(20)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	unitStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	noteStyle = lipgloss.NewStyle().
			Foreground(colorWarning)
)

// renderKeyValue renders a label-value pair with an optional unit.
func renderKeyValue(label, value, unit string) string {
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
	if unit != "" {
		row += " " + unitStyle.Render(unit)
	}
	return row
}
