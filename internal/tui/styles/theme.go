package styles

import (
	"github.com/allbin/async-serial/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(1, 2).
			Margin(1, 0)

	TimestampStyle = lipgloss.NewStyle().Foreground(colors.Subtext0)

	// Console output of the non-interactive commands
	InfoStyle    = lipgloss.NewStyle().Foreground(colors.Mauve).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(colors.Green).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(colors.Red).Bold(true)
)

// IndicatorStyle renders a bold traffic indicator in the given color
func IndicatorStyle(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}
