package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/warden/internal/ir"
)

// Color palette for text output.
const (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorInfo    = lipgloss.Color("#3B82F6")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)

	severityStyles = map[ir.Severity]lipgloss.Style{
		ir.SeverityHigh:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
		ir.SeverityMedium: lipgloss.NewStyle().Foreground(colorWarning),
		ir.SeverityLow:    lipgloss.NewStyle().Foreground(colorInfo),
		ir.SeverityInfo:   lipgloss.NewStyle().Foreground(colorMuted),
	}
)

// severityLabel renders a severity as a fixed-width styled tag.
func severityLabel(s ir.Severity) string {
	style, ok := severityStyles[s]
	if !ok {
		style = mutedStyle
	}
	return style.Render(fmt.Sprintf("%-6s", s))
}
