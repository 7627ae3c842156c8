// Package style holds the terminal styles shared by the CLI commands.
package style

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("214")
	colorError   = lipgloss.Color("160")
	colorInfo    = lipgloss.Color("75")
	colorTask    = lipgloss.Color("87")
	colorSubtle  = lipgloss.Color("241")

	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Faint(true)
	Success = lipgloss.NewStyle().Foreground(colorSuccess)
	Warning = lipgloss.NewStyle().Foreground(colorWarning)
	Error   = lipgloss.NewStyle().Foreground(colorError)
	Info    = lipgloss.NewStyle().Foreground(colorInfo)
	Task    = lipgloss.NewStyle().Foreground(colorTask)
	Subtle  = lipgloss.NewStyle().Foreground(colorSubtle)

	Header = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Status prefixes.
var (
	SuccessPrefix = Success.Render("✓")
	ErrorPrefix   = Error.Render("✗")
	WarningPrefix = Warning.Render("⚠")
)

// Init picks the color profile for out. noColor, NO_COLOR or a non-terminal
// output disable colors.
func Init(out io.Writer, noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" {
		SetColorProfile(termenv.Ascii)
		return
	}
	SetColorProfile(termenv.NewOutput(out).EnvColorProfile())
}

// SetColorProfile forces a color profile and rebuilds the prefixes.
func SetColorProfile(p termenv.Profile) {
	lipgloss.SetColorProfile(p)
	SuccessPrefix = Success.Render("✓")
	ErrorPrefix = Error.Render("✗")
	WarningPrefix = Warning.Render("⚠")
}

// Icon renders a prefix icon in s.
func Icon(icon string, s lipgloss.Style) string {
	return s.Render(icon)
}

// ForGrade colors an analysis grade: A and B green, C yellow, D and E red.
func ForGrade(grade string) lipgloss.Style {
	switch grade {
	case "A", "B":
		return Success.Bold(true)
	case "C":
		return Warning.Bold(true)
	default:
		return Error.Bold(true)
	}
}

// ForTrend colors a burndown trend.
func ForTrend(trend string) lipgloss.Style {
	switch trend {
	case "On Track":
		return Success
	case "Ahead":
		return Info
	default:
		return Warning
	}
}
