package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Adaptive colors keep listings readable on light terminals.
var (
	AccentColor  = lipgloss.AdaptiveColor{Light: "#00766C", Dark: "#2EC4B6"} // borders, table headers
	SuccessColor = lipgloss.AdaptiveColor{Light: "#2B8A3E", Dark: "#69DB7C"} // resolved
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#C92A2A", Dark: "#FF6B6B"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#D9480F", Dark: "#FFA94D"} // searching, no answers
	MutedColor   = lipgloss.AdaptiveColor{Light: "#868E96", Dark: "#6C757D"}
	TextColor    = lipgloss.AdaptiveColor{Light: "#212529", Dark: "#F8F9FA"}
)

const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

var (
	// HeaderTitleStyle renders the command title, e.g. "SERVICE DISCOVERY"
	HeaderTitleStyle = lipgloss.NewStyle().Foreground(TextColor).Bold(true).PaddingLeft(2)

	// HeaderCommandStyle renders the invoked command path
	HeaderCommandStyle    = lipgloss.NewStyle().Foreground(MutedColor).PaddingLeft(2)
	HeaderParamKeyStyle   = lipgloss.NewStyle().Foreground(MutedColor).PaddingLeft(2)
	HeaderParamValueStyle = lipgloss.NewStyle().Foreground(TextColor)

	SuccessTitleStyle = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	WarningTitleStyle = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	ErrorTitleStyle   = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	ErrorMessageStyle = lipgloss.NewStyle().Foreground(ErrorColor)

	ResultKeyStyle   = lipgloss.NewStyle().Foreground(MutedColor).Width(15)
	ResultValueStyle = lipgloss.NewStyle().Foreground(TextColor)

	TroubleshootingTitleStyle = lipgloss.NewStyle().Foreground(MutedColor).Bold(true)
	TroubleshootingItemStyle  = lipgloss.NewStyle().Foreground(MutedColor)

	// Monitor
	ListHeaderStyle = lipgloss.NewStyle().Foreground(AccentColor).Bold(true)
	ResolvedStyle   = lipgloss.NewStyle().Foreground(SuccessColor)
	PendingStyle    = lipgloss.NewStyle().Foreground(WarningColor)
	FooterStyle     = lipgloss.NewStyle().Foreground(MutedColor).Italic(true)
)

const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	PendingMarker = "●"
)

// GetTerminalWidth returns the stdout width clamped to
// [MinTerminalWidth, MaxContentWidth].
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	switch {
	case err != nil, width < MinTerminalWidth:
		return MinTerminalWidth
	case width > MaxContentWidth:
		return MaxContentWidth
	}
	return width
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// HeaderBorderStyle is the rounded box drawn around command headers.
func HeaderBorderStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AccentColor).
		Width(width - 2)
}

func RenderHorizontalDivider(width int, char string) string {
	return lipgloss.NewStyle().Foreground(AccentColor).Render(strings.Repeat(char, width))
}
