package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorDarkGray)

	ComponentStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	StateStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	CurrentStateStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true).
				Underline(true)

	EventStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	GuardStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	ControllerStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// StateText styles a state key
func StateText(text string) string {
	return StateStyle.Render(text)
}

// CurrentStateText styles the key that is currently active
func CurrentStateText(text string) string {
	return CurrentStateStyle.Render(text)
}

// EventText styles an event name
func EventText(text string) string {
	return EventStyle.Render(text)
}

// GuardText styles a guard annotation
func GuardText(text string) string {
	return GuardStyle.Render(text)
}

// ControllerText styles a controller name
func ControllerText(text string) string {
	return ControllerStyle.Render(text)
}

// ValidText styles valid status text (green)
func ValidText(text string) string {
	return StateStyle.Render(text)
}

// ErrorText styles error text (red)
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}

// PathText styles file paths (gray)
func PathText(text string) string {
	return InfoStyle.Render(text)
}

// SummaryText styles summary information (dark gray)
func SummaryText(text string) string {
	return BranchStyle.Render(text)
}

// CountText styles count numbers (cyan)
func CountText(text string) string {
	return ComponentStyle.Render(text)
}
