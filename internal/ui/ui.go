// Package ui renders deskctl's terminal output: styled status lines,
// spinners, and tables that degrade to tab-separated text when stdout is
// not a terminal.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Status marks.
const (
	Tick  = "✅"
	Cross = "❌"
)

var (
	TypeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	IdentityStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	LabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2794d8"))
	ValueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	AddressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	HeadingStyle  = lipgloss.NewStyle().Bold(true)
	EmphasisStyle = lipgloss.NewStyle().Underline(true)
	LinkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	CommandStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("68"))
	OKStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	WarnStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	CritStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	DimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or 80 when it cannot be
// determined.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// Mark returns the tick or cross for ok.
func Mark(ok bool) string {
	if ok {
		return Tick
	}
	return Cross
}

// Command renders a shell command the user is invited to run.
func Command(cmd string) string {
	return CommandStyle.Render("'" + cmd + "'")
}

// Wrap soft-wraps text to width columns.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
