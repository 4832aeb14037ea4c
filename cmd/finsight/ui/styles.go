// Package ui provides the visual styling for the finsight interactive CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("#101F38") // dark blue
	ColorAccent  = lipgloss.Color("#8BC34A") // lime green
	ColorMuted   = lipgloss.Color("#6c7a92")
	ColorBorder  = lipgloss.Color("#2a3850")

	ColorError   = lipgloss.Color("#e53935")
	ColorWarning = lipgloss.Color("#FFC107")
	ColorInfo    = lipgloss.Color("#2196F3")
)

// Styles holds the lipgloss styles used by the chat view.
type Styles struct {
	Title       lipgloss.Style
	Prompt      lipgloss.Style
	UserInput   lipgloss.Style
	UserLabel   lipgloss.Style
	BotLabel    lipgloss.Style
	Denied      lipgloss.Style
	Invalid     lipgloss.Style
	ContextLine lipgloss.Style
	HelpBar     lipgloss.Style
	Viewport    lipgloss.Style
}

// DefaultStyles returns the default chat styling.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent),
		Prompt: lipgloss.NewStyle().
			Foreground(ColorAccent),
		UserInput: lipgloss.NewStyle(),
		UserLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorInfo),
		BotLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent),
		Denied: lipgloss.NewStyle().
			Foreground(ColorError),
		Invalid: lipgloss.NewStyle().
			Foreground(ColorWarning),
		ContextLine: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true),
		HelpBar: lipgloss.NewStyle().
			Foreground(ColorMuted),
		Viewport: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder),
	}
}
