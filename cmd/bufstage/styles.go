// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Palette for dark terminal backgrounds. lipgloss drops colors when output
// is not a terminal.
var (
	purple = lipgloss.Color("#7C3AED")
	gray   = lipgloss.Color("#6B7280")
	green  = lipgloss.Color("#10B981")
	red    = lipgloss.Color("#EF4444")
	amber  = lipgloss.Color("#F59E0B")
	blue   = lipgloss.Color("#3B82F6")
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(purple)
	SubtitleStyle = lipgloss.NewStyle().Foreground(gray)
	SuccessStyle  = lipgloss.NewStyle().Foreground(green)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(red)
	WarningStyle  = lipgloss.NewStyle().Foreground(amber)

	// CmdStyle renders command lines and paths.
	CmdStyle = lipgloss.NewStyle().Foreground(blue)

	// LabelStyle renders field labels in dry-run output.
	LabelStyle = lipgloss.NewStyle().Bold(true).Foreground(blue)
)
