package ui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF") // headings
	colorSuccess = lipgloss.Color("#00E676") // converged, matched
	colorWarning = lipgloss.Color("#FFD700") // capped, mismatched
	colorDanger  = lipgloss.Color("#FF5252") // failures
	colorMuted   = lipgloss.Color("#8C8C8C") // de-emphasized
)

// Status icons.
const (
	iconDone    = "✓"
	iconFailed  = "✗"
	iconWarn    = "⚠"
	iconTrial   = "◆"
	iconPending = "·"
)

// Text styles.
var (
	styleHeading = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleDanger  = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleLabel   = lipgloss.NewStyle().Width(14)
)
