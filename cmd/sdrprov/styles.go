// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output.
const (
	// ColorPrimary is purple - used for titles and section headers.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray - used for subtitles and secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green - used for satisfied tools and packages.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red - used for fatal errors and failed items.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber - used for tolerated failures.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is blue - used for paths and commands.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

//nolint:gochecknoglobals // shared styles
var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages and positive indicators.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages and failure indicators.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warning messages and caution indicators.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// PathStyle is for filesystem paths and command names.
	PathStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// sectionStyle separates summary sections.
	sectionStyle = TitleStyle.
			MarginTop(1)

	// nameStyle pads item names into a column.
	nameStyle = lipgloss.NewStyle().
			Width(18)
)
