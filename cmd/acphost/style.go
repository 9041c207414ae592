package main

import lipglossv2 "charm.land/lipgloss/v2"

// Styles used by the prompt and doctor commands. Kept deliberately small —
// this is a terminal client printing a scrolling transcript, not a full
// Bubbletea program, so styles are applied line by line rather than through
// a model's View().
var (
	styleThought     = lipglossv2.NewStyle().Faint(true).Italic(true)
	styleToolTitle   = lipglossv2.NewStyle().Bold(true)
	styleToolRunning = lipglossv2.NewStyle().Foreground(lipglossv2.Color("11"))
	styleToolDone    = lipglossv2.NewStyle().Foreground(lipglossv2.Color("10"))
	styleToolFailed  = lipglossv2.NewStyle().Foreground(lipglossv2.Color("9"))
	stylePlanTitle   = lipglossv2.NewStyle().Bold(true).Underline(true)
	styleDiffAdd     = lipglossv2.NewStyle().Foreground(lipglossv2.Color("10"))
	styleDiffDel     = lipglossv2.NewStyle().Foreground(lipglossv2.Color("9"))
	styleDiffHunk    = lipglossv2.NewStyle().Faint(true)
	styleErr         = lipglossv2.NewStyle().Bold(true).Foreground(lipglossv2.Color("9"))
	styleStatusBar   = lipglossv2.NewStyle().Faint(true)
)

func toolStatusStyle(status string) lipglossv2.Style {
	switch status {
	case "complete":
		return styleToolDone
	case "failed":
		return styleToolFailed
	default:
		return styleToolRunning
	}
}
