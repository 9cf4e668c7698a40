// Package replay renders chat transcripts for review.
package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/researchdesk/internal/bridge"
	"github.com/vinayprograms/researchdesk/internal/ui"
)

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	// Prompts waiting on the human - Yellow
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11"))

	// The human - Green
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	// Hosted assistants - Blue
	hostedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	// Local LLM assistant - Magenta
	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("13"))

	// Human proxy - Cyan
	proxyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("━", 60))
)

func authorStyle(author string) lipgloss.Style {
	switch author {
	case ui.UserAuthor:
		return userStyle
	case bridge.AuthorHostedAssistant:
		return hostedStyle
	case bridge.AuthorAssistant:
		return assistantStyle
	case bridge.AuthorUserProxy:
		return proxyStyle
	}
	return titleStyle
}
