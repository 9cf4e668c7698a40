package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/researchdesk/internal/ui"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	chatbotStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))
)

// avatarPalette colors authors by the avatar image they registered, so
// authors sharing an image share a color.
var avatarPalette = []lipgloss.Color{"14", "13", "12", "208", "11"}

func authorStyle(author string, avatars map[string]lipgloss.Color) lipgloss.Style {
	switch author {
	case ui.UserAuthor:
		return userStyle
	case ui.DefaultAuthor:
		return chatbotStyle
	}
	if c, ok := avatars[author]; ok {
		return lipgloss.NewStyle().Bold(true).Foreground(c)
	}
	return chatbotStyle
}
