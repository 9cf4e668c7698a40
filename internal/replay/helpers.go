package replay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/researchdesk/internal/transcript"
)

// printContent prints verbose content with timeline indentation.
func (r *Replayer) printContent(content string) {
	lines := strings.Split(content, "\n")
	maxLines := 20
	if r.verbosity >= 2 {
		maxLines = len(lines)
	}
	for i, line := range lines {
		if i >= maxLines {
			fmt.Fprintf(r.output, "      │          │   %s\n",
				dimStyle.Render(fmt.Sprintf("... (%d more lines)", len(lines)-maxLines)))
			break
		}
		fmt.Fprintf(r.output, "      │          │   %s\n", line)
	}
}

// splitNotice separates a forwarded-message notice into its recipient and
// body. Other content is returned unchanged with an empty recipient.
func splitNotice(content string) (recipient, body string) {
	const prefix = `*Sending message to "`
	if !strings.HasPrefix(content, prefix) {
		return "", content
	}
	rest := content[len(prefix):]
	for _, closing := range []string{`":*`, `"*:`} {
		if end := strings.Index(rest, closing); end >= 0 {
			return rest[:end], strings.TrimLeft(rest[end+len(closing):], "\n")
		}
	}
	return "", content
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case transcript.StatusComplete:
		return successStyle
	case transcript.StatusFailed:
		return errorStyle
	default:
		return warnStyle
	}
}

func choiceStyle(choice string) lipgloss.Style {
	switch choice {
	case "continue":
		return successStyle
	case "exit":
		return errorStyle
	default:
		return warnStyle
	}
}

// truncateHint truncates a string to maxLen, adding ... if needed.
func truncateHint(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats milliseconds as human-readable duration.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm%ds", mins, secs)
}
