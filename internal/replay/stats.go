package replay

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/researchdesk/internal/transcript"
)

// Stats holds aggregate statistics for a transcript.
type Stats struct {
	TotalDurationMs int64

	Tasks         int
	Conversations int
	Errors        int

	Messages         int
	MessagesByAuthor map[string]int

	// Prompts shown to the human and how they were answered.
	Prompts  int
	Answered int
	TimedOut int
	Choices  map[string]int

	// Time the conversation spent waiting on the human.
	WaitTotalMs int64
	WaitAvgMs   int64
}

// ComputeStats calculates aggregate statistics from transcript events.
func ComputeStats(tr *transcript.Transcript) *Stats {
	stats := &Stats{
		MessagesByAuthor: make(map[string]int),
		Choices:          make(map[string]int),
	}

	var first, last time.Time
	for _, event := range tr.Events {
		if first.IsZero() || event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if last.IsZero() || event.Timestamp.After(last) {
			last = event.Timestamp
		}

		switch event.Type {
		case transcript.EventMessage:
			stats.Messages++
			stats.MessagesByAuthor[event.Author]++
		case transcript.EventUserMessage:
			stats.Tasks++
		case transcript.EventConversation:
			stats.Conversations++
		case transcript.EventError:
			stats.Errors++
		case transcript.EventAsk, transcript.EventAction:
			stats.Prompts++
		case transcript.EventReply, transcript.EventActionReply:
			stats.WaitTotalMs += event.DurationMs
			if event.TimedOut {
				stats.TimedOut++
			} else {
				stats.Answered++
			}
			if event.Type == transcript.EventActionReply && event.Choice != "" {
				stats.Choices[event.Choice]++
			}
		}
	}

	if !first.IsZero() {
		stats.TotalDurationMs = last.Sub(first).Milliseconds()
	}
	if n := stats.Answered + stats.TimedOut; n > 0 {
		stats.WaitAvgMs = stats.WaitTotalMs / int64(n)
	}
	return stats
}

// PrintStats outputs the statistics to the writer.
func PrintStats(w io.Writer, stats *Stats) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("═══════════════════════════════════════════════════════════════════"))
	fmt.Fprintln(w, headerStyle.Render("                         SESSION STATISTICS                         "))
	fmt.Fprintln(w, headerStyle.Render("═══════════════════════════════════════════════════════════════════"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Total Duration:"), valueStyle.Render(formatDuration(stats.TotalDurationMs)))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Tasks:         "), valueStyle.Render(fmt.Sprintf("%d", stats.Tasks)))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Conversations: "), valueStyle.Render(fmt.Sprintf("%d", stats.Conversations)))
	if stats.Errors > 0 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Errors:        "), errorStyle.Render(fmt.Sprintf("%d", stats.Errors)))
	}
	fmt.Fprintln(w)

	if stats.Messages > 0 {
		fmt.Fprintln(w, headerStyle.Render("Messages by Author:"))
		authors := make([]string, 0, len(stats.MessagesByAuthor))
		for a := range stats.MessagesByAuthor {
			authors = append(authors, a)
		}
		sort.Strings(authors)
		for _, a := range authors {
			fmt.Fprintf(w, "  %s %s\n", authorStyle(a).Render(a+":"), valueStyle.Render(fmt.Sprintf("%d", stats.MessagesByAuthor[a])))
		}
		fmt.Fprintln(w)
	}

	if stats.Prompts > 0 {
		fmt.Fprintln(w, headerStyle.Render("Human Input:"))
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Prompts:"), valueStyle.Render(fmt.Sprintf("%d", stats.Prompts)))
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Answered:"), valueStyle.Render(fmt.Sprintf("%d", stats.Answered)))
		if stats.TimedOut > 0 {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Timed out:"), warnStyle.Render(fmt.Sprintf("%d", stats.TimedOut)))
		}
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Average wait:"), valueStyle.Render(formatDuration(stats.WaitAvgMs)))
		if len(stats.Choices) > 0 {
			choices := make([]string, 0, len(stats.Choices))
			for c := range stats.Choices {
				choices = append(choices, c)
			}
			sort.Strings(choices)
			for _, c := range choices {
				fmt.Fprintf(w, "  %s %s\n", choiceStyle(c).Render(c+":"), valueStyle.Render(fmt.Sprintf("%d", stats.Choices[c])))
			}
		}
		fmt.Fprintln(w)
	}
}
