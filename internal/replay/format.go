package replay

import (
	"fmt"
	"strings"

	"github.com/vinayprograms/researchdesk/internal/transcript"
)

// formatEvent writes one timeline row, plus content lines when verbose.
func (r *Replayer) formatEvent(event *transcript.Event) {
	ts := timeStyle.Render(event.Timestamp.Format("15:04:05"))
	seqNum := seqStyle.Render(fmt.Sprintf("%d", event.SeqID))

	switch event.Type {
	case transcript.EventMessage:
		r.fmtMessage(seqNum, ts, event)
	case transcript.EventAvatar:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
			dimStyle.Render("AVATAR"), valueStyle.Render(event.Author), dimStyle.Render("→ "+event.Content))
	case transcript.EventUserMessage:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			userStyle.Render("TASK"), valueStyle.Render(truncateHint(event.Content, 80)))
	case transcript.EventAsk:
		r.fmtAsk(seqNum, ts, event)
	case transcript.EventReply:
		r.fmtReply(seqNum, ts, event)
	case transcript.EventAction:
		r.fmtAction(seqNum, ts, event)
	case transcript.EventActionReply:
		r.fmtActionReply(seqNum, ts, event)
	case transcript.EventConversation:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			titleStyle.Render("CONVERSATION END"), dimStyle.Render(event.Content))
	case transcript.EventError:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			errorStyle.Render("ERROR"), errorStyle.Render(truncateHint(event.Content, 100)))
	default:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, dimStyle.Render(event.Type))
	}
}

func (r *Replayer) fmtMessage(seqNum, ts string, event *transcript.Event) {
	recipient, body := splitNotice(event.Content)
	label := authorStyle(event.Author).Render(event.Author)
	if recipient != "" {
		label += dimStyle.Render(" → " + recipient)
	}

	if r.verbosity == 0 {
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts, label, valueStyle.Render(truncateHint(body, 80)))
		return
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, label)
	r.printContent(body)
}

func (r *Replayer) fmtAsk(seqNum, ts string, event *transcript.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
		promptStyle.Render("ASK"), authorStyle(event.Author).Render(event.Author))
	if r.verbosity >= 1 && event.Content != "" {
		r.printContent(event.Content)
	}
}

func (r *Replayer) fmtReply(seqNum, ts string, event *transcript.Event) {
	wait := dimStyle.Render(fmt.Sprintf("(%s)", formatDuration(event.DurationMs)))
	if event.TimedOut {
		fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
			userStyle.Render("REPLY"), warnStyle.Render("timed out"), wait)
		return
	}
	content := strings.TrimSpace(event.Content)
	if content == "" {
		content = dimStyle.Render("(empty)")
	} else {
		content = valueStyle.Render(truncateHint(content, 80))
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts, userStyle.Render("REPLY"), content, wait)
}

func (r *Replayer) fmtAction(seqNum, ts string, event *transcript.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
		promptStyle.Render("CHOOSE"), authorStyle(event.Author).Render(event.Author),
		dimStyle.Render("["+strings.Join(event.Actions, " | ")+"]"))
	if r.verbosity >= 1 && event.Content != "" {
		r.printContent(event.Content)
	}
}

func (r *Replayer) fmtActionReply(seqNum, ts string, event *transcript.Event) {
	wait := dimStyle.Render(fmt.Sprintf("(%s)", formatDuration(event.DurationMs)))
	if event.TimedOut || event.Choice == "" {
		fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
			userStyle.Render("CHOICE"), warnStyle.Render("dismissed"), wait)
		return
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
		userStyle.Render("CHOICE"), choiceStyle(event.Choice).Render(event.Choice), wait)
}
