package replay

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vinayprograms/researchdesk/internal/transcript"
)

// Replayer formats transcripts as a timeline.
type Replayer struct {
	output         io.Writer
	verbosity      int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
	maxContentSize int // Maximum size for Content fields (0 = unlimited)
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithMaxContentSize limits Content field size to avoid OOM on large transcripts.
func WithMaxContentSize(size int) ReplayerOption {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// New creates a new Replayer.
func New(output io.Writer, verbosity int, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		output:         output,
		verbosity:      verbosity,
		maxContentSize: 50 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads a transcript file, truncating oversized content.
func (r *Replayer) Load(path string) (*transcript.Transcript, error) {
	tr, err := transcript.Load(path)
	if err != nil {
		return nil, err
	}
	if r.maxContentSize > 0 {
		for i := range tr.Events {
			if n := len(tr.Events[i].Content); n > r.maxContentSize {
				tr.Events[i].Content = tr.Events[i].Content[:r.maxContentSize] +
					fmt.Sprintf("\n... [truncated, %d bytes total]", n)
			}
		}
	}
	return tr, nil
}

// ReplayFile loads and replays a transcript from a file.
func (r *Replayer) ReplayFile(path string) error {
	tr, err := r.Load(path)
	if err != nil {
		return err
	}
	return r.Replay(tr)
}

// ReplayFileInteractive loads and replays a transcript in the pager.
func (r *Replayer) ReplayFileInteractive(path string) error {
	tr, err := r.Load(path)
	if err != nil {
		return err
	}
	return NewPager(fmt.Sprintf("Session: %s", tr.ID)).Run(r.render(tr))
}

// ReplayFileLive replays a transcript in the pager and reloads it as the
// file grows.
func (r *Replayer) ReplayFileLive(path string) error {
	tr, err := r.Load(path)
	if err != nil {
		return err
	}
	renderFunc := func() (string, error) {
		tr, err := r.Load(path)
		if err != nil {
			return "", err
		}
		return r.render(tr), nil
	}
	return NewPager(fmt.Sprintf("Session: %s (LIVE)", tr.ID)).RunLive(path, renderFunc)
}

// Replay writes the header, timeline, and summary of tr.
func (r *Replayer) Replay(tr *transcript.Transcript) error {
	r.printHeader(tr)
	r.printTimeline(tr)
	r.printSummary(tr)
	return nil
}

func (r *Replayer) render(tr *transcript.Transcript) string {
	var buf strings.Builder
	out := r.output
	r.output = &buf
	r.Replay(tr)
	r.output = out
	return buf.String()
}

func (r *Replayer) printHeader(tr *transcript.Transcript) {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(tr.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Surface:"), valueStyle.Render(tr.Surface))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status: "), statusStyle(tr.Status).Render(tr.Status))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created:"), valueStyle.Render(tr.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(tr *transcript.Transcript) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(tr.Events))))
	fmt.Fprintln(r.output, divider)

	for i := range tr.Events {
		r.formatEvent(&tr.Events[i])
	}
}

func (r *Replayer) printSummary(tr *transcript.Transcript) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	switch tr.Status {
	case transcript.StatusComplete:
		fmt.Fprintln(r.output, successStyle.Render("COMPLETED"))
	case transcript.StatusFailed:
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(tr.Error))
	default:
		fmt.Fprintln(r.output, warnStyle.Render("RUNNING"))
	}

	PrintStats(r.output, ComputeStats(tr))
}
