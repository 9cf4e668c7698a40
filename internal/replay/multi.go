package replay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/researchdesk/internal/transcript"
)

// MultiReplayer handles multiple transcript files.
type MultiReplayer struct {
	output    io.Writer
	verbosity int
	opts      []ReplayerOption
}

// NewMulti creates a new MultiReplayer.
func NewMulti(output io.Writer, verbosity int, opts ...ReplayerOption) *MultiReplayer {
	return &MultiReplayer{
		output:    output,
		verbosity: verbosity,
		opts:      opts,
	}
}

type transcriptInfo struct {
	Transcript *transcript.Transcript
	Source     string
}

// ReplayFiles outputs multiple transcripts to the writer, oldest first.
func (m *MultiReplayer) ReplayFiles(paths []string) error {
	infos, err := m.load(paths)
	if err != nil {
		return err
	}
	return m.replayAll(m.output, infos)
}

// ReplayFilesInteractive shows multiple transcripts in the pager.
func (m *MultiReplayer) ReplayFilesInteractive(paths []string) error {
	infos, err := m.load(paths)
	if err != nil {
		return err
	}

	var buf strings.Builder
	if err := m.replayAll(&buf, infos); err != nil {
		return err
	}

	title := fmt.Sprintf("%d session(s)", len(infos))
	if len(infos) == 1 {
		title = fmt.Sprintf("Session: %s", infos[0].Transcript.ID)
	}
	return NewPager(title).Run(buf.String())
}

func (m *MultiReplayer) load(paths []string) ([]transcriptInfo, error) {
	r := New(m.output, m.verbosity, m.opts...)
	var infos []transcriptInfo
	for _, path := range paths {
		tr, err := r.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		infos = append(infos, transcriptInfo{Transcript: tr, Source: path})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Transcript.CreatedAt.Before(infos[j].Transcript.CreatedAt)
	})
	return infos, nil
}

func (m *MultiReplayer) replayAll(w io.Writer, infos []transcriptInfo) error {
	r := New(w, m.verbosity, m.opts...)
	for i, info := range infos {
		if len(infos) > 1 {
			printSessionHeader(w, info, i+1, len(infos))
		}
		if err := r.Replay(info.Transcript); err != nil {
			return fmt.Errorf("failed to replay %s: %w", info.Source, err)
		}
		if i < len(infos)-1 {
			fmt.Fprintln(w)
		}
	}
	return nil
}

var (
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("6"))

	sessionDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6"))
)

func printSessionHeader(w io.Writer, info transcriptInfo, num, total int) {
	shortID := info.Transcript.ID
	if len(shortID) > 12 {
		shortID = shortID[:12]
	}
	header := fmt.Sprintf(" [%d/%d] %s │ %s │ %s ", num, total,
		info.Transcript.Surface,
		shortID,
		info.Transcript.CreatedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, sessionDividerStyle.Render(strings.Repeat("━", 70)))
	fmt.Fprintln(w, sessionHeaderStyle.Render(header))
	fmt.Fprintln(w, sessionDividerStyle.Render(strings.Repeat("━", 70)))
}

// ExpandPaths takes file paths and directories and returns every transcript
// file among them. Directories contribute their *.jsonl files.
func ExpandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", p, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
				files = append(files, filepath.Join(p, entry.Name()))
			}
		}
	}
	return files, nil
}
