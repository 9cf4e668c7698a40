// Package main is the entry point for the researchdesk-replay CLI.
// A standalone viewer for recorded chat transcripts.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/vinayprograms/researchdesk/internal/replay"
)

// Build-time variables
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	args := os.Args[1:]

	verbosity := 0 // 0=normal, 1=-v, 2=-vv
	noInteractive := false
	liveMode := false
	maxContent := -1
	var paths []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-vv":
			verbosity = 2
		case args[i] == "-v" || args[i] == "--verbose":
			if verbosity < 1 {
				verbosity = 1
			}
		case args[i] == "--no-pager":
			noInteractive = true
		case args[i] == "-f" || args[i] == "--follow" || args[i] == "--live":
			liveMode = true
		case strings.HasPrefix(args[i], "--max-content="):
			n, err := parseSize(strings.TrimPrefix(args[i], "--max-content="))
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: invalid --max-content: %v\n", err)
				os.Exit(1)
			}
			maxContent = n
		case args[i] == "-h" || args[i] == "--help":
			printUsage()
			os.Exit(0)
		case args[i] == "--version":
			fmt.Printf("researchdesk-replay version %s (commit: %s, built: %s)\n", version, commit, buildTime)
			os.Exit(0)
		case !strings.HasPrefix(args[i], "-"):
			paths = append(paths, args[i])
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			os.Exit(1)
		}
	}

	if len(paths) == 0 {
		printUsage()
		os.Exit(1)
	}

	var opts []replay.ReplayerOption
	if maxContent >= 0 {
		opts = append(opts, replay.WithMaxContentSize(maxContent))
	}

	if err := run(paths, verbosity, liveMode, noInteractive, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(paths []string, verbosity int, live, noInteractive bool, opts []replay.ReplayerOption) error {
	if live {
		if len(paths) != 1 {
			return fmt.Errorf("--follow only works with a single transcript file")
		}
		info, err := os.Stat(paths[0])
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("--follow requires a file, not a directory")
		}
		return replay.New(os.Stdout, verbosity, opts...).ReplayFileLive(paths[0])
	}

	files, err := replay.ExpandPaths(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no transcript files found")
	}

	r := replay.NewMulti(os.Stdout, verbosity, opts...)
	if !noInteractive && isTerminal(os.Stdout) {
		return r.ReplayFilesInteractive(files)
	}
	return r.ReplayFiles(files)
}

// parseSize parses a byte count with an optional k or m suffix.
func parseSize(s string) (int, error) {
	mult := 1
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult, s = 1024, s[:len(s)-1]
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		mult, s = 1024*1024, s[:len(s)-1]
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 {
		return 0, fmt.Errorf("expected a non-negative size like 64k, got %q", s)
	}
	return n * mult, nil
}

func printUsage() {
	fmt.Println(`researchdesk-replay - Viewer for recorded chat transcripts

Usage:
  researchdesk-replay [options] <transcript.jsonl>...
  researchdesk-replay [options] <directory>
  researchdesk-replay -f <transcript.jsonl>   # Live mode

Arguments:
  <transcript.jsonl>  One or more transcript files
  <directory>         Directory containing transcripts (*.jsonl)

Options:
  -f, --follow        Live mode - watch file for changes and reload
  -v, --verbose       Show message bodies and prompt text
  -vv                 Very verbose - never cap long messages
  --max-content=SIZE  Truncate event content beyond SIZE (default 50k, 0 = unlimited)
  --no-pager          Disable interactive pager (for piping)
  --version           Show version
  -h, --help          Show this help

Examples:
  researchdesk-replay ~/.researchdesk/transcripts/
  researchdesk-replay -v 7f1c2a9e.jsonl
  researchdesk-replay --no-pager 7f1c2a9e.jsonl | grep CHOICE
  researchdesk-replay -f 7f1c2a9e.jsonl       # Watch a running session

Navigation (interactive mode):
  ↑/↓, j/k          Scroll line by line
  PgUp/PgDn         Scroll by page
  g/G               Jump to top/bottom
  /, n/N            Search, next/previous match
  f                 Follow (jump to bottom, useful in live mode)
  q, Esc            Quit`)
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
