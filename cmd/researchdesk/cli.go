// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Config   string `short:"c" help:"Config file path (default: ./researchdesk.toml)" type:"path"`
	LogLevel string `help:"Override log level (debug, info, warn, error)"`

	Tui     TuiCmd     `cmd:"" default:"withargs" help:"Chat in the terminal"`
	Serve   ServeCmd   `cmd:"" help:"Serve the browser chat"`
	Replay  ReplayCmd  `cmd:"" help:"Replay a recorded chat transcript"`
	Show    ConfigCmd  `cmd:"" name:"config" help:"Print the effective configuration"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// TuiCmd runs the terminal chat.
type TuiCmd struct {
	NoTranscript bool `help:"Do not record a transcript for this session"`
}

// ServeCmd runs the browser chat.
type ServeCmd struct {
	Addr    string `help:"Listen address (overrides web.addr)"`
	Tailnet string `help:"Serve on the tailnet under this hostname (overrides web.tailnet_hostname)"`
}

// ReplayCmd replays a transcript.
type ReplayCmd struct {
	Transcripts []string `arg:"" help:"Transcript file(s) or directories"`
	Verbose     int      `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	NoPager     bool     `help:"Disable pager for output"`
	Live        bool     `short:"f" help:"Follow a running session"`
}

// ConfigCmd prints the effective configuration.
type ConfigCmd struct {
	Format string `enum:"toml,yaml" default:"toml" help:"Output format (toml, yaml)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
