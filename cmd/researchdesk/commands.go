package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/researchdesk/internal/config"
	"github.com/vinayprograms/researchdesk/internal/logging"
	"github.com/vinayprograms/researchdesk/internal/replay"
	"github.com/vinayprograms/researchdesk/internal/tui"
	"github.com/vinayprograms/researchdesk/internal/web"
)

// loadConfig loads the --config file or ./researchdesk.toml and applies
// the log level.
func (c *CLI) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.Config != "" {
		cfg, err = config.LoadFile(c.Config)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	logging.SetDefaultLevel(logging.ParseLevel(cfg.Log.Level))
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run starts the terminal chat.
func (t *TuiCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	rt := newRuntime(cfg, globalCreds)
	defer rt.close()
	// The terminal belongs to the chat from here on.
	if err := rt.logToFile(); err != nil {
		return err
	}
	if err := rt.setup(!t.NoTranscript); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return tui.Run(ctx, rt.handlers(), rt.sinks...)
}

// Run starts the browser chat.
func (s *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Web.Addr = s.Addr
	}
	if s.Tailnet != "" {
		cfg.Web.TailnetHostname = s.Tailnet
	}

	rt := newRuntime(cfg, globalCreds)
	defer rt.close()
	if err := rt.setup(true); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	srv := web.NewServer(cfg.Web, rt.handlers(), rt.sinks...)
	return srv.ListenAndServe(ctx, cfg.StoragePath())
}

// Run replays transcripts.
func (r *ReplayCmd) Run() error {
	if r.Live {
		if len(r.Transcripts) != 1 {
			return fmt.Errorf("--live only works with a single transcript file")
		}
		return replay.New(os.Stdout, r.Verbose).ReplayFileLive(r.Transcripts[0])
	}

	files, err := replay.ExpandPaths(r.Transcripts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no transcript files found")
	}

	m := replay.NewMulti(os.Stdout, r.Verbose)
	if !r.NoPager && isTerminal(os.Stdout) {
		return m.ReplayFilesInteractive(files)
	}
	return m.ReplayFiles(files)
}

// Run prints the effective configuration.
func (c *ConfigCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	return writeConfig(os.Stdout, cfg, c.Format)
}

// Run prints version information.
func (v *VersionCmd) Run() error {
	fmt.Printf("researchdesk version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(w).Encode(cfg)
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
