// Package logging configures the agentkit logger for every component and adds
// the group chat events.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	aklog "github.com/vinayprograms/agentkit/logging"
)

// Level represents log severity.
type Level = aklog.Level

const (
	LevelDebug = aklog.LevelDebug
	LevelInfo  = aklog.LevelInfo
	LevelWarn  = aklog.LevelWarn
	LevelError = aklog.LevelError
)

// switchWriter is the shared output of every logger built by New.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

var (
	output = &switchWriter{w: os.Stderr}

	levelMu      sync.RWMutex
	defaultLevel = LevelInfo
)

// SetDefaultOutput redirects every logger built by New, including loggers
// created before the call. The terminal UI uses this to keep log lines off
// the screen it draws. A nil writer restores stderr.
func SetDefaultOutput(w io.Writer) {
	output.set(w)
}

// SetDefaultLevel sets the minimum level of loggers built after the call.
func SetDefaultLevel(level Level) {
	levelMu.Lock()
	defer levelMu.Unlock()
	defaultLevel = level
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is an agentkit logger that remembers its component.
type Logger struct {
	*aklog.Logger
	component string
}

// New creates a logger writing to the shared output at the default level.
func New() *Logger {
	l := aklog.New()
	l.SetOutput(output)
	levelMu.RLock()
	l.SetLevel(defaultLevel)
	levelMu.RUnlock()
	return &Logger{Logger: l}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.WithComponent(component), component: component}
}

// WithSession returns a new logger traced to a chat session. The session ID
// is shown next to the component tag.
func (l *Logger) WithSession(id string) *Logger {
	tag := id
	if l.component != "" {
		tag = l.component + " " + id
	}
	return &Logger{Logger: l.Logger.WithTraceID(id).WithComponent(tag), component: l.component}
}

// RoundStart logs the speaker chosen for a group chat round.
func (l *Logger) RoundStart(round int, speaker string) {
	l.Info("round_start", map[string]interface{}{
		"round":   round,
		"speaker": speaker,
	})
}

// ConversationComplete logs the end of a group chat.
func (l *Logger) ConversationComplete(rounds int, duration time.Duration, reason string) {
	l.Info("conversation_complete", map[string]interface{}{
		"rounds":   rounds,
		"duration": duration.String(),
		"reason":   reason,
	})
}
