package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayprograms/researchdesk/internal/chat"
	"github.com/vinayprograms/researchdesk/internal/logging"
	"github.com/vinayprograms/researchdesk/internal/transcript"
)

// Run opens a single terminal session and blocks until the user quits or
// ctx ends. Every surface call is recorded to sinks.
func Run(ctx context.Context, handlers *chat.Handlers, sinks ...transcript.Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel("researchdesk", nil)
	prog := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	rec := transcript.Recording(NewSurface(prog.Send), "tui", sinks...)
	sess := chat.NewSession(rec)
	defer sess.Close()

	logger := logging.New().WithComponent("tui").WithSession(sess.ID())

	m.submit = func(text string) error {
		err := handlers.OnMessage(ctx, sess, text)
		if err != nil {
			logger.Error("conversation failed", map[string]interface{}{"error": err.Error()})
			chat.ReportError(ctx, rec, err)
		}
		return err
	}

	go func() {
		if err := handlers.OnSessionStart(ctx, sess); err != nil {
			logger.Error("session start failed", map[string]interface{}{"error": err.Error()})
			chat.ReportError(ctx, rec, err)
		}
	}()

	_, err := prog.Run()
	interrupted := ctx.Err() != nil
	// Stop any running conversation before the transcript footer is written.
	cancel()
	if errors.Is(err, tea.ErrProgramKilled) && interrupted {
		return nil
	}
	return err
}
