// Package tui is the terminal front end.
//
// The Surface forwards every request into a running bubbletea program and
// blocks on a reply channel the model answers once the user has typed or
// chosen something.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayprograms/researchdesk/internal/ui"
)

type publishMsg struct{ msg ui.Message }

type avatarMsg struct{ avatar ui.Avatar }

type askMsg struct {
	req   ui.AskRequest
	reply chan *ui.AskReply
}

type actionMsg struct {
	req   ui.ActionRequest
	reply chan *ui.ActionReply
}

// Surface implements ui.Surface over a bubbletea program.
type Surface struct {
	send func(tea.Msg)
}

var _ ui.Surface = (*Surface)(nil)

// NewSurface returns a Surface that delivers messages with send, normally
// (*tea.Program).Send.
func NewSurface(send func(tea.Msg)) *Surface {
	return &Surface{send: send}
}

func (s *Surface) Publish(ctx context.Context, msg ui.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.send(publishMsg{msg: msg})
	return nil
}

func (s *Surface) RegisterAvatar(ctx context.Context, avatar ui.Avatar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.send(avatarMsg{avatar: avatar})
	return nil
}

func (s *Surface) AskUser(ctx context.Context, req ui.AskRequest) (*ui.AskReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := make(chan *ui.AskReply, 1)
	s.send(askMsg{req: req, reply: reply})
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Surface) AskAction(ctx context.Context, req ui.ActionRequest) (*ui.ActionReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := make(chan *ui.ActionReply, 1)
	s.send(actionMsg{req: req, reply: reply})
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
