// Package uitest provides a scripted ui.Surface for tests.
package uitest

import (
	"context"
	"sync"

	"github.com/vinayprograms/researchdesk/internal/ui"
)

// Surface records every call and answers prompts from scripted queues.
// An exhausted queue answers with nil, which reads as a timeout.
type Surface struct {
	mu sync.Mutex

	Messages []ui.Message
	Avatars  []ui.Avatar
	Asks     []ui.AskRequest
	Actions  []ui.ActionRequest

	// Calls records the order of operations, e.g. "publish", "ask_user".
	Calls []string

	asks    []*ui.AskReply
	actions []*ui.ActionReply

	// PublishErr is returned from Publish when set.
	PublishErr error
	// OnPublish runs after a message is recorded.
	OnPublish func(ui.Message)
}

// New returns an empty Surface.
func New() *Surface {
	return &Surface{}
}

// QueueAsk appends replies for AskUser. Pass nil to simulate a timeout.
func (s *Surface) QueueAsk(replies ...*ui.AskReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asks = append(s.asks, replies...)
}

// QueueAction appends replies for AskAction.
func (s *Surface) QueueAction(replies ...*ui.ActionReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, replies...)
}

// Text builds an AskReply with the given content.
func Text(content string) *ui.AskReply {
	return &ui.AskReply{Author: ui.UserAuthor, Content: content}
}

// Choose builds an ActionReply for the named action.
func Choose(name string) *ui.ActionReply {
	return &ui.ActionReply{Name: name, Value: name}
}

func (s *Surface) Publish(ctx context.Context, msg ui.Message) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, "publish")
	if s.PublishErr != nil {
		s.mu.Unlock()
		return s.PublishErr
	}
	s.Messages = append(s.Messages, msg)
	hook := s.OnPublish
	s.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return nil
}

func (s *Surface) RegisterAvatar(ctx context.Context, avatar ui.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "avatar")
	s.Avatars = append(s.Avatars, avatar)
	return nil
}

func (s *Surface) AskUser(ctx context.Context, req ui.AskRequest) (*ui.AskReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "ask_user")
	s.Asks = append(s.Asks, req)
	if len(s.asks) == 0 {
		return nil, nil
	}
	r := s.asks[0]
	s.asks = s.asks[1:]
	return r, nil
}

func (s *Surface) AskAction(ctx context.Context, req ui.ActionRequest) (*ui.ActionReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "ask_action")
	s.Actions = append(s.Actions, req)
	if len(s.actions) == 0 {
		return nil, nil
	}
	r := s.actions[0]
	s.actions = s.actions[1:]
	return r, nil
}

// Published returns a copy of the recorded messages.
func (s *Surface) Published() []ui.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ui.Message(nil), s.Messages...)
}

// CallLog returns a copy of the call order.
func (s *Surface) CallLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Calls...)
}
