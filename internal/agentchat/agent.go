package agentchat

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoHumanInput is returned when a participant needs a human but has no
// input provider.
var ErrNoHumanInput = errors.New("no human input provider configured")

// Participant is anything that can take part in a conversation.
//
// Send delivers msg to recipient and reports whether the recipient replied.
// Receive is the inbound half of Send. GenerateReply produces the next
// message for sender from the history with sender; a nil message means the
// participant has nothing more to say.
type Participant interface {
	Name() string
	Send(ctx context.Context, msg Message, recipient Participant, requestReply, silent bool) (bool, error)
	Receive(ctx context.Context, msg Message, sender Participant, requestReply, silent bool) (bool, error)
	GenerateReply(ctx context.Context, sender Participant) (*Message, error)
}

// Rebinder is implemented by participants that can present another
// participant as their identity to peers. Decorators use it so that every
// message the wrapped participant sends on its own goes through them.
type Rebinder interface {
	Rebind(outer Participant)
}

// HumanInputProvider answers prompts on behalf of a human.
type HumanInputProvider interface {
	GetHumanInput(ctx context.Context, prompt string) (string, error)
}

// Describer is implemented by participants that can describe their role
// for speaker selection.
type Describer interface {
	Description() string
}

// historyClearer is implemented by participants with per-peer history.
type historyClearer interface {
	ClearHistory(peer string)
}

// Conversable holds the per-peer history shared by all built-in participants
// and implements Send and Receive on top of the outer participant's
// GenerateReply.
type Conversable struct {
	name string
	self Participant

	mu      sync.Mutex
	history map[string][]Message
}

func newConversable(name string) *Conversable {
	return &Conversable{name: name, history: make(map[string][]Message)}
}

// Name returns the participant name.
func (c *Conversable) Name() string {
	return c.name
}

// Rebind makes outer the identity presented to peers.
func (c *Conversable) Rebind(outer Participant) {
	c.self = outer
}

// Send records msg as our own and delivers it to recipient.
func (c *Conversable) Send(ctx context.Context, msg Message, recipient Participant, requestReply, silent bool) (bool, error) {
	if recipient == nil {
		return false, fmt.Errorf("%s: send to nil recipient", c.name)
	}
	if msg.Name == "" {
		msg.Name = c.name
	}
	stored := msg
	stored.Role = RoleAssistant
	c.append(recipient.Name(), stored)
	return recipient.Receive(ctx, msg, c.self, requestReply, silent)
}

// Receive records msg and, when asked, answers sender.
// The exchange continues until one side returns no reply.
func (c *Conversable) Receive(ctx context.Context, msg Message, sender Participant, requestReply, silent bool) (bool, error) {
	stored := msg
	stored.Role = RoleUser
	if stored.Name == "" {
		stored.Name = sender.Name()
	}
	c.append(sender.Name(), stored)

	if !requestReply {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	reply, err := c.self.GenerateReply(ctx, sender)
	if err != nil {
		return false, err
	}
	if reply == nil {
		return false, nil
	}
	if _, err := c.self.Send(ctx, *reply, sender, true, silent); err != nil {
		return true, err
	}
	return true, nil
}

func (c *Conversable) append(peer string, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[peer] = append(c.history[peer], msg)
}

// Messages returns a copy of the history with peer.
func (c *Conversable) Messages(peer string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.history[peer]...)
}

// LastMessage returns the most recent message exchanged with peer.
func (c *Conversable) LastMessage(peer string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.history[peer]
	if len(h) == 0 {
		return Message{}, false
	}
	return h[len(h)-1], true
}

// ClearHistory forgets everything exchanged with peer.
func (c *Conversable) ClearHistory(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.history, peer)
}

// InitiateChat starts a conversation: the initiator's history with the
// recipient is cleared and message is sent with a reply request. It returns
// when the recipient stops replying.
func InitiateChat(ctx context.Context, initiator, recipient Participant, message any) error {
	msg, err := NewMessage(message)
	if err != nil {
		return err
	}
	if hc, ok := initiator.(historyClearer); ok {
		hc.ClearHistory(recipient.Name())
	}
	if hc, ok := recipient.(historyClearer); ok {
		hc.ClearHistory(initiator.Name())
	}
	if _, err := initiator.Send(ctx, msg, recipient, true, false); err != nil {
		return fmt.Errorf("chat %s -> %s: %w", initiator.Name(), recipient.Name(), err)
	}
	return nil
}
