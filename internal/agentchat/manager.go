package agentchat

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/researchdesk/internal/logging"
)

// DefaultManagerName is the name peers see for the group chat coordinator.
const DefaultManagerName = "chat_manager"

// End reasons reported by a GroupChatManager.
const (
	EndTerminated = "terminated"
	EndMaxRound   = "max_round"
	EndNoReply    = "no_reply"
)

// GroupChatManager coordinates a GroupChat. It is a participant itself:
// sending it a message with a reply request runs the chat.
type GroupChatManager struct {
	*Conversable

	chat     *GroupChat
	selector llm.Provider
	logger   *logging.Logger

	// OnSpeaker observes each selected speaker.
	OnSpeaker func(round int, speaker string)
	// OnEnd observes how the chat ended.
	OnEnd func(rounds int, reason string)
}

// ManagerOption configures a GroupChatManager.
type ManagerOption func(*GroupChatManager)

// WithManagerName overrides DefaultManagerName.
func WithManagerName(name string) ManagerOption {
	return func(m *GroupChatManager) { m.name = name }
}

// NewGroupChatManager creates a coordinator over chat. selector picks
// speakers in auto mode and may be nil for round robin.
func NewGroupChatManager(chat *GroupChat, selector llm.Provider, opts ...ManagerOption) *GroupChatManager {
	m := &GroupChatManager{
		Conversable: newConversable(DefaultManagerName),
		chat:        chat,
		selector:    selector,
		logger:      logging.New().WithComponent("agentchat"),
	}
	m.self = m
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GroupChat returns the coordinated chat.
func (m *GroupChatManager) GroupChat() *GroupChat {
	return m.chat
}

// GenerateReply runs the group chat starting from the last message sender
// sent. The manager never replies to the initiator directly.
func (m *GroupChatManager) GenerateReply(ctx context.Context, sender Participant) (*Message, error) {
	last, ok := m.LastMessage(sender.Name())
	if !ok {
		return nil, nil
	}
	return nil, m.run(ctx, last, sender)
}

// run broadcasts each message to every other participant, then asks the
// next speaker for a reply, until termination, no reply, or the round cap.
func (m *GroupChatManager) run(ctx context.Context, message Message, sender Participant) (err error) {
	if len(m.chat.Agents) == 0 {
		return ErrNoAgents
	}
	maxRound := m.chat.MaxRound
	if maxRound <= 0 {
		maxRound = 1
	}

	ctx, span := startChatSpan(ctx, m.name, len(m.chat.Agents), maxRound)
	start := time.Now()
	rounds, reason := 0, EndMaxRound
	defer func() {
		endChatSpan(span, rounds, reason, err)
		m.logger.ConversationComplete(rounds, time.Since(start), reason)
		if m.OnEnd != nil {
			m.OnEnd(rounds, reason)
		}
	}()

	speaker := m.chat.AgentByName(sender.Name())
	if speaker == nil {
		speaker = sender
	}

	for i := 0; i < maxRound; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if message.Name == "" {
			message.Name = speaker.Name()
		}
		m.chat.Append(message)

		for _, a := range m.chat.Agents {
			if a.Name() == speaker.Name() {
				continue
			}
			if _, err := m.self.Send(ctx, message, a, false, true); err != nil {
				return fmt.Errorf("broadcast to %s: %w", a.Name(), err)
			}
		}

		if IsTermination(message) {
			reason = EndTerminated
			return nil
		}
		if i == maxRound-1 {
			return nil
		}

		next, selErr := m.chat.SelectSpeaker(ctx, speaker, m.selector)
		if next == nil {
			return selErr
		}
		if selErr != nil {
			m.logger.Warn("speaker selection fell back to round robin", map[string]interface{}{
				"error": selErr.Error(),
			})
		}
		speaker = next
		m.logger.RoundStart(i+1, speaker.Name())
		if m.OnSpeaker != nil {
			m.OnSpeaker(i+1, speaker.Name())
		}

		reply, err := speaker.GenerateReply(ctx, m.self)
		if err != nil {
			return fmt.Errorf("%s: %w", speaker.Name(), err)
		}
		if reply == nil {
			reason = EndNoReply
			return nil
		}
		rounds++
		if _, err := speaker.Send(ctx, *reply, m.self, false, false); err != nil {
			return fmt.Errorf("%s: send reply: %w", speaker.Name(), err)
		}
		message, _ = m.LastMessage(speaker.Name())
	}
	return nil
}
