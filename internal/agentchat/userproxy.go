package agentchat

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// HumanInputMode decides when a UserProxyAgent asks its human.
type HumanInputMode string

const (
	// HumanInputAlways asks before every reply.
	HumanInputAlways HumanInputMode = "ALWAYS"
	// HumanInputTerminate asks only on a termination message or when the
	// auto-reply budget is spent.
	HumanInputTerminate HumanInputMode = "TERMINATE"
	// HumanInputNever never asks.
	HumanInputNever HumanInputMode = "NEVER"
)

// ParseHumanInputMode maps a config value to a mode, defaulting to ALWAYS.
func ParseHumanInputMode(s string) HumanInputMode {
	switch HumanInputMode(strings.ToUpper(strings.TrimSpace(s))) {
	case HumanInputTerminate:
		return HumanInputTerminate
	case HumanInputNever:
		return HumanInputNever
	default:
		return HumanInputAlways
	}
}

// FeedbackPrompt is the question asked in ALWAYS mode.
func FeedbackPrompt(sender string) string {
	return fmt.Sprintf("Provide feedback to %s. Press enter to skip and use auto-reply, or type 'exit' to end the conversation: ", sender)
}

// TerminationPrompt is the question asked in TERMINATE mode.
func TerminationPrompt(sender string) string {
	return fmt.Sprintf("Please give feedback to %s. Press enter or type 'exit' to stop the conversation: ", sender)
}

// exitWord typed by the human ends the conversation.
const exitWord = "exit"

// UserProxyConfig configures a UserProxyAgent.
type UserProxyConfig struct {
	HumanInputMode          HumanInputMode
	MaxConsecutiveAutoReply int
	Input                   HumanInputProvider
	// Executor runs code blocks found in incoming messages. Nil disables
	// code execution.
	Executor *CodeExecutor
}

// UserProxyAgent stands in for the human. It relays human input and, when
// the human skips, executes code it was sent.
type UserProxyAgent struct {
	*Conversable

	mode     HumanInputMode
	maxAuto  int
	input    HumanInputProvider
	executor *CodeExecutor

	mu      sync.Mutex
	counter map[string]int
}

// NewUserProxyAgent creates a human proxy participant.
func NewUserProxyAgent(name string, cfg UserProxyConfig) *UserProxyAgent {
	mode := cfg.HumanInputMode
	if mode == "" {
		mode = HumanInputAlways
	}
	u := &UserProxyAgent{
		Conversable: newConversable(name),
		mode:        mode,
		maxAuto:     cfg.MaxConsecutiveAutoReply,
		input:       cfg.Input,
		executor:    cfg.Executor,
		counter:     make(map[string]int),
	}
	u.self = u
	return u
}

// Description tells the speaker selector who this participant is.
func (u *UserProxyAgent) Description() string {
	return "A human admin who approves plans and gives feedback."
}

// SetInput replaces the human input provider.
func (u *UserProxyAgent) SetInput(in HumanInputProvider) {
	u.input = in
}

// ClearHistory also resets the auto-reply counter for peer.
func (u *UserProxyAgent) ClearHistory(peer string) {
	u.Conversable.ClearHistory(peer)
	u.resetCounter(peer)
}

// GenerateReply asks the human and falls back to code execution and then
// to an empty auto-reply.
func (u *UserProxyAgent) GenerateReply(ctx context.Context, sender Participant) (*Message, error) {
	last, _ := u.LastMessage(sender.Name())

	reply, final, err := u.humanReply(ctx, sender.Name(), last)
	if err != nil {
		return nil, err
	}
	if final {
		return reply, nil
	}

	if u.executor != nil {
		out, ran, err := u.executor.Execute(ctx, last.Content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", u.name, err)
		}
		if ran {
			return &Message{Content: out}, nil
		}
	}
	return &Message{Content: ""}, nil
}

// humanReply applies the input mode. final is true when the returned
// message (possibly nil, meaning stop) is the reply.
func (u *UserProxyAgent) humanReply(ctx context.Context, sender string, last Message) (*Message, bool, error) {
	var prompt string
	switch u.mode {
	case HumanInputNever:
		if u.count(sender) >= u.maxAuto || IsTermination(last) {
			u.resetCounter(sender)
			return nil, true, nil
		}
		u.increment(sender)
		return nil, false, nil
	case HumanInputTerminate:
		if !IsTermination(last) && u.count(sender) < u.maxAuto {
			u.increment(sender)
			return nil, false, nil
		}
		prompt = TerminationPrompt(sender)
	default:
		prompt = FeedbackPrompt(sender)
	}

	if u.input == nil {
		return nil, true, fmt.Errorf("%s: %w", u.name, ErrNoHumanInput)
	}
	text, err := u.input.GetHumanInput(ctx, prompt)
	if err != nil {
		return nil, true, fmt.Errorf("%s: human input: %w", u.name, err)
	}

	if text == exitWord {
		u.resetCounter(sender)
		return nil, true, nil
	}
	if text != "" || u.maxAuto == 0 {
		u.resetCounter(sender)
		return &Message{Content: text}, true, nil
	}
	if u.mode == HumanInputTerminate && IsTermination(last) {
		u.resetCounter(sender)
		return nil, true, nil
	}
	u.increment(sender)
	return nil, false, nil
}

func (u *UserProxyAgent) count(peer string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counter[peer]
}

func (u *UserProxyAgent) increment(peer string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counter[peer]++
}

func (u *UserProxyAgent) resetCounter(peer string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.counter, peer)
}
