package agentchat

import (
	"context"
	"fmt"
	"sync"

	"github.com/vinayprograms/agentkit/llm"
)

// DefaultAssistantSystemMessage is the system prompt of an AssistantAgent
// built without one.
const DefaultAssistantSystemMessage = `You are a helpful AI assistant.
Solve tasks using your coding and language skills.
In the following cases, suggest python code (in a python coding block) or shell script (in a sh coding block) for the user to execute.
1. When you need to collect info, use the code to output the info you need. After sufficient info is printed and the task is ready to be solved based on your language skill, you can solve the task by yourself.
2. When you need to perform some task with code, use the code to perform the task and output the result. Finish the task smartly.
Solve the task step by step if you need to. If a plan is not provided, explain your plan first. Be clear which step uses code, and which step uses your language skill.
When using code, you must indicate the script type in the code block. The user cannot provide any other feedback or perform any other action beyond executing the code you suggest. The user can't modify your code. So do not suggest incomplete code which requires users to modify. Don't use a code block if it's not intended to be executed by the user.
If the result indicates there is an error, fix the error and output the code again. Suggest the full code instead of partial code or code changes.
When you find an answer, verify the answer carefully. Include verifiable evidence in your response if possible.
Reply "TERMINATE" in the end when everything is done.`

// DefaultMaxAutoReply bounds consecutive automatic replies to one peer.
const DefaultMaxAutoReply = 100

// AssistantAgent answers with a language model.
type AssistantAgent struct {
	*Conversable

	provider      llm.Provider
	systemMessage string
	maxAutoReply  int

	mu      sync.Mutex
	replies map[string]int
}

// AssistantOption configures an AssistantAgent.
type AssistantOption func(*AssistantAgent)

// WithSystemMessage replaces the default system prompt.
func WithSystemMessage(s string) AssistantOption {
	return func(a *AssistantAgent) { a.systemMessage = s }
}

// WithMaxAutoReply bounds consecutive replies to the same peer.
func WithMaxAutoReply(n int) AssistantOption {
	return func(a *AssistantAgent) { a.maxAutoReply = n }
}

// NewAssistantAgent creates an LLM-backed participant.
func NewAssistantAgent(name string, provider llm.Provider, opts ...AssistantOption) *AssistantAgent {
	a := &AssistantAgent{
		Conversable:   newConversable(name),
		provider:      provider,
		systemMessage: DefaultAssistantSystemMessage,
		maxAutoReply:  DefaultMaxAutoReply,
		replies:       make(map[string]int),
	}
	a.self = a
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Description returns the system prompt.
func (a *AssistantAgent) Description() string {
	return a.systemMessage
}

// ClearHistory also resets the auto-reply counter for peer.
func (a *AssistantAgent) ClearHistory(peer string) {
	a.Conversable.ClearHistory(peer)
	a.mu.Lock()
	delete(a.replies, peer)
	a.mu.Unlock()
}

// GenerateReply asks the model for the next message to sender.
func (a *AssistantAgent) GenerateReply(ctx context.Context, sender Participant) (*Message, error) {
	history := a.Messages(sender.Name())
	if len(history) == 0 {
		return nil, nil
	}
	if IsTermination(history[len(history)-1]) {
		return nil, nil
	}

	a.mu.Lock()
	if a.replies[sender.Name()] >= a.maxAutoReply {
		a.replies[sender.Name()] = 0
		a.mu.Unlock()
		return nil, nil
	}
	a.replies[sender.Name()]++
	a.mu.Unlock()

	if a.provider == nil {
		return nil, fmt.Errorf("%s: no LLM provider configured", a.name)
	}
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Messages: toLLMMessages(a.systemMessage, history),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}
	return &Message{Content: resp.Content}, nil
}

// toLLMMessages converts stored history to provider messages.
func toLLMMessages(system string, history []Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, llm.Message{Role: RoleSystem, Content: system})
	}
	for _, m := range history {
		role := m.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return msgs
}
