package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
	"github.com/vinayprograms/researchdesk/internal/ui"
)

// Action names offered for the feedback prompt.
const (
	ActionContinue = "continue"
	ActionFeedback = "feedback"
	ActionExit     = "exit"
)

// ActionPrompt is the question shown with the three feedback actions.
const ActionPrompt = "Continue or provide feedback?"

// DefaultInputTimeout bounds one free-text prompt.
const DefaultInputTimeout = 60 * time.Second

// FeedbackSentinel returns the prefix of the feedback prompt a user proxy
// issues when managed by manager.
func FeedbackSentinel(manager string) string {
	return strings.TrimSpace(agentchat.FeedbackPrompt(manager))
}

// FeedbackActions are the choices offered instead of free text.
func FeedbackActions() []ui.Action {
	return []ui.Action{
		{Name: ActionContinue, Value: ActionContinue, Label: "✅ Continue"},
		{Name: ActionFeedback, Value: ActionFeedback, Label: "💬 Provide feedback"},
		{Name: ActionExit, Value: ActionExit, Label: "🔚 Exit Conversation"},
	}
}

// HumanInput answers agentchat prompts from a surface.
type HumanInput struct {
	surface  ui.Surface
	sentinel string
	timeout  time.Duration
	policy   RetryPolicy
}

// InputOption configures a HumanInput.
type InputOption func(*HumanInput)

// WithTimeout sets the free-text prompt timeout.
func WithTimeout(d time.Duration) InputOption {
	return func(h *HumanInput) { h.timeout = d }
}

// WithRetryPolicy bounds how long a prompt is repeated.
func WithRetryPolicy(p RetryPolicy) InputOption {
	return func(h *HumanInput) { h.policy = p }
}

// WithManagerName matches the feedback prompt issued for a differently
// named manager.
func WithManagerName(name string) InputOption {
	return func(h *HumanInput) { h.sentinel = FeedbackSentinel(name) }
}

// NewHumanInput creates an input provider backed by surface.
func NewHumanInput(surface ui.Surface, opts ...InputOption) *HumanInput {
	h := &HumanInput{
		surface:  surface,
		sentinel: FeedbackSentinel(agentchat.DefaultManagerName),
		timeout:  DefaultInputTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetHumanInput implements agentchat.HumanInputProvider. The feedback
// prompt becomes an action choice; anything else, and the feedback choice,
// is asked as free text.
func (h *HumanInput) GetHumanInput(ctx context.Context, prompt string) (string, error) {
	if strings.HasPrefix(prompt, h.sentinel) {
		choice, err := h.askAction(ctx)
		if err != nil {
			return "", err
		}
		switch choice {
		case ActionContinue:
			return "", nil
		case ActionExit:
			return agentchat.TerminateMessage, nil
		}
	}
	return h.askText(ctx, prompt)
}

func (h *HumanInput) askAction(ctx context.Context) (string, error) {
	req := ui.ActionRequest{
		Author:  ui.DefaultAuthor,
		Content: ActionPrompt,
		Actions: FeedbackActions(),
	}
	reply, err := AskUntil(ctx, h.policy, func(ctx context.Context) (*ui.ActionReply, bool, error) {
		r, err := h.surface.AskAction(ctx, req)
		return r, r != nil, err
	})
	if err != nil {
		return "", fmt.Errorf("feedback prompt: %w", err)
	}
	if reply.Value != "" {
		return reply.Value, nil
	}
	return reply.Name, nil
}

func (h *HumanInput) askText(ctx context.Context, prompt string) (string, error) {
	req := ui.AskRequest{
		Author:  ui.DefaultAuthor,
		Content: prompt,
		Timeout: h.timeout,
	}
	reply, err := AskUntil(ctx, h.policy, func(ctx context.Context) (*ui.AskReply, bool, error) {
		r, err := h.surface.AskUser(ctx, req)
		return r, r != nil, err
	})
	if err != nil {
		return "", fmt.Errorf("text prompt: %w", err)
	}
	return strings.TrimSpace(reply.Content), nil
}
