// Package assistants connects hosted assistant agents to the OpenAI
// Assistants API.
package assistants

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
)

// messagePage bounds how many messages are scanned when collecting the
// output of a single run.
const messagePage = 100

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
}

// Client implements agentchat.AssistantBackend on top of the Assistants API.
type Client struct {
	api openai.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Client{api: openai.NewClient(opts...)}
}

var _ agentchat.AssistantBackend = (*Client)(nil)

// CreateThread opens a new server-side thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

// AddMessage appends a user message to a thread.
func (c *Client) AddMessage(ctx context.Context, threadID, content string) error {
	_, err := c.api.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	if err != nil {
		return fmt.Errorf("add message to %s: %w", threadID, err)
	}
	return nil
}

// CreateRun starts the assistant on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*agentchat.Run, error) {
	run, err := c.api.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return nil, fmt.Errorf("create run on %s: %w", threadID, err)
	}
	return convertRun(run), nil
}

// GetRun polls a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*agentchat.Run, error) {
	run, err := c.api.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return convertRun(run), nil
}

// SubmitToolOutputs answers the function calls a run is waiting on.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []agentchat.ToolOutput) (*agentchat.Run, error) {
	params := openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs)),
	}
	for _, out := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(out.CallID),
			Output:     openai.String(out.Output),
		})
	}
	run, err := c.api.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, params)
	if err != nil {
		return nil, fmt.Errorf("submit tool outputs for %s: %w", runID, err)
	}
	return convertRun(run), nil
}

// CancelRun stops a run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := c.api.Beta.Threads.Runs.Cancel(ctx, threadID, runID); err != nil {
		return fmt.Errorf("cancel run %s: %w", runID, err)
	}
	return nil
}

// RunMessages returns the assistant text produced by a run, oldest first.
func (c *Client) RunMessages(ctx context.Context, threadID, runID string) ([]string, error) {
	page, err := c.api.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderAsc,
		Limit: openai.Int(messagePage),
		RunID: openai.String(runID),
	})
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", runID, err)
	}

	var texts []string
	for _, msg := range page.Data {
		if msg.Role != openai.MessageRoleAssistant {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" && part.Text.Value != "" {
				texts = append(texts, part.Text.Value)
			}
		}
	}
	return texts, nil
}

func convertRun(r *openai.Run) *agentchat.Run {
	run := &agentchat.Run{
		ID:     r.ID,
		Status: agentchat.RunStatus(r.Status),
	}
	for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
		run.ToolCalls = append(run.ToolCalls, agentchat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if r.LastError.Message != "" {
		run.LastError = fmt.Sprintf("%s: %s", r.LastError.Code, r.LastError.Message)
	}
	return run
}
