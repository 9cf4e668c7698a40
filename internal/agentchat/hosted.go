package agentchat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Function is a tool callable by a hosted assistant. arguments is the raw
// JSON object produced by the model.
type Function func(ctx context.Context, arguments string) (string, error)

// RunStatus is the lifecycle state of a hosted assistant run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Pending reports whether the run is still being worked on by the backend.
func (s RunStatus) Pending() bool {
	return s == RunQueued || s == RunInProgress || s == RunCancelling
}

// Run is a snapshot of a hosted assistant run.
type Run struct {
	ID        string
	Status    RunStatus
	ToolCalls []ToolCall
	LastError string
}

// ToolCall is a function call requested by a run.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput answers a ToolCall.
type ToolOutput struct {
	CallID string
	Output string
}

// AssistantBackend is a remote assistant service with server-side threads.
type AssistantBackend interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, content string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	// RunMessages returns the text of the assistant messages a run produced,
	// oldest first.
	RunMessages(ctx context.Context, threadID, runID string) ([]string, error)
}

// HostedAssistantConfig configures a HostedAssistantAgent.
type HostedAssistantConfig struct {
	AssistantID  string
	Backend      AssistantBackend
	PollInterval time.Duration
	RunTimeout   time.Duration
}

// HostedAssistantAgent delegates replies to a remote assistant. The remote
// thread persists across conversations for the agent's lifetime.
type HostedAssistantAgent struct {
	*Conversable

	assistantID  string
	backend      AssistantBackend
	pollInterval time.Duration
	runTimeout   time.Duration

	// OnToolCall and OnToolResult observe function dispatch.
	OnToolCall   func(agent, tool, args string)
	OnToolResult func(agent, tool string, duration time.Duration, err error)

	mu        sync.Mutex
	threadID  string
	functions map[string]Function
	read      map[string]int
}

// NewHostedAssistantAgent creates a participant backed by a remote assistant.
func NewHostedAssistantAgent(name string, cfg HostedAssistantConfig) *HostedAssistantAgent {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	h := &HostedAssistantAgent{
		Conversable:  newConversable(name),
		assistantID:  cfg.AssistantID,
		backend:      cfg.Backend,
		pollInterval: cfg.PollInterval,
		runTimeout:   cfg.RunTimeout,
		functions:    make(map[string]Function),
		read:         make(map[string]int),
	}
	h.self = h
	return h
}

// AssistantID returns the remote assistant identifier.
func (h *HostedAssistantAgent) AssistantID() string {
	return h.assistantID
}

// ThreadID returns the remote thread, empty until the first reply.
func (h *HostedAssistantAgent) ThreadID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.threadID
}

// Description tells the speaker selector who this participant is.
func (h *HostedAssistantAgent) Description() string {
	names := h.FunctionNames()
	if len(names) == 0 {
		return fmt.Sprintf("Hosted assistant %s.", h.name)
	}
	return fmt.Sprintf("Hosted assistant %s with tools: %s.", h.name, strings.Join(names, ", "))
}

// RegisterFunctions adds callable tools by name.
func (h *HostedAssistantAgent) RegisterFunctions(fns map[string]Function) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, fn := range fns {
		h.functions[name] = fn
	}
}

// FunctionNames lists the registered tools.
func (h *HostedAssistantAgent) FunctionNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.functions))
	for name := range h.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearHistory also rewinds the read position for peer.
func (h *HostedAssistantAgent) ClearHistory(peer string) {
	h.Conversable.ClearHistory(peer)
	h.mu.Lock()
	delete(h.read, peer)
	h.mu.Unlock()
}

// GenerateReply posts the messages received from sender since the last
// reply to the remote thread, runs the assistant and returns what it wrote.
func (h *HostedAssistantAgent) GenerateReply(ctx context.Context, sender Participant) (*Message, error) {
	if h.backend == nil {
		return nil, fmt.Errorf("%s: no assistant backend configured", h.name)
	}
	history := h.Messages(sender.Name())

	h.mu.Lock()
	start := h.read[sender.Name()]
	if start > len(history) {
		start = 0
	}
	h.read[sender.Name()] = len(history)
	h.mu.Unlock()

	ctx, span := startSpan(ctx, "assistant.reply", h.name, h.assistantID)
	defer span.End()

	thread, err := h.ensureThread(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, m := range history[start:] {
		if m.Role == RoleAssistant || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if err := h.backend.AddMessage(ctx, thread, m.Content); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%s: add message: %w", h.name, err)
		}
	}

	texts, err := h.run(ctx, thread)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &Message{Content: strings.Join(texts, "\n\n")}, nil
}

func (h *HostedAssistantAgent) ensureThread(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.threadID != "" {
		return h.threadID, nil
	}
	id, err := h.backend.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: create thread: %w", h.name, err)
	}
	h.threadID = id
	return id, nil
}

// run starts a run and drives it to completion, answering tool calls.
func (h *HostedAssistantAgent) run(ctx context.Context, thread string) ([]string, error) {
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	run, err := h.backend.CreateRun(ctx, thread, h.assistantID)
	if err != nil {
		return nil, fmt.Errorf("%s: create run: %w", h.name, err)
	}

	for {
		switch {
		case run.Status.Pending():
			if err := sleepCtx(ctx, h.pollInterval); err != nil {
				h.cancelRun(thread, run.ID)
				return nil, fmt.Errorf("%s: run %s: %w", h.name, run.ID, err)
			}
			run, err = h.backend.GetRun(ctx, thread, run.ID)
			if err != nil {
				return nil, fmt.Errorf("%s: poll run: %w", h.name, err)
			}
		case run.Status == RunRequiresAction:
			outputs, err := h.callTools(ctx, run.ToolCalls)
			if err != nil {
				h.cancelRun(thread, run.ID)
				return nil, err
			}
			run, err = h.backend.SubmitToolOutputs(ctx, thread, run.ID, outputs)
			if err != nil {
				return nil, fmt.Errorf("%s: submit tool outputs: %w", h.name, err)
			}
		case run.Status == RunCompleted:
			texts, err := h.backend.RunMessages(ctx, thread, run.ID)
			if err != nil {
				return nil, fmt.Errorf("%s: read run messages: %w", h.name, err)
			}
			return texts, nil
		default:
			detail := run.LastError
			if detail == "" {
				detail = "no details"
			}
			return nil, fmt.Errorf("%s: run %s ended %s: %s", h.name, run.ID, run.Status, detail)
		}
	}
}

// cancelRun is best effort; the run context may already be gone.
func (h *HostedAssistantAgent) cancelRun(thread, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = h.backend.CancelRun(ctx, thread, runID)
}

// callTools executes the requested functions concurrently. Function
// failures become "Error: ..." outputs so the assistant can react.
func (h *HostedAssistantAgent) callTools(ctx context.Context, calls []ToolCall) ([]ToolOutput, error) {
	outputs := make([]ToolOutput, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			outputs[i] = ToolOutput{CallID: call.ID, Output: h.callTool(gctx, call)}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: tool calls: %w", h.name, err)
	}
	return outputs, nil
}

func (h *HostedAssistantAgent) callTool(ctx context.Context, call ToolCall) string {
	h.mu.Lock()
	fn, ok := h.functions[call.Name]
	h.mu.Unlock()
	if !ok {
		return fmt.Sprintf("Error: Function %s not found.", call.Name)
	}
	if call.Arguments != "" && !json.Valid([]byte(call.Arguments)) {
		return fmt.Sprintf("Error: the argument must be in JSON format, got %s", call.Arguments)
	}

	if h.OnToolCall != nil {
		h.OnToolCall(h.name, call.Name, call.Arguments)
	}
	start := time.Now()
	ctx, span := startToolSpan(ctx, h.name, call.Name)
	out, err := fn(ctx, call.Arguments)
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	if h.OnToolResult != nil {
		h.OnToolResult(h.name, call.Name, time.Since(start), err)
	}
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
