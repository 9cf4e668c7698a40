package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
	"github.com/vinayprograms/researchdesk/internal/bridge"
	"github.com/vinayprograms/researchdesk/internal/config"
	"github.com/vinayprograms/researchdesk/internal/logging"
	"github.com/vinayprograms/researchdesk/internal/tools"
	"github.com/vinayprograms/researchdesk/internal/transcript"
	"github.com/vinayprograms/researchdesk/internal/ui"
)

// roleFunctions lists the tool functions registered per hosted role.
var roleFunctions = map[string][]string{
	RoleMarketResearcher: {tools.WebScraping, tools.GoogleSearch},
	RoleResearchDirector: {tools.GetRecords, tools.UpdateRecord},
}

type functionRegistrar interface {
	RegisterFunctions(fns map[string]agentchat.Function)
}

// Handlers react to the two UI lifecycle events.
type Handlers struct {
	Config *config.Config
	Roster Roster
	// Selector picks speakers for the group chat manager.
	Selector llm.Provider
	// Functions holds every tool function by registered name.
	Functions map[string]agentchat.Function
	Telemetry telemetry.Exporter

	initiate func(ctx context.Context, initiator, recipient agentchat.Participant, message any) error
}

// NewHandlers returns Handlers with defaults filled in.
func NewHandlers(cfg *config.Config, roster Roster, selector llm.Provider, functions map[string]agentchat.Function) *Handlers {
	if cfg == nil {
		cfg = config.New()
	}
	return &Handlers{
		Config:    cfg,
		Roster:    roster,
		Selector:  selector,
		Functions: functions,
		initiate:  agentchat.InitiateChat,
	}
}

// OnSessionStart greets the user, registers avatars, and builds the
// session's participants.
func (h *Handlers) OnSessionStart(ctx context.Context, sess *Session) error {
	cfg := h.Config
	surface := sess.Surface()

	if err := surface.Publish(ctx, ui.Message{Author: ui.DefaultAuthor, Content: cfg.UI.Welcome}); err != nil {
		return fmt.Errorf("publish welcome: %w", err)
	}
	for _, a := range cfg.UI.Avatars {
		if err := surface.RegisterAvatar(ctx, ui.Avatar{Name: a.Name, Path: a.Path}); err != nil {
			return fmt.Errorf("register avatar %s: %w", a.Name, err)
		}
	}

	roles, err := h.buildRoles(sess)
	if err != nil {
		return err
	}
	if err := sess.configure(roles); err != nil {
		return err
	}

	h.event("session.start", map[string]interface{}{"session": sess.ID(), "roles": len(roles)})
	sess.logger.Info("session configured", map[string]interface{}{"roles": len(roles)})
	return nil
}

func (h *Handlers) buildRoles(sess *Session) (map[string]agentchat.Participant, error) {
	cfg := h.Config
	surface := sess.Surface()
	roles := make(map[string]agentchat.Participant, len(Roles))

	assistant, err := h.Roster.NewAssistant(RoleAssistant)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", RoleAssistant, err)
	}
	roles[RoleAssistant] = bridge.Observe(assistant, surface, bridge.AuthorAssistant, bridge.FormatContent)

	input := bridge.NewHumanInput(surface,
		bridge.WithTimeout(cfg.InputTimeout()),
		bridge.WithRetryPolicy(bridge.RetryPolicy{
			MaxAttempts: uint(max(cfg.UI.MaxPromptAttempts, 0)),
			MaxWait:     cfg.MaxPromptWait(),
		}),
		bridge.WithManagerName(h.managerName()),
	)
	proxy, err := h.Roster.NewUserProxy(RoleUserProxy, input)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", RoleUserProxy, err)
	}
	roles[RoleUserProxy] = bridge.Observe(proxy, surface, bridge.AuthorUserProxy, bridge.FormatRaw)

	hosted := []struct {
		role string
		id   string
	}{
		{RoleMarketResearcher, cfg.Assistants.MarketResearcher},
		{RoleResearchManager, cfg.Assistants.ResearchManager},
		{RoleResearchDirector, cfg.Assistants.ResearchDirector},
	}
	for _, hr := range hosted {
		p, err := h.Roster.NewHostedAssistant(hr.role, hr.id)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", hr.role, err)
		}
		h.registerFunctions(sess, hr.role, p)
		h.observeTools(sess, p)
		roles[hr.role] = bridge.Observe(p, surface, bridge.AuthorHostedAssistant, bridge.FormatContent)
	}
	return roles, nil
}

func (h *Handlers) registerFunctions(sess *Session, role string, p agentchat.Participant) {
	names := roleFunctions[role]
	if len(names) == 0 {
		return
	}
	reg, ok := p.(functionRegistrar)
	if !ok {
		sess.logger.Warn("participant cannot register functions", map[string]interface{}{"role": role})
		return
	}
	fns := make(map[string]agentchat.Function, len(names))
	for _, name := range names {
		fn, ok := h.Functions[name]
		if !ok {
			sess.logger.Warn("tool function not available", map[string]interface{}{"role": role, "tool": name})
			continue
		}
		fns[name] = fn
	}
	reg.RegisterFunctions(fns)
}

func (h *Handlers) observeTools(sess *Session, p agentchat.Participant) {
	hosted, ok := p.(*agentchat.HostedAssistantAgent)
	if !ok {
		return
	}
	hosted.OnToolCall = func(agent, tool, args string) {
		sess.logger.ToolCall(tool, map[string]interface{}{"agent": agent})
		h.event("tool.call", map[string]interface{}{"session": sess.ID(), "agent": agent, "tool": tool})
	}
	hosted.OnToolResult = func(agent, tool string, d time.Duration, err error) {
		sess.logger.ToolResult(tool, d, err)
	}
}

// OnMessage runs a group chat over the session's participants for text.
// It blocks until the conversation ends.
func (h *Handlers) OnMessage(ctx context.Context, sess *Session, text string) (err error) {
	if err := sess.begin(); err != nil {
		return err
	}
	defer sess.end()

	members := make([]agentchat.Participant, 0, len(ConversationRoles))
	for _, role := range ConversationRoles {
		p, err := sess.Role(role)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSessionNotReady, err)
		}
		members = append(members, p)
	}

	ctx, span := telemetry.GetTracer().StartSpan(ctx, "chat.message")
	span.SetAttributes(
		attribute.String("session.id", sess.ID()),
		attribute.Int("chat.max_round", h.Config.Chat.MaxRound),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	sess.note(transcript.Event{Type: transcript.EventUserMessage, Author: ui.UserAuthor, Content: text})
	h.event("session.message", map[string]interface{}{"session": sess.ID(), "length": len(text)})

	group := &agentchat.GroupChat{
		Agents:           members,
		Messages:         []agentchat.Message{},
		MaxRound:         h.Config.Chat.MaxRound,
		SpeakerSelection: h.Config.Chat.SpeakerSelection,
	}
	manager := agentchat.NewGroupChatManager(group, h.Selector, agentchat.WithManagerName(h.managerName()))
	manager.OnSpeaker = func(round int, speaker string) {
		h.event("chat.round", map[string]interface{}{"session": sess.ID(), "round": round, "speaker": speaker})
	}
	manager.OnEnd = func(rounds int, reason string) {
		sess.note(transcript.Event{
			Type:    transcript.EventConversation,
			Author:  h.managerName(),
			Content: fmt.Sprintf("%s after %d rounds", reason, rounds),
		})
	}

	proxy, _ := sess.Role(RoleUserProxy)
	task := fmt.Sprintf(h.taskTemplate(), text)
	sess.logger.Info("starting conversation", map[string]interface{}{"agents": len(members)})

	initiate := h.initiate
	if initiate == nil {
		initiate = agentchat.InitiateChat
	}
	if err := initiate(ctx, proxy, manager, task); err != nil {
		sess.note(transcript.Event{Type: transcript.EventError, Author: ui.DefaultAuthor, Content: err.Error()})
		return fmt.Errorf("conversation: %w", err)
	}
	return nil
}

// ReportError shows err to the user as a Chatbot message.
func ReportError(ctx context.Context, surface ui.Surface, err error) {
	if err == nil {
		return
	}
	msg := ui.Message{Author: ui.DefaultAuthor, Content: "**Error:** " + err.Error()}
	if perr := surface.Publish(context.WithoutCancel(ctx), msg); perr != nil {
		logging.New().WithComponent("chat").Warn("failed to report error", map[string]interface{}{
			"error":         err.Error(),
			"publish_error": perr.Error(),
		})
	}
}

func (h *Handlers) managerName() string {
	if h.Config.Chat.ManagerName != "" {
		return h.Config.Chat.ManagerName
	}
	return agentchat.DefaultManagerName
}

func (h *Handlers) taskTemplate() string {
	if h.Config.Chat.TaskTemplate != "" {
		return h.Config.Chat.TaskTemplate
	}
	return config.DefaultTaskTemplate
}

func (h *Handlers) event(name string, data map[string]interface{}) {
	if h.Telemetry != nil {
		h.Telemetry.LogEvent(name, data)
	}
}
