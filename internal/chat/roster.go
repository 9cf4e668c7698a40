package chat

import (
	"errors"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
	"github.com/vinayprograms/researchdesk/internal/config"
)

// Roster builds the participants of a session. Each call returns a new,
// undecorated participant; Handlers attach the surface.
type Roster interface {
	NewAssistant(name string) (agentchat.Participant, error)
	NewUserProxy(name string, input agentchat.HumanInputProvider) (agentchat.Participant, error)
	NewHostedAssistant(name, assistantID string) (agentchat.Participant, error)
}

// AgentRoster builds participants from the agentchat library.
type AgentRoster struct {
	Config   *config.Config
	Provider llm.Provider
	Backend  agentchat.AssistantBackend
}

var errNoBackend = errors.New("no hosted assistant backend configured")

// NewAssistant returns an LLM-backed assistant.
func (r *AgentRoster) NewAssistant(name string) (agentchat.Participant, error) {
	return agentchat.NewAssistantAgent(name, r.Provider), nil
}

// NewUserProxy returns the human proxy with code execution in the
// configured work directory.
func (r *AgentRoster) NewUserProxy(name string, input agentchat.HumanInputProvider) (agentchat.Participant, error) {
	cfg := r.config()
	var exec *agentchat.CodeExecutor
	if cfg.Proxy.WorkDir != "" {
		exec = agentchat.NewCodeExecutor(cfg.Proxy.WorkDir, cfg.ExecTimeout())
	}
	return agentchat.NewUserProxyAgent(name, agentchat.UserProxyConfig{
		HumanInputMode:          agentchat.ParseHumanInputMode(cfg.Proxy.HumanInputMode),
		MaxConsecutiveAutoReply: cfg.Proxy.MaxConsecutiveAutoReply,
		Input:                   input,
		Executor:                exec,
	}), nil
}

// NewHostedAssistant returns a participant backed by a remote assistant.
func (r *AgentRoster) NewHostedAssistant(name, assistantID string) (agentchat.Participant, error) {
	if r.Backend == nil {
		return nil, errNoBackend
	}
	cfg := r.config()
	return agentchat.NewHostedAssistantAgent(name, agentchat.HostedAssistantConfig{
		AssistantID:  assistantID,
		Backend:      r.Backend,
		PollInterval: cfg.PollInterval(),
		RunTimeout:   cfg.RunTimeout(),
	}), nil
}

func (r *AgentRoster) config() *config.Config {
	if r.Config == nil {
		return config.New()
	}
	return r.Config
}
