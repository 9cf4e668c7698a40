package agentchat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/vinayprograms/agentkit/llm"
)

// Speaker selection methods.
const (
	SelectAuto       = "auto"
	SelectRoundRobin = "round_robin"
)

// ErrNoAgents is returned when a group chat has no participants.
var ErrNoAgents = errors.New("group chat has no agents")

// GroupChat is the shared state of one multi-agent conversation.
type GroupChat struct {
	Agents   []Participant
	Messages []Message
	MaxRound int
	// SpeakerSelection is SelectAuto (the default) or SelectRoundRobin.
	SpeakerSelection string

	mu sync.Mutex
}

// Append adds msg to the shared transcript.
func (g *GroupChat) Append(msg Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Messages = append(g.Messages, msg)
}

// Transcript returns a copy of the shared transcript.
func (g *GroupChat) Transcript() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Message(nil), g.Messages...)
}

// AgentNames lists participant names in order.
func (g *GroupChat) AgentNames() []string {
	names := make([]string, len(g.Agents))
	for i, a := range g.Agents {
		names[i] = a.Name()
	}
	return names
}

// AgentByName returns the participant called name, or nil.
func (g *GroupChat) AgentByName(name string) Participant {
	for _, a := range g.Agents {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// NextAgent returns the participant after agent in round-robin order. An
// unknown agent yields the first participant.
func (g *GroupChat) NextAgent(agent Participant) Participant {
	if len(g.Agents) == 0 {
		return nil
	}
	if agent != nil {
		for i, a := range g.Agents {
			if a.Name() == agent.Name() {
				return g.Agents[(i+1)%len(g.Agents)]
			}
		}
	}
	return g.Agents[0]
}

// SelectSpeaker picks who talks next. In auto mode the selector model
// reads the transcript and names a role; anything other than exactly one
// recognizable name falls back to round robin.
func (g *GroupChat) SelectSpeaker(ctx context.Context, last Participant, selector llm.Provider) (Participant, error) {
	if len(g.Agents) == 0 {
		return nil, ErrNoAgents
	}
	if g.SpeakerSelection == SelectRoundRobin || selector == nil || len(g.Agents) < 2 {
		return g.NextAgent(last), nil
	}

	resp, err := selector.Chat(ctx, llm.ChatRequest{Messages: g.selectionMessages()})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return g.NextAgent(last), fmt.Errorf("speaker selection: %w", err)
	}
	if a := g.matchAgent(resp.Content); a != nil {
		return a, nil
	}
	return g.NextAgent(last), nil
}

func (g *GroupChat) selectionMessages() []llm.Message {
	names := g.AgentNames()
	list := "[" + strings.Join(names, ", ") + "]"

	var roles strings.Builder
	for _, a := range g.Agents {
		desc := ""
		if d, ok := a.(Describer); ok {
			desc = d.Description()
		}
		fmt.Fprintf(&roles, "%s: %s\n", a.Name(), desc)
	}

	msgs := []llm.Message{{
		Role: RoleSystem,
		Content: fmt.Sprintf("You are in a role play game. The following roles are available:\n%s.\n\n"+
			"Read the following conversation.\nThen select the next role from %s to play. Only return the role.",
			strings.TrimRight(roles.String(), "\n"), list),
	}}
	for _, m := range g.Transcript() {
		msgs = append(msgs, llm.Message{Role: RoleUser, Content: m.Name + ": " + m.Content})
	}
	msgs = append(msgs, llm.Message{
		Role:    RoleUser,
		Content: fmt.Sprintf("Read the above conversation. Then select the next role from %s to play. Only return the role.", list),
	})
	return msgs
}

// matchAgent resolves a selector answer to a participant: an exact name
// first, otherwise the single name mentioned in the text.
func (g *GroupChat) matchAgent(answer string) Participant {
	answer = strings.TrimSpace(answer)
	if a := g.AgentByName(answer); a != nil {
		return a
	}
	var found Participant
	for _, a := range g.Agents {
		re := regexp.MustCompile(`(^|\W)` + regexp.QuoteMeta(a.Name()) + `(\W|$)`)
		if re.MatchString(answer) {
			if found != nil {
				return nil
			}
			found = a
		}
	}
	return found
}
