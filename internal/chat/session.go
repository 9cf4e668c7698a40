// Package chat wires agent sessions to a user-facing surface.
//
// A Session holds the participants built for one user connection. Handlers
// populate it when the connection opens and start a fresh group chat over
// it for every message the user types.
package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
	"github.com/vinayprograms/researchdesk/internal/logging"
	"github.com/vinayprograms/researchdesk/internal/transcript"
	"github.com/vinayprograms/researchdesk/internal/ui"
)

// Role names under which participants are stored.
const (
	RoleAssistant        = "assistant"
	RoleUserProxy        = "user_proxy"
	RoleMarketResearcher = "market_researcher"
	RoleResearchManager  = "research_manager"
	RoleResearchDirector = "research_director"
)

// Roles lists every role a configured session holds.
var Roles = []string{
	RoleAssistant,
	RoleUserProxy,
	RoleMarketResearcher,
	RoleResearchManager,
	RoleResearchDirector,
}

// ConversationRoles are the group chat members, in speaking order.
var ConversationRoles = []string{
	RoleUserProxy,
	RoleMarketResearcher,
	RoleResearchManager,
	RoleResearchDirector,
}

var (
	ErrRoleNotConfigured      = errors.New("role not configured")
	ErrSessionNotReady        = errors.New("session not ready")
	ErrConversationInProgress = errors.New("conversation already in progress")
	ErrSessionClosed          = errors.New("session closed")
)

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateInProgress
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateInProgress:
		return "in-progress"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is the per-connection context passed to Handlers.
type Session struct {
	id      string
	surface ui.Surface
	rec     *transcript.Recorder
	logger  *logging.Logger

	mu    sync.RWMutex
	roles map[string]agentchat.Participant
	state State
}

// NewSession creates an uninitialized session on surface. A
// transcript.Recorder surface lends the session its transcript ID.
func NewSession(surface ui.Surface) *Session {
	s := &Session{
		surface: surface,
		roles:   make(map[string]agentchat.Participant),
	}
	if rec, ok := surface.(*transcript.Recorder); ok {
		s.rec = rec
		s.id = rec.ID()
	} else {
		s.id = uuid.New().String()
	}
	s.logger = logging.New().WithComponent("chat").WithSession(s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Surface returns the surface the session talks to.
func (s *Session) Surface() ui.Surface { return s.surface }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Role returns the participant stored under name.
func (s *Session) Role(name string) (agentchat.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.roles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotConfigured, name)
	}
	return p, nil
}

// RoleNames returns the populated roles in Roles order.
func (s *Session) RoleNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, r := range Roles {
		if _, ok := s.roles[r]; ok {
			names = append(names, r)
		}
	}
	return names
}

// configure stores the participants and marks the session ready once every
// role is present.
func (s *Session) configure(roles map[string]agentchat.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state == StateInProgress {
		return ErrConversationInProgress
	}
	for _, r := range Roles {
		if _, ok := roles[r]; !ok {
			return fmt.Errorf("%w: %s", ErrRoleNotConfigured, r)
		}
	}
	s.roles = roles
	s.state = StateConfigured
	return nil
}

// begin moves a configured session into a conversation.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateConfigured:
		s.state = StateInProgress
		return nil
	case StateInProgress:
		return ErrConversationInProgress
	case StateClosed:
		return ErrSessionClosed
	}
	return ErrSessionNotReady
}

// end returns the session to configured after a conversation.
func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInProgress {
		s.state = StateConfigured
	}
}

// note records an event when the session has a transcript.
func (s *Session) note(ev transcript.Event) {
	if s.rec != nil {
		s.rec.Note(ev)
	}
}

// Close releases the participants and ends the transcript. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.roles = make(map[string]agentchat.Participant)
	s.mu.Unlock()

	if s.rec != nil {
		s.rec.Close(nil)
	}
	s.logger.Info("session closed")
	return nil
}
