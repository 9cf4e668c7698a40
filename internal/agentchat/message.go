// Package agentchat is a small multi-agent conversation library.
//
// Participants exchange Messages through Send and Receive. A GroupChatManager
// drives several participants turn by turn over a shared GroupChat until a
// participant says TerminateMessage or the round cap is reached.
package agentchat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TerminateMessage ends a conversation when it is the whole content of a message.
const TerminateMessage = "TERMINATE"

// Message roles as stored in a participant's history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrMissingContent is returned when a structured message has no content field.
var ErrMissingContent = errors.New("message has no content field")

// Message is one unit of conversation.
type Message struct {
	Role    string `json:"role,omitempty"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`

	// Extra holds any other fields of a structured message.
	Extra map[string]any `json:"-"`
}

// NewMessage normalizes a plain string, a Message, or a structured map into
// a Message. A map must carry a "content" key.
func NewMessage(v any) (Message, error) {
	switch m := v.(type) {
	case Message:
		return m, nil
	case *Message:
		if m == nil {
			return Message{}, ErrMissingContent
		}
		return *m, nil
	case string:
		return Message{Content: m}, nil
	case map[string]any:
		raw, ok := m["content"]
		if !ok {
			return Message{}, ErrMissingContent
		}
		msg := Message{Content: contentString(raw)}
		for k, val := range m {
			switch k {
			case "content":
			case "role":
				msg.Role, _ = val.(string)
			case "name":
				msg.Name, _ = val.(string)
			default:
				if msg.Extra == nil {
					msg.Extra = map[string]any{}
				}
				msg.Extra[k] = val
			}
		}
		return msg, nil
	case map[string]string:
		generic := make(map[string]any, len(m))
		for k, val := range m {
			generic[k] = val
		}
		return NewMessage(generic)
	default:
		return Message{}, fmt.Errorf("unsupported message type %T", v)
	}
}

func contentString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

// structured reports whether the message carries more than plain text.
func (m Message) structured() bool {
	return m.Role != "" || m.Name != "" || len(m.Extra) > 0
}

// String renders the raw message: the text itself for plain messages, or a
// key/value form for structured ones.
func (m Message) String() string {
	if !m.structured() {
		return m.Content
	}
	fields := map[string]string{"content": fmt.Sprintf("%q", m.Content)}
	if m.Role != "" {
		fields["role"] = fmt.Sprintf("%q", m.Role)
	}
	if m.Name != "" {
		fields["name"] = fmt.Sprintf("%q", m.Name)
	}
	for k, v := range m.Extra {
		fields[k] = fmt.Sprintf("%v", v)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%q: %s", k, fields[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// IsTermination reports whether msg ends the conversation.
func IsTermination(msg Message) bool {
	return strings.TrimSpace(msg.Content) == TerminateMessage
}
