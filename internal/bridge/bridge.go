// Package bridge mirrors agent conversations into a ui.Surface.
//
// Observe wraps any agentchat.Participant so that every message it sends is
// published to the surface first. HumanInput answers a user proxy's prompts
// from the surface.
package bridge

import (
	"context"
	"fmt"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
	"github.com/vinayprograms/researchdesk/internal/logging"
	"github.com/vinayprograms/researchdesk/internal/ui"
)

// Author labels for the participant flavors.
const (
	AuthorAssistant       = "AssistantAgent"
	AuthorHostedAssistant = "GPTAssistantAgent"
	AuthorUserProxy       = "UserProxyAgent"
)

// Format selects how a message body is rendered in the notice.
type Format int

const (
	// FormatContent renders the message content field.
	FormatContent Format = iota
	// FormatRaw renders the raw message value.
	FormatRaw
)

// Notice renders the transcript line for a message sent to recipient.
func Notice(recipient, body string) string {
	return FormatContent.Notice(recipient, body)
}

// Notice renders the transcript line in this format's style. Raw notices
// keep the colon outside the emphasis.
func (f Format) Notice(recipient, body string) string {
	if f == FormatRaw {
		return fmt.Sprintf("*Sending message to \"%s\"*:\n\n%s", recipient, body)
	}
	return fmt.Sprintf("*Sending message to \"%s\":*\n\n%s", recipient, body)
}

// Observed is a participant whose outbound messages are published to a
// surface before they are delivered.
type Observed struct {
	inner   agentchat.Participant
	surface ui.Surface
	author  string
	format  Format
	logger  *logging.Logger
}

// Observe wraps inner. When inner supports rebinding, the wrapper becomes
// its identity so replies inner sends on its own are observed too.
func Observe(inner agentchat.Participant, surface ui.Surface, author string, format Format) *Observed {
	o := &Observed{
		inner:   inner,
		surface: surface,
		author:  author,
		format:  format,
		logger:  logging.New().WithComponent("bridge"),
	}
	if r, ok := inner.(agentchat.Rebinder); ok {
		r.Rebind(o)
	}
	return o
}

// Inner returns the wrapped participant.
func (o *Observed) Inner() agentchat.Participant {
	return o.inner
}

// Author returns the label used for published notices.
func (o *Observed) Author() string {
	return o.author
}

// Name returns the wrapped participant's name.
func (o *Observed) Name() string {
	return o.inner.Name()
}

// Send publishes the notice, then delegates with all arguments unchanged.
func (o *Observed) Send(ctx context.Context, msg agentchat.Message, recipient agentchat.Participant, requestReply, silent bool) (bool, error) {
	body := msg.Content
	if o.format == FormatRaw {
		body = msg.String()
	}
	err := o.surface.Publish(ctx, ui.Message{
		Author:  o.author,
		Content: o.format.Notice(recipient.Name(), body),
	})
	if err != nil {
		o.logger.Warn("publish failed", map[string]interface{}{
			"author":    o.author,
			"recipient": recipient.Name(),
			"error":     err.Error(),
		})
	}
	return o.inner.Send(ctx, msg, recipient, requestReply, silent)
}

// Receive delegates to the wrapped participant.
func (o *Observed) Receive(ctx context.Context, msg agentchat.Message, sender agentchat.Participant, requestReply, silent bool) (bool, error) {
	return o.inner.Receive(ctx, msg, sender, requestReply, silent)
}

// GenerateReply delegates to the wrapped participant.
func (o *Observed) GenerateReply(ctx context.Context, sender agentchat.Participant) (*agentchat.Message, error) {
	return o.inner.GenerateReply(ctx, sender)
}

// Description forwards the wrapped participant's description.
func (o *Observed) Description() string {
	if d, ok := o.inner.(agentchat.Describer); ok {
		return d.Description()
	}
	return ""
}

// ClearHistory forwards to the wrapped participant when it keeps history.
func (o *Observed) ClearHistory(peer string) {
	if hc, ok := o.inner.(interface{ ClearHistory(string) }); ok {
		hc.ClearHistory(peer)
	}
}
