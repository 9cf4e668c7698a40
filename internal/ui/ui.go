// Package ui defines the operations the chat layer issues to a front end.
//
// A Surface is the only way the rest of the system talks to a user: it can
// publish a message, register an avatar, and block on a free-text or
// multiple-choice prompt. The terminal and browser front ends implement it.
package ui

import (
	"context"
	"time"
)

// Message is a rendered transcript entry.
type Message struct {
	Author  string
	Content string
}

// Avatar binds an author label to an image.
type Avatar struct {
	Name string
	Path string
}

// AskRequest is a free-text prompt.
type AskRequest struct {
	Author  string
	Content string
	Timeout time.Duration
}

// AskReply is the user's answer to an AskRequest.
type AskReply struct {
	Author  string
	Content string
}

// Action is one choice of an ActionRequest.
type Action struct {
	Name  string
	Value string
	Label string
}

// ActionRequest is a multiple-choice prompt. It has no timeout.
type ActionRequest struct {
	Author  string
	Content string
	Actions []Action
}

// ActionReply carries the chosen action.
type ActionReply struct {
	Name  string
	Value string
}

// Surface is a user-facing front end.
//
// AskUser returns a nil reply, not an error, when the prompt times out.
// AskAction returns a nil reply when the prompt is dismissed. Both block
// until the user answers or ctx ends.
type Surface interface {
	Publish(ctx context.Context, msg Message) error
	RegisterAvatar(ctx context.Context, avatar Avatar) error
	AskUser(ctx context.Context, req AskRequest) (*AskReply, error)
	AskAction(ctx context.Context, req ActionRequest) (*ActionReply, error)
}

// DefaultAuthor labels messages that come from the application itself.
const DefaultAuthor = "Chatbot"

// UserAuthor labels messages typed by the user.
const UserAuthor = "User"
