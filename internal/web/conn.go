package web

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vinayprograms/researchdesk/internal/ui"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

var errConnClosed = errors.New("connection closed")

// conn is the ui.Surface of one browser tab. Prompts are matched to replies
// by frame ID.
type conn struct {
	ws      *websocket.Conn
	iconURL func(string) string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Frame
	seq     int

	closed    chan struct{}
	closeOnce sync.Once
}

var _ ui.Surface = (*conn)(nil)

func newConn(ws *websocket.Conn, iconURL func(string) string) *conn {
	ws.SetReadLimit(maxFrameSize)
	return &conn{
		ws:      ws,
		iconURL: iconURL,
		pending: make(map[string]chan Frame),
		closed:  make(chan struct{}),
	}
}

func (c *conn) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(f)
}

func (c *conn) Publish(ctx context.Context, msg ui.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(Frame{Type: FrameMessage, Author: msg.Author, Content: msg.Content})
}

func (c *conn) RegisterAvatar(ctx context.Context, avatar ui.Avatar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url := avatar.Path
	if c.iconURL != nil {
		url = c.iconURL(avatar.Path)
	}
	return c.write(Frame{Type: FrameAvatar, Name: avatar.Name, URL: url})
}

func (c *conn) AskUser(ctx context.Context, req ui.AskRequest) (*ui.AskReply, error) {
	id, ch := c.register()
	defer c.unregister(id)

	err := c.write(Frame{
		Type:      FrameAsk,
		ID:        id,
		Author:    req.Author,
		Content:   req.Content,
		TimeoutMs: req.Timeout.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		t := time.NewTimer(req.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case f := <-ch:
		return &ui.AskReply{Author: ui.UserAuthor, Content: f.Content}, nil
	case <-timeout:
		_ = c.write(Frame{Type: FrameExpired, ID: id})
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *conn) AskAction(ctx context.Context, req ui.ActionRequest) (*ui.ActionReply, error) {
	id, ch := c.register()
	defer c.unregister(id)

	actions := make([]FrameButton, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = FrameButton{Name: a.Name, Value: a.Value, Label: a.Label}
	}
	err := c.write(Frame{Type: FrameAction, ID: id, Author: req.Author, Content: req.Content, Actions: actions})
	if err != nil {
		return nil, err
	}

	select {
	case f := <-ch:
		for _, a := range req.Actions {
			if a.Name == f.Name {
				return &ui.ActionReply{Name: a.Name, Value: a.Value}, nil
			}
		}
		// Unknown or empty name means the prompt was dismissed.
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *conn) register() (string, chan Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := strconv.Itoa(c.seq)
	ch := make(chan Frame, 1)
	c.pending[id] = ch
	return id, ch
}

func (c *conn) unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// deliver hands a reply frame to the prompt waiting on its ID. It reports
// false when no prompt is waiting.
func (c *conn) deliver(f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[f.ID]
	if !ok {
		return false
	}
	delete(c.pending, f.ID)
	ch <- f
	return true
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.ws.Close()
	})
}
