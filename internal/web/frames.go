package web

// Frame types sent to the browser.
const (
	FrameSession = "session"
	FrameMessage = "message"
	FrameAvatar  = "avatar"
	FrameAsk     = "ask"
	FrameAction  = "action"
	// FrameExpired withdraws a prompt that timed out.
	FrameExpired = "expired"
)

// Frame types sent by the browser.
const (
	FrameUserMessage = "user_message"
	FrameReply       = "reply"
	FrameActionReply = "action_reply"
)

// Frame is one JSON websocket message in either direction.
type Frame struct {
	Type      string        `json:"type"`
	ID        string        `json:"id,omitempty"`
	Session   string        `json:"session,omitempty"`
	Author    string        `json:"author,omitempty"`
	Content   string        `json:"content,omitempty"`
	Name      string        `json:"name,omitempty"`
	Value     string        `json:"value,omitempty"`
	URL       string        `json:"url,omitempty"`
	TimeoutMs int64         `json:"timeout_ms,omitempty"`
	Actions   []FrameButton `json:"actions,omitempty"`
}

// FrameButton is one button of an action prompt.
type FrameButton struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}
