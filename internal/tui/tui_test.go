package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayprograms/researchdesk/internal/ui"
)

func sized(t *testing.T, submit func(string) error) *model {
	t.Helper()
	m := newModel("test", submit)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func typeText(m *model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func press(m *model, t tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: t})
	return cmd
}

func pressRune(m *model, r rune) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestModel_PublishAppendsEntry(t *testing.T) {
	m := sized(t, nil)
	m.Update(publishMsg{msg: ui.Message{Author: "Chatbot", Content: "hello there"}})

	if len(m.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.entries))
	}
	if m.entries[0].author != "Chatbot" || m.entries[0].content != "hello there" {
		t.Errorf("unexpected entry: %+v", m.entries[0])
	}
	if !strings.Contains(m.View(), "hello there") {
		t.Error("view should show the published message")
	}
}

func TestModel_AvatarsShareColorByImage(t *testing.T) {
	m := sized(t, nil)
	m.Update(avatarMsg{avatar: ui.Avatar{Name: "Chatbot", Path: "/public/chainlit.png"}})
	m.Update(avatarMsg{avatar: ui.Avatar{Name: "Agent", Path: "/public/chainlit.png"}})
	m.Update(avatarMsg{avatar: ui.Avatar{Name: "Assistant Agent", Path: "/public/openai.png"}})

	if m.avatars["Chatbot"] != m.avatars["Agent"] {
		t.Error("authors with the same image should share a color")
	}
	if m.avatars["Agent"] == m.avatars["Assistant Agent"] {
		t.Error("authors with different images should differ")
	}
}

func TestModel_AskReply(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.AskReply, 1)
	m.Update(askMsg{req: ui.AskRequest{Author: "Agent", Content: "Provide feedback", Timeout: time.Minute}, reply: reply})

	if m.prompt == nil || m.prompt.ask == nil {
		t.Fatal("expected a pending ask")
	}
	typeText(m, "  more detail please ")
	if cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Error("answering a prompt should not start a conversation")
	}

	select {
	case r := <-reply:
		if r == nil || r.Content != "  more detail please " || r.Author != ui.UserAuthor {
			t.Errorf("unexpected reply: %+v", r)
		}
	default:
		t.Fatal("no reply sent")
	}
	if m.prompt != nil {
		t.Error("prompt should be cleared")
	}
	last := m.entries[len(m.entries)-1]
	if last.author != ui.UserAuthor || last.content != "more detail please" {
		t.Errorf("unexpected last entry: %+v", last)
	}
}

func TestModel_AskTimeout(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.AskReply, 1)
	_, cmd := m.Update(askMsg{req: ui.AskRequest{Content: "anyone?", Timeout: time.Millisecond}, reply: reply})
	if cmd == nil {
		t.Fatal("expected a timeout command")
	}

	msg := cmd()
	timeout, ok := msg.(askTimeoutMsg)
	if !ok {
		t.Fatalf("expected askTimeoutMsg, got %T", msg)
	}

	m.Update(askTimeoutMsg{id: timeout.id + 1})
	if m.prompt == nil {
		t.Fatal("stale timeout should be ignored")
	}

	m.Update(timeout)
	select {
	case r := <-reply:
		if r != nil {
			t.Errorf("expected nil reply on timeout, got %+v", r)
		}
	default:
		t.Fatal("no reply sent on timeout")
	}
	if m.status != "prompt timed out" {
		t.Errorf("unexpected status %q", m.status)
	}
}

func TestModel_AskEscape(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.AskReply, 1)
	m.Update(askMsg{req: ui.AskRequest{Content: "?"}, reply: reply})
	press(m, tea.KeyEsc)

	if r := <-reply; r != nil {
		t.Errorf("expected nil reply, got %+v", r)
	}
}

var sentinelActions = []ui.Action{
	{Name: "continue", Value: "continue", Label: "✅ Continue"},
	{Name: "feedback", Value: "feedback", Label: "💬 Provide feedback"},
	{Name: "exit", Value: "exit", Label: "🔚 Exit Conversation"},
}

func TestModel_ActionByNumber(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.ActionReply, 1)
	m.Update(actionMsg{req: ui.ActionRequest{Content: "Pick one", Actions: sentinelActions}, reply: reply})

	pressRune(m, '3')

	r := <-reply
	if r == nil || r.Name != "exit" || r.Value != "exit" {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if last := m.entries[len(m.entries)-1]; last.content != "🔚 Exit Conversation" {
		t.Errorf("chosen label should be echoed, got %q", last.content)
	}
}

func TestModel_ActionByCursor(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.ActionReply, 1)
	m.Update(actionMsg{req: ui.ActionRequest{Actions: sentinelActions}, reply: reply})

	press(m, tea.KeyRight)
	press(m, tea.KeyRight)
	press(m, tea.KeyRight)
	press(m, tea.KeyLeft)
	if m.prompt.cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", m.prompt.cursor)
	}
	press(m, tea.KeyEnter)

	if r := <-reply; r == nil || r.Name != "feedback" {
		t.Fatalf("unexpected reply: %+v", r)
	}
}

func TestModel_ActionCursorStopsAtEnds(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.ActionReply, 1)
	m.Update(actionMsg{req: ui.ActionRequest{Actions: sentinelActions}, reply: reply})

	press(m, tea.KeyLeft)
	if m.prompt.cursor != 0 {
		t.Fatalf("left from the first action moved the cursor to %d", m.prompt.cursor)
	}
	for range 5 {
		press(m, tea.KeyRight)
	}
	if m.prompt.cursor != len(sentinelActions)-1 {
		t.Fatalf("expected cursor on the last action, got %d", m.prompt.cursor)
	}
	press(m, tea.KeyEnter)

	if r := <-reply; r == nil || r.Name != "exit" {
		t.Fatalf("unexpected reply: %+v", r)
	}
}

func TestModel_ActionIgnoresOutOfRange(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.ActionReply, 1)
	m.Update(actionMsg{req: ui.ActionRequest{Actions: sentinelActions}, reply: reply})

	pressRune(m, '9')
	pressRune(m, 'x')
	if m.prompt == nil {
		t.Fatal("prompt should still be pending")
	}
	press(m, tea.KeyEsc)
	if r := <-reply; r != nil {
		t.Errorf("expected nil reply on dismiss, got %+v", r)
	}
}

func TestModel_NewPromptSupersedesOld(t *testing.T) {
	m := sized(t, nil)
	first := make(chan *ui.ActionReply, 1)
	second := make(chan *ui.AskReply, 1)
	m.Update(actionMsg{req: ui.ActionRequest{Actions: sentinelActions}, reply: first})
	m.Update(askMsg{req: ui.AskRequest{Content: "?"}, reply: second})

	if r := <-first; r != nil {
		t.Errorf("superseded prompt should get nil, got %+v", r)
	}
	if m.prompt == nil || m.prompt.ask == nil {
		t.Error("new prompt should be pending")
	}
}

func runBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, c())
	}
	return out
}

func TestModel_SubmitStartsConversation(t *testing.T) {
	var got string
	m := sized(t, func(text string) error {
		got = text
		return nil
	})

	typeText(m, "research company X")
	cmd := press(m, tea.KeyEnter)
	if !m.busy {
		t.Fatal("model should be busy")
	}

	var done bool
	for _, msg := range runBatch(t, cmd) {
		if d, ok := msg.(conversationDoneMsg); ok {
			done = true
			if d.err != nil {
				t.Errorf("unexpected error: %v", d.err)
			}
			m.Update(d)
		}
	}
	if !done {
		t.Fatal("conversation command did not run")
	}
	if got != "research company X" {
		t.Errorf("submit got %q", got)
	}
	if m.busy {
		t.Error("model should be idle after the conversation")
	}
}

func TestModel_SubmitWhileBusy(t *testing.T) {
	m := sized(t, func(string) error { return nil })

	typeText(m, "first")
	press(m, tea.KeyEnter)
	typeText(m, "second")
	if cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Error("second submit should be refused")
	}
	if m.status != "a conversation is already running" {
		t.Errorf("unexpected status %q", m.status)
	}
}

func TestModel_SubmitEmpty(t *testing.T) {
	m := sized(t, nil)
	typeText(m, "   ")
	if cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Error("blank input should be ignored")
	}
}

func TestModel_ConversationFailure(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.ActionReply, 1)
	m.busy = true
	m.Update(actionMsg{req: ui.ActionRequest{Actions: sentinelActions}, reply: reply})
	m.Update(conversationDoneMsg{err: errors.New("boom")})

	if r := <-reply; r != nil {
		t.Errorf("pending prompt should be released, got %+v", r)
	}
	if m.status != "conversation failed" {
		t.Errorf("unexpected status %q", m.status)
	}
}

func TestModel_CtrlCQuits(t *testing.T) {
	m := sized(t, nil)
	reply := make(chan *ui.AskReply, 1)
	m.Update(askMsg{req: ui.AskRequest{}, reply: reply})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if r := <-reply; r != nil {
		t.Error("pending prompt should be released on quit")
	}
}

func TestModel_ViewBeforeSize(t *testing.T) {
	m := newModel("test", nil)
	m.Update(publishMsg{msg: ui.Message{Author: "Chatbot", Content: "early"}})
	if !strings.Contains(m.View(), "Loading") {
		t.Error("expected loading view before the first resize")
	}
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	if !strings.Contains(m.View(), "early") {
		t.Error("messages received before sizing should render")
	}
}

// answering returns a send func that plays the model's part synchronously.
func answering(ask *ui.AskReply, action *ui.ActionReply, sent *[]tea.Msg) func(tea.Msg) {
	return func(msg tea.Msg) {
		*sent = append(*sent, msg)
		switch msg := msg.(type) {
		case askMsg:
			msg.reply <- ask
		case actionMsg:
			msg.reply <- action
		}
	}
}

func TestSurface_Forwards(t *testing.T) {
	var sent []tea.Msg
	s := NewSurface(answering(
		&ui.AskReply{Author: ui.UserAuthor, Content: "ok"},
		&ui.ActionReply{Name: "continue", Value: "continue"},
		&sent,
	))
	ctx := context.Background()

	if err := s.Publish(ctx, ui.Message{Author: "A", Content: "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := s.RegisterAvatar(ctx, ui.Avatar{Name: "A", Path: "a.png"}); err != nil {
		t.Fatalf("RegisterAvatar: %v", err)
	}
	ask, err := s.AskUser(ctx, ui.AskRequest{Content: "?"})
	if err != nil || ask == nil || ask.Content != "ok" {
		t.Fatalf("AskUser = %+v, %v", ask, err)
	}
	act, err := s.AskAction(ctx, ui.ActionRequest{Actions: sentinelActions})
	if err != nil || act == nil || act.Name != "continue" {
		t.Fatalf("AskAction = %+v, %v", act, err)
	}

	if len(sent) != 4 {
		t.Fatalf("expected 4 messages sent, got %d", len(sent))
	}
	if _, ok := sent[0].(publishMsg); !ok {
		t.Errorf("first message should be publishMsg, got %T", sent[0])
	}
	if _, ok := sent[1].(avatarMsg); !ok {
		t.Errorf("second message should be avatarMsg, got %T", sent[1])
	}
}

func TestSurface_NilReplies(t *testing.T) {
	var sent []tea.Msg
	s := NewSurface(answering(nil, nil, &sent))

	ask, err := s.AskUser(context.Background(), ui.AskRequest{})
	if err != nil || ask != nil {
		t.Errorf("AskUser = %+v, %v; want nil, nil", ask, err)
	}
	act, err := s.AskAction(context.Background(), ui.ActionRequest{})
	if err != nil || act != nil {
		t.Errorf("AskAction = %+v, %v; want nil, nil", act, err)
	}
}

func TestSurface_ContextCancelled(t *testing.T) {
	s := NewSurface(func(tea.Msg) {})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := s.AskUser(ctx, ui.AskRequest{})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AskUser did not return after cancel")
	}

	if err := s.Publish(ctx, ui.Message{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish on cancelled ctx = %v", err)
	}
}
