package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vinayprograms/researchdesk/internal/ui"
)

// askTimeoutMsg fires when a free-text prompt has waited its full timeout.
type askTimeoutMsg struct{ id int }

// conversationDoneMsg is sent when a submitted message has been handled.
type conversationDoneMsg struct{ err error }

type entry struct {
	author  string
	content string
}

// pending is the prompt currently waiting on the user. Exactly one of ask
// and action is set.
type pending struct {
	id     int
	ask    *askMsg
	action *actionMsg
	cursor int
}

type model struct {
	title    string
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	ready    bool

	entries []entry
	avatars map[string]lipgloss.Color // author -> color
	images  map[string]lipgloss.Color // image path -> color

	busy   bool
	prompt *pending
	nextID int
	status string

	// submit handles a message typed outside any prompt. It runs off the
	// event loop and may block for the whole conversation.
	submit func(text string) error
}

func newModel(title string, submit func(string) error) *model {
	in := textinput.New()
	in.Placeholder = "Describe a research task..."
	in.CharLimit = 4000
	in.Focus()

	return &model{
		title:   title,
		input:   in,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		avatars: make(map[string]lipgloss.Color),
		images:  make(map[string]lipgloss.Color),
		submit:  submit,
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case publishMsg:
		m.append(msg.msg.Author, msg.msg.Content)
		return m, nil

	case avatarMsg:
		m.registerAvatar(msg.avatar)
		return m, nil

	case askMsg:
		m.dismiss()
		m.nextID++
		m.prompt = &pending{id: m.nextID, ask: &msg}
		if msg.req.Content != "" {
			m.append(authorOr(msg.req.Author), msg.req.Content)
		}
		m.input.Reset()
		m.input.Placeholder = "Type your reply..."
		if msg.req.Timeout > 0 {
			id := m.nextID
			return m, tea.Tick(msg.req.Timeout, func(time.Time) tea.Msg { return askTimeoutMsg{id: id} })
		}
		return m, nil

	case actionMsg:
		m.dismiss()
		m.nextID++
		m.prompt = &pending{id: m.nextID, action: &msg}
		if msg.req.Content != "" {
			m.append(authorOr(msg.req.Author), msg.req.Content)
		}
		return m, nil

	case askTimeoutMsg:
		if m.prompt != nil && m.prompt.ask != nil && m.prompt.id == msg.id {
			m.dismiss()
			m.status = "prompt timed out"
		}
		return m, nil

	case conversationDoneMsg:
		m.busy = false
		m.dismiss()
		m.input.Placeholder = "Describe a research task..."
		if msg.err != nil {
			m.status = "conversation failed"
		} else {
			m.status = "conversation finished"
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "ctrl+c":
		m.dismiss()
		return m, tea.Quit
	case "pgup", "pgdown":
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.prompt != nil && m.prompt.action != nil {
		m.handleActionKey(msg)
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		if m.prompt != nil {
			m.dismiss()
			m.status = "prompt dismissed"
		}
		return m, nil
	case tea.KeyEnter:
		return m, m.submitInput()
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleActionKey(msg tea.KeyMsg) {
	actions := m.prompt.action.req.Actions
	if len(actions) == 0 {
		if msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
			m.dismiss()
		}
		return
	}

	switch key := msg.String(); key {
	case "left", "up", "shift+tab", "h", "k":
		m.prompt.cursor = max(m.prompt.cursor-1, 0)
	case "right", "down", "tab", "l", "j":
		m.prompt.cursor = min(m.prompt.cursor+1, len(actions)-1)
	case "enter":
		m.choose(m.prompt.cursor)
	case "esc":
		m.dismiss()
		m.status = "prompt dismissed"
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(actions) {
			m.choose(n - 1)
		}
	}
}

// submitInput answers the pending free-text prompt or starts a new
// conversation with the typed text.
func (m *model) submitInput() tea.Cmd {
	raw := m.input.Value()
	text := strings.TrimSpace(raw)

	if m.prompt != nil && m.prompt.ask != nil {
		m.prompt.ask.reply <- &ui.AskReply{Author: ui.UserAuthor, Content: raw}
		m.prompt = nil
		if text != "" {
			m.append(ui.UserAuthor, text)
		}
		m.input.Reset()
		m.status = ""
		return nil
	}

	if text == "" {
		return nil
	}
	if m.busy {
		m.status = "a conversation is already running"
		return nil
	}

	m.append(ui.UserAuthor, text)
	m.input.Reset()
	m.busy = true
	m.status = ""

	submit := m.submit
	run := func() tea.Msg {
		if submit == nil {
			return conversationDoneMsg{}
		}
		return conversationDoneMsg{err: submit(text)}
	}
	return tea.Batch(m.spinner.Tick, run)
}

func (m *model) choose(i int) {
	a := m.prompt.action.req.Actions[i]
	m.prompt.action.reply <- &ui.ActionReply{Name: a.Name, Value: a.Value}
	m.prompt = nil
	m.status = ""
	m.append(ui.UserAuthor, a.Label)
}

// dismiss answers the pending prompt with a nil reply.
func (m *model) dismiss() {
	if m.prompt == nil {
		return
	}
	switch {
	case m.prompt.ask != nil:
		m.prompt.ask.reply <- nil
	case m.prompt.action != nil:
		m.prompt.action.reply <- nil
	}
	m.prompt = nil
	m.input.Reset()
}

func (m *model) registerAvatar(a ui.Avatar) {
	c, ok := m.images[a.Path]
	if !ok {
		c = avatarPalette[len(m.images)%len(avatarPalette)]
		m.images[a.Path] = c
	}
	m.avatars[a.Name] = c
}

func (m *model) append(author, content string) {
	m.entries = append(m.entries, entry{author: author, content: content})
	if m.ready {
		m.refresh()
	}
}

func (m *model) resize(width, height int) {
	const chrome = 4 // header, prompt line, input, footer
	h := max(1, height-chrome)
	if !m.ready {
		m.viewport = viewport.New(width, h)
		m.viewport.YPosition = 1
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = h
	}
	m.input.Width = max(10, width-4)
	m.refresh()
}

func (m *model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m *model) render() string {
	width := max(20, m.viewport.Width-2)
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(authorStyle(e.author, m.avatars).Render(e.author))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(e.content, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := titleStyle.Render(m.title)
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, infoStyle.Render(line))

	var help string
	switch {
	case m.prompt != nil && m.prompt.action != nil:
		help = " 1-9/←→: choose │ enter: confirm │ esc: dismiss "
	case m.prompt != nil:
		help = " enter: reply │ esc: skip │ pgup/pgdn: scroll │ ctrl+c: quit "
	default:
		help = " enter: send │ pgup/pgdn: scroll │ ctrl+c: quit "
	}
	info := fmt.Sprintf(" %d messages ", len(m.entries))
	footer := helpStyle.Render(help) +
		infoStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))) +
		infoStyle.Render(info)

	return header + "\n" + m.viewport.View() + "\n" + m.promptLine() + "\n" + m.input.View() + "\n" + footer
}

func (m *model) promptLine() string {
	switch {
	case m.prompt != nil && m.prompt.action != nil:
		var parts []string
		for i, a := range m.prompt.action.req.Actions {
			label := fmt.Sprintf(" %d %s ", i+1, a.Label)
			if i == m.prompt.cursor {
				parts = append(parts, selectedStyle.Render(label))
			} else {
				parts = append(parts, choiceStyle.Render(label))
			}
		}
		return strings.Join(parts, " ")
	case m.prompt != nil:
		return promptStyle.Render("▸ reply to " + authorOr(m.prompt.ask.req.Author))
	case m.busy:
		return m.spinner.View() + infoStyle.Render(" agents are working")
	case m.status == "conversation failed":
		return errorStyle.Render(m.status)
	}
	return infoStyle.Render(m.status)
}

func authorOr(author string) string {
	if author == "" {
		return ui.DefaultAuthor
	}
	return author
}
