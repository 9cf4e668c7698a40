package replay

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/researchdesk/internal/bridge"
	"github.com/vinayprograms/researchdesk/internal/transcript"
	"github.com/vinayprograms/researchdesk/internal/ui"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleTranscript() *transcript.Transcript {
	tr := &transcript.Transcript{
		ID:        "7f1c2a9e-0000-4000-8000-000000000001",
		Surface:   "tui",
		Status:    transcript.StatusComplete,
		CreatedAt: t0,
	}
	add := func(offset time.Duration, e transcript.Event) {
		e.Timestamp = t0.Add(offset)
		e.SeqID = uint64(len(tr.Events) + 1)
		tr.Events = append(tr.Events, e)
	}
	add(0, transcript.Event{Type: transcript.EventUserMessage, Content: "Size the EV charger market"})
	add(time.Second, transcript.Event{Type: transcript.EventMessage, Author: bridge.AuthorUserProxy,
		Content: bridge.Notice("Researcher", "Size the EV charger market")})
	add(2*time.Second, transcript.Event{Type: transcript.EventAction, Author: bridge.AuthorUserProxy,
		Content: "Continue?", Actions: []string{"continue", "feedback", "exit"}})
	add(4*time.Second, transcript.Event{Type: transcript.EventActionReply, Choice: "feedback", DurationMs: 2000})
	add(5*time.Second, transcript.Event{Type: transcript.EventAsk, Author: bridge.AuthorUserProxy, Content: "Feedback?"})
	add(65*time.Second, transcript.Event{Type: transcript.EventReply, TimedOut: true, DurationMs: 60000})
	add(66*time.Second, transcript.Event{Type: transcript.EventMessage, Author: bridge.AuthorHostedAssistant,
		Content: bridge.Notice("UserProxyAgent", "TERMINATE")})
	add(67*time.Second, transcript.Event{Type: transcript.EventConversation, Content: "terminated"})
	return tr
}

func TestSplitNotice(t *testing.T) {
	tests := []struct {
		in        string
		recipient string
		body      string
	}{
		{bridge.Notice("Researcher", "hello"), "Researcher", "hello"},
		{bridge.FormatRaw.Notice("chat_manager", "Starting agents"), "chat_manager", "Starting agents"},
		{"plain text", "", "plain text"},
		{`*Sending message to "broken`, "", `*Sending message to "broken`},
	}
	for _, tt := range tests {
		recipient, body := splitNotice(tt.in)
		if recipient != tt.recipient || body != tt.body {
			t.Errorf("splitNotice(%q) = %q, %q; want %q, %q", tt.in, recipient, body, tt.recipient, tt.body)
		}
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(sampleTranscript())

	if stats.TotalDurationMs != 67000 {
		t.Errorf("TotalDurationMs = %d, want 67000", stats.TotalDurationMs)
	}
	if stats.Tasks != 1 || stats.Conversations != 1 || stats.Errors != 0 {
		t.Errorf("tasks/conversations/errors = %d/%d/%d", stats.Tasks, stats.Conversations, stats.Errors)
	}
	if stats.Messages != 2 {
		t.Errorf("Messages = %d, want 2", stats.Messages)
	}
	if stats.MessagesByAuthor[bridge.AuthorUserProxy] != 1 || stats.MessagesByAuthor[bridge.AuthorHostedAssistant] != 1 {
		t.Errorf("MessagesByAuthor = %v", stats.MessagesByAuthor)
	}
	if stats.Prompts != 2 || stats.Answered != 1 || stats.TimedOut != 1 {
		t.Errorf("prompts/answered/timed out = %d/%d/%d", stats.Prompts, stats.Answered, stats.TimedOut)
	}
	if stats.Choices["feedback"] != 1 {
		t.Errorf("Choices = %v", stats.Choices)
	}
	if stats.WaitAvgMs != 31000 {
		t.Errorf("WaitAvgMs = %d, want 31000", stats.WaitAvgMs)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(&transcript.Transcript{})
	if stats.TotalDurationMs != 0 || stats.WaitAvgMs != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestReplay_Timeline(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, 0).Replay(sampleTranscript()); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"SESSION",
		"7f1c2a9e-0000-4000-8000-000000000001",
		"TIMELINE",
		"(8 events)",
		"TASK",
		"Size the EV charger market",
		bridge.AuthorUserProxy + " → Researcher",
		"CHOOSE",
		"[continue | feedback | exit]",
		"CHOICE",
		"feedback",
		"timed out",
		"CONVERSATION END",
		"COMPLETED",
		"SESSION STATISTICS",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Sending message to") {
		t.Error("notice prefix should be folded into the author label")
	}
	if strings.Contains(out, "Continue?") {
		t.Error("prompt text should only show when verbose")
	}
}

func TestReplay_VerboseShowsContent(t *testing.T) {
	tr := sampleTranscript()
	long := strings.Repeat("line\n", 30)
	tr.Events[1].Content = bridge.Notice("Researcher", long)

	var buf bytes.Buffer
	New(&buf, 1).Replay(tr)
	out := buf.String()
	if !strings.Contains(out, "Continue?") {
		t.Error("verbose output should include prompt text")
	}
	if !strings.Contains(out, "more lines)") {
		t.Error("verbose output should cap long content")
	}

	buf.Reset()
	New(&buf, 2).Replay(tr)
	if strings.Contains(buf.String(), "more lines)") {
		t.Error("very verbose output should not cap content")
	}
}

func TestReplay_Failed(t *testing.T) {
	tr := sampleTranscript()
	tr.Status = transcript.StatusFailed
	tr.Error = "backend unavailable"
	tr.Events = append(tr.Events, transcript.Event{SeqID: 9, Type: transcript.EventError, Timestamp: t0, Content: "backend unavailable"})

	var buf bytes.Buffer
	New(&buf, 0).Replay(tr)
	out := buf.String()
	if !strings.Contains(out, "FAILED:") || !strings.Contains(out, "ERROR") {
		t.Errorf("failed transcript output:\n%s", out)
	}
	if !strings.Contains(out, "Errors:") {
		t.Error("stats should list errors")
	}
}

func writeTranscript(t *testing.T, dir string, tr *transcript.Transcript) string {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.Encode(transcript.Record{RecordType: transcript.RecordTypeHeader, ID: tr.ID, Surface: tr.Surface, CreatedAt: tr.CreatedAt})
	for i := range tr.Events {
		enc.Encode(transcript.Record{RecordType: transcript.RecordTypeEvent, ID: tr.ID, Event: &tr.Events[i]})
	}
	if tr.Status != transcript.StatusRunning {
		enc.Encode(transcript.Record{RecordType: transcript.RecordTypeFooter, ID: tr.ID, Status: tr.Status, UpdatedAt: tr.CreatedAt})
	}
	path := filepath.Join(dir, tr.ID+".jsonl")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

func TestLoad_TruncatesContent(t *testing.T) {
	tr := sampleTranscript()
	tr.Events[0].Content = strings.Repeat("x", 500)
	path := writeTranscript(t, t.TempDir(), tr)

	loaded, err := New(nil, 0, WithMaxContentSize(100)).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := loaded.Events[0].Content
	if !strings.HasPrefix(got, strings.Repeat("x", 100)+"\n... [truncated, 500 bytes total]") {
		t.Errorf("content not truncated: %q", got)
	}
	if loaded.Status != transcript.StatusComplete {
		t.Errorf("Status = %q, want complete", loaded.Status)
	}

	loaded, err = New(nil, 0, WithMaxContentSize(0)).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Events[0].Content) != 500 {
		t.Errorf("unlimited load changed content length to %d", len(loaded.Events[0].Content))
	}
}

func TestMulti_OrdersByCreation(t *testing.T) {
	dir := t.TempDir()

	later := sampleTranscript()
	later.ID = "bbbbbbbb-later"
	later.Surface = "web"
	later.CreatedAt = t0.Add(time.Hour)
	writeTranscript(t, dir, later)

	earlier := sampleTranscript()
	earlier.ID = "aaaaaaaa-earlier"
	writeTranscript(t, dir, earlier)

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)

	files, err := ExpandPaths([]string{dir})
	if err != nil {
		t.Fatalf("ExpandPaths: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ExpandPaths = %v, want 2 transcripts", files)
	}

	var buf bytes.Buffer
	// Pass the later one first; output must still start with the earlier.
	if err := NewMulti(&buf, 0).ReplayFiles([]string{files[1], files[0]}); err != nil {
		t.Fatalf("ReplayFiles: %v", err)
	}
	out := buf.String()
	first := strings.Index(out, "[1/2] tui │ aaaaaaaa-ear")
	second := strings.Index(out, "[2/2] web │ bbbbbbbb-lat")
	if first < 0 || second < 0 || first > second {
		t.Errorf("sessions out of order:\n%s", out)
	}
}

func TestExpandPaths_Missing(t *testing.T) {
	if _, err := ExpandPaths([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestWrapContent(t *testing.T) {
	if got := wrapContent("short", 0); got != "short" {
		t.Errorf("zero width changed content: %q", got)
	}

	row := "    1 │ 10:00:00 │ " + strings.Repeat("word ", 20)
	lines := strings.Split(wrapContent(row, 50), "\n")
	if len(lines) < 2 {
		t.Fatalf("row not wrapped: %q", lines)
	}
	indent := lipgloss.Width("    1 │ 10:00:00 │ ")
	for _, l := range lines[1:] {
		if !strings.HasPrefix(l, strings.Repeat(" ", indent)) {
			t.Errorf("continuation %q not indented under text column", l)
		}
	}

	plain := strings.Repeat("word ", 20)
	for _, l := range strings.Split(wrapContent(plain, 30), "\n") {
		if lipgloss.Width(l) > 30 {
			t.Errorf("line %q wider than 30", l)
		}
	}
}

func TestAuthorStyle(t *testing.T) {
	if authorStyle(ui.UserAuthor).GetForeground() != userStyle.GetForeground() {
		t.Error("user should use the user style")
	}
	if authorStyle("SomeoneElse").GetForeground() != titleStyle.GetForeground() {
		t.Error("unknown authors fall back to the title style")
	}
}
