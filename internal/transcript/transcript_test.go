package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/vinayprograms/researchdesk/internal/ui"
	"github.com/vinayprograms/researchdesk/internal/ui/uitest"
)

type memorySink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (m *memorySink) Write(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func (m *memorySink) Close() error { return nil }

type fakePublisher struct {
	subjects []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestTranscript_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tr := New("tui")
		if ids[tr.ID] {
			t.Errorf("duplicate session ID: %s", tr.ID)
		}
		ids[tr.ID] = true
	}
}

func TestTranscript_AddSequences(t *testing.T) {
	tr := New("tui")
	first := tr.Add(Event{Type: EventMessage, Content: "a"})
	second := tr.Add(Event{Type: EventMessage, Content: "b"})

	if first.SeqID != 1 || second.SeqID != 2 {
		t.Errorf("seq ids = %d, %d; want 1, 2", first.SeqID, second.SeqID)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if got := len(tr.Snapshot()); got != 2 {
		t.Errorf("snapshot has %d events, want 2", got)
	}
}

func TestTranscript_Finish(t *testing.T) {
	tr := New("web")
	tr.Finish("")
	if tr.Status != StatusComplete {
		t.Errorf("status = %s, want complete", tr.Status)
	}

	tr = New("web")
	tr.Finish("boom")
	if tr.Status != StatusFailed || tr.Error != "boom" {
		t.Errorf("status = %s error = %q", tr.Status, tr.Error)
	}
}

func TestRecorder_RecordsSurfaceCalls(t *testing.T) {
	surface := uitest.New()
	surface.QueueAsk(uitest.Text("my answer"), nil)
	surface.QueueAction(uitest.Choose("continue"))
	sink := &memorySink{}

	rec := Recording(surface, "tui", sink)
	ctx := context.Background()

	if err := rec.RegisterAvatar(ctx, ui.Avatar{Name: "Chatbot", Path: "icon/chainlit.png"}); err != nil {
		t.Fatalf("RegisterAvatar: %v", err)
	}
	if err := rec.Publish(ctx, ui.Message{Author: "Chatbot", Content: "hello"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if reply, _ := rec.AskUser(ctx, ui.AskRequest{Content: "question?"}); reply == nil || reply.Content != "my answer" {
		t.Fatalf("AskUser reply = %+v", reply)
	}
	if reply, _ := rec.AskUser(ctx, ui.AskRequest{Content: "again?"}); reply != nil {
		t.Fatalf("expected timeout, got %+v", reply)
	}
	if reply, _ := rec.AskAction(ctx, ui.ActionRequest{Content: "pick", Actions: []ui.Action{{Name: "continue"}, {Name: "exit"}}}); reply == nil {
		t.Fatal("AskAction returned nil")
	}
	rec.Note(Event{Type: EventUserMessage, Author: ui.UserAuthor, Content: "research X"})
	rec.Close(nil)
	rec.Close(errors.New("ignored after first close"))

	events := rec.Transcript().Snapshot()
	wantTypes := []string{EventAvatar, EventMessage, EventAsk, EventReply, EventAsk, EventReply, EventAction, EventActionReply, EventUserMessage}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d type = %s, want %s", i, events[i].Type, want)
		}
		if events[i].SeqID != uint64(i+1) {
			t.Errorf("event %d seq = %d", i, events[i].SeqID)
		}
	}
	if !events[5].TimedOut {
		t.Error("second reply should be marked timed out")
	}
	if events[6].Actions[1] != "exit" || events[7].Choice != "continue" {
		t.Errorf("action events = %+v / %+v", events[6], events[7])
	}

	if len(sink.records) != len(wantTypes)+2 {
		t.Fatalf("sink got %d records, want header + events + footer", len(sink.records))
	}
	if sink.records[0].RecordType != RecordTypeHeader || sink.records[0].Surface != "tui" {
		t.Errorf("first record = %+v", sink.records[0])
	}
	last := sink.records[len(sink.records)-1]
	if last.RecordType != RecordTypeFooter || last.Status != StatusComplete {
		t.Errorf("last record = %+v", last)
	}
	for _, r := range sink.records {
		if r.ID != rec.ID() {
			t.Errorf("record %s has id %q, want %q", r.RecordType, r.ID, rec.ID())
		}
	}
}

func TestRecorder_PublishErrorNotRecorded(t *testing.T) {
	surface := uitest.New()
	surface.PublishErr = errors.New("closed")
	rec := Recording(surface, "web")

	if err := rec.Publish(context.Background(), ui.Message{Content: "x"}); err == nil {
		t.Fatal("expected publish error")
	}
	if n := len(rec.Transcript().Snapshot()); n != 0 {
		t.Errorf("recorded %d events for a failed publish", n)
	}
}

func TestRecorder_SinkErrorsDoNotBreakSurface(t *testing.T) {
	surface := uitest.New()
	rec := Recording(surface, "tui", &memorySink{err: errors.New("disk full")})

	if err := rec.Publish(context.Background(), ui.Message{Content: "still delivered"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := surface.Published(); len(got) != 1 {
		t.Errorf("surface got %d messages, want 1", len(got))
	}
}

func TestRecorder_FailedFooter(t *testing.T) {
	sink := &memorySink{}
	rec := Recording(uitest.New(), "tui", sink)
	rec.Close(errors.New("conversation failed"))

	last := sink.records[len(sink.records)-1]
	if last.Status != StatusFailed || last.Error != "conversation failed" {
		t.Errorf("footer = %+v", last)
	}
}

func TestFileSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	rec := Recording(uitest.New(), "web", sink)
	ctx := context.Background()
	_ = rec.Publish(ctx, ui.Message{Author: "Chatbot", Content: "line one\nline two"})
	rec.Note(Event{Type: EventError, Author: ui.DefaultAuthor, Content: "something broke"})
	rec.Close(nil)

	loaded, err := Load(sink.Path(rec.ID()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != rec.ID() || loaded.Surface != "web" {
		t.Errorf("header = %s/%s", loaded.ID, loaded.Surface)
	}
	if loaded.Status != StatusComplete {
		t.Errorf("status = %s, want complete", loaded.Status)
	}
	if len(loaded.Events) != 2 {
		t.Fatalf("loaded %d events, want 2", len(loaded.Events))
	}
	if loaded.Events[0].Content != "line one\nline two" {
		t.Errorf("content = %q", loaded.Events[0].Content)
	}
	if loaded.Events[1].Type != EventError || loaded.Events[1].Content != "something broke" {
		t.Errorf("error event = %+v", loaded.Events[1])
	}
}

func TestFileSink_ConcurrentSessions(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	a := Recording(uitest.New(), "web", sink)
	b := Recording(uitest.New(), "web", sink)
	_ = a.Publish(context.Background(), ui.Message{Content: "from a"})
	_ = b.Publish(context.Background(), ui.Message{Content: "from b"})
	a.Close(nil)
	b.Close(nil)

	for _, r := range []*Recorder{a, b} {
		loaded, err := Load(sink.Path(r.ID()))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(loaded.Events) != 1 {
			t.Errorf("%s: %d events, want 1", r.ID(), len(loaded.Events))
		}
	}
}

func TestRead_MissingFooterIsRunning(t *testing.T) {
	input := `{"_type":"header","id":"abc","surface":"tui","created_at":"2026-01-02T03:04:05Z"}
{"_type":"event","id":"abc","seq":1,"type":"message","timestamp":"2026-01-02T03:04:06Z","content":"hi"}`

	tr, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tr.Status != StatusRunning {
		t.Errorf("status = %s, want running", tr.Status)
	}
	if len(tr.Events) != 1 || tr.Events[0].Content != "hi" {
		t.Errorf("events = %+v", tr.Events)
	}
	if next := tr.Add(Event{Type: EventMessage}); next.SeqID != 2 {
		t.Errorf("next seq = %d, want 2", next.SeqID)
	}
}

func TestRead_InvalidLine(t *testing.T) {
	if _, err := Read(strings.NewReader("{not json}\n")); err == nil {
		t.Error("expected parse error")
	}
}

func TestNATSSink_PublishesPerSession(t *testing.T) {
	pub := &fakePublisher{}
	rec := Recording(uitest.New(), "web", NewNATSSink(pub, "researchdesk.transcripts."))
	_ = rec.Publish(context.Background(), ui.Message{Content: "hi"})
	rec.Close(nil)

	if len(pub.subjects) != 3 {
		t.Fatalf("published %d records, want 3", len(pub.subjects))
	}
	want := "researchdesk.transcripts." + rec.ID()
	for _, s := range pub.subjects {
		if s != want {
			t.Errorf("subject = %s, want %s", s, want)
		}
	}
	var record Record
	if err := json.Unmarshal(pub.payloads[1], &record); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if record.Event == nil || record.Content != "hi" {
		t.Errorf("record = %+v", record)
	}
}

func TestNewFileSink_CreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/transcripts"
	if _, err := NewFileSink(dir); err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}
