package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/vinayprograms/researchdesk/internal/logging"
	"github.com/vinayprograms/researchdesk/internal/ui"
)

// Recorder is a ui.Surface that records every interaction with the
// surface it wraps and streams the records to its sinks.
type Recorder struct {
	inner  ui.Surface
	tr     *Transcript
	sinks  []Sink
	logger *logging.Logger

	// Serializes sink writes so records arrive in sequence order.
	writeMu sync.Mutex
	once    sync.Once
}

// Recording starts a transcript for a session on inner. label names the
// front end ("tui", "web").
func Recording(inner ui.Surface, label string, sinks ...Sink) *Recorder {
	r := &Recorder{
		inner: inner,
		tr:    New(label),
		sinks: sinks,
	}
	r.logger = logging.New().WithComponent("transcript").WithSession(r.tr.ID)
	r.emit(r.tr.header())
	return r
}

var _ ui.Surface = (*Recorder)(nil)

// ID returns the session ID.
func (r *Recorder) ID() string { return r.tr.ID }

// Transcript returns the in-memory transcript.
func (r *Recorder) Transcript() *Transcript { return r.tr }

// Note records an event that did not pass through the surface.
func (r *Recorder) Note(event Event) {
	r.record(event)
}

// Close writes the footer. err marks the session failed.
func (r *Recorder) Close(err error) {
	r.once.Do(func() {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		r.tr.Finish(msg)
		r.emit(r.tr.footer())
	})
}

// Publish records and forwards a message.
func (r *Recorder) Publish(ctx context.Context, msg ui.Message) error {
	err := r.inner.Publish(ctx, msg)
	if err == nil {
		r.record(Event{Type: EventMessage, Author: msg.Author, Content: msg.Content})
	}
	return err
}

// RegisterAvatar records and forwards an avatar.
func (r *Recorder) RegisterAvatar(ctx context.Context, avatar ui.Avatar) error {
	err := r.inner.RegisterAvatar(ctx, avatar)
	if err == nil {
		r.record(Event{Type: EventAvatar, Author: avatar.Name, Content: avatar.Path})
	}
	return err
}

// AskUser records the prompt and its answer.
func (r *Recorder) AskUser(ctx context.Context, req ui.AskRequest) (*ui.AskReply, error) {
	r.record(Event{Type: EventAsk, Author: req.Author, Content: req.Content})
	start := time.Now()
	reply, err := r.inner.AskUser(ctx, req)
	if err != nil {
		return nil, err
	}
	ev := Event{Type: EventReply, Author: ui.UserAuthor, DurationMs: time.Since(start).Milliseconds()}
	if reply == nil {
		ev.TimedOut = true
	} else {
		ev.Content = reply.Content
	}
	r.record(ev)
	return reply, nil
}

// AskAction records the choices offered and the one taken.
func (r *Recorder) AskAction(ctx context.Context, req ui.ActionRequest) (*ui.ActionReply, error) {
	names := make([]string, 0, len(req.Actions))
	for _, a := range req.Actions {
		names = append(names, a.Name)
	}
	r.record(Event{Type: EventAction, Author: req.Author, Content: req.Content, Actions: names})
	start := time.Now()
	reply, err := r.inner.AskAction(ctx, req)
	if err != nil {
		return nil, err
	}
	ev := Event{Type: EventActionReply, Author: ui.UserAuthor, DurationMs: time.Since(start).Milliseconds()}
	if reply == nil {
		ev.TimedOut = true
	} else {
		ev.Choice = reply.Name
		ev.Content = reply.Value
	}
	r.record(ev)
	return reply, nil
}

func (r *Recorder) record(event Event) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	ev := r.tr.Add(event)
	r.write(Record{RecordType: RecordTypeEvent, ID: r.tr.ID, Event: &ev})
}

func (r *Recorder) emit(rec Record) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.write(rec)
}

func (r *Recorder) write(rec Record) {
	for _, s := range r.sinks {
		if err := s.Write(rec); err != nil {
			r.logger.Warn("transcript sink write failed", map[string]interface{}{
				"record": rec.RecordType,
				"error":  err.Error(),
			})
		}
	}
}
