// Package transcript records chat sessions as JSONL event logs.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status constants for transcripts.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Event types recorded for a session.
const (
	EventMessage      = "message"      // Published to the user
	EventAvatar       = "avatar"       // Avatar registered
	EventAsk          = "ask"          // Free-text prompt shown
	EventReply        = "reply"        // Free-text answer (or timeout)
	EventAction       = "action"       // Multiple-choice prompt shown
	EventActionReply  = "action_reply" // Choice made (or dismissed)
	EventUserMessage  = "user_message" // Task typed by the user
	EventConversation = "conversation" // Group chat finished
	EventError        = "error"        // Content holds the message
)

// JSONL record types.
const (
	RecordTypeHeader = "header"
	RecordTypeEvent  = "event"
	RecordTypeFooter = "footer"
)

// Transcript is the in-memory record of one chat session.
type Transcript struct {
	ID        string    `json:"id"`
	Surface   string    `json:"surface"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Events    []Event   `json:"events"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	seqCounter uint64
	mu         sync.Mutex
}

// Event is a single entry in a transcript.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Author  string   `json:"author,omitempty"`
	Content string   `json:"content,omitempty"`
	Actions []string `json:"actions,omitempty"` // Offered choices
	Choice  string   `json:"choice,omitempty"`  // Chosen action name

	TimedOut   bool  `json:"timed_out,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// Record is one JSONL line.
type Record struct {
	RecordType string `json:"_type"`

	// Header
	ID        string    `json:"id,omitempty"`
	Surface   string    `json:"surface,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	*Event `json:",omitempty"`

	// Footer
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// New creates a running transcript with a fresh session ID.
func New(surface string) *Transcript {
	now := time.Now()
	return &Transcript{
		ID:        uuid.New().String(),
		Surface:   surface,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Add appends an event, assigning its sequence number and timestamp.
func (t *Transcript) Add(event Event) Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seqCounter++
	event.SeqID = t.seqCounter
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	t.Events = append(t.Events, event)
	t.UpdatedAt = event.Timestamp
	return event
}

// Finish marks the transcript complete, or failed when err is non-empty.
func (t *Transcript) Finish(errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = StatusComplete
	if errMsg != "" {
		t.Status = StatusFailed
		t.Error = errMsg
	}
	t.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the events recorded so far.
func (t *Transcript) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.Events))
	copy(out, t.Events)
	return out
}

func (t *Transcript) header() Record {
	return Record{RecordType: RecordTypeHeader, ID: t.ID, Surface: t.Surface, CreatedAt: t.CreatedAt}
}

func (t *Transcript) footer() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Record{RecordType: RecordTypeFooter, ID: t.ID, Status: t.Status, Error: t.Error, UpdatedAt: t.UpdatedAt}
}

// Load reads a JSONL transcript file.
func Load(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a JSONL transcript. A missing footer leaves the status running.
func Read(r io.Reader) (*Transcript, error) {
	tr := &Transcript{Status: StatusRunning, Events: []Event{}}

	// bufio.Reader has no line length limit.
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading JSONL: %w", err)
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if perr := parseLine(trimmed, tr); perr != nil {
				return nil, perr
			}
		}
		if err == io.EOF {
			break
		}
	}

	if n := len(tr.Events); n > 0 {
		tr.seqCounter = tr.Events[n-1].SeqID
	}
	return tr, nil
}

func parseLine(line []byte, tr *Transcript) error {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return fmt.Errorf("failed to parse JSONL line: %w", err)
	}

	switch rec.RecordType {
	case RecordTypeHeader:
		tr.ID = rec.ID
		tr.Surface = rec.Surface
		tr.CreatedAt = rec.CreatedAt
		tr.UpdatedAt = rec.CreatedAt
	case RecordTypeEvent:
		if rec.Event != nil {
			tr.Events = append(tr.Events, *rec.Event)
			tr.UpdatedAt = rec.Event.Timestamp
		}
	case RecordTypeFooter:
		tr.Status = rec.Status
		tr.Error = rec.Error
		tr.UpdatedAt = rec.UpdatedAt
	}
	return nil
}
