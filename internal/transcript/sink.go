package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

var errNoSessionID = errors.New("record has no session id")

// Sink receives transcript records as they happen.
type Sink interface {
	Write(rec Record) error
	Close() error
}

// FileSink appends records to <dir>/<id>.jsonl. One sink serves any
// number of concurrent sessions; a footer closes the session's file.
type FileSink struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileSink creates dir if needed and returns a sink writing into it.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &FileSink{dir: dir, files: make(map[string]*os.File)}, nil
}

// Dir returns the transcript directory.
func (s *FileSink) Dir() string { return s.dir }

// Path returns the file a session is written to.
func (s *FileSink) Path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Write appends rec to its session's file.
func (s *FileSink) Write(rec Record) error {
	if rec.ID == "" {
		return errNoSessionID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[rec.ID]
	if !ok {
		f, err = os.OpenFile(s.Path(rec.ID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open transcript file: %w", err)
		}
		s.files[rec.ID] = f
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	if rec.RecordType == RecordTypeFooter {
		delete(s.files, rec.ID)
		return f.Close()
	}
	return nil
}

// Close closes every open session file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.files, id)
	}
	return firstErr
}

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each record to <subject>.<session id>.
type NATSSink struct {
	pub     Publisher
	subject string
}

// NewNATSSink creates a sink publishing through pub.
func NewNATSSink(pub Publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: strings.TrimSuffix(subject, ".")}
}

// Connect dials a NATS server for transcript publishing.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("researchdesk"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Write publishes rec.
func (s *NATSSink) Write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if rec.ID == "" {
		return errNoSessionID
	}
	return s.pub.Publish(s.subject+"."+rec.ID, data)
}

// Close is a no-op; the connection belongs to the caller.
func (s *NATSSink) Close() error { return nil }
