// Package upload drives one archive upload through
// idle → uploading → processing → done | error, following the server's
// processing events until a terminal state.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/events"
)

// User-facing status copy.
const (
	MsgUploading        = "Uploading file..."
	MsgProcessing       = "Processing on server..."
	MsgUploadFailed     = "Upload failed"
	MsgProcessingFailed = "Processing failed"
	MsgUnknownError     = "Unknown error occurred"
	MsgConnectionLost   = "Connection lost or server error"
)

var (
	// ErrNotZip is returned by Select for anything that is not a ZIP archive.
	ErrNotZip = errors.New("only ZIP files are allowed")
	// ErrNoFile is returned by Start before a file has been selected.
	ErrNoFile = errors.New("no file selected")
	// ErrBusy is returned by Start outside the idle phase.
	ErrBusy = errors.New("upload already in progress")
	// ErrFinished is returned by Next once the upload reached done or error.
	ErrFinished = errors.New("upload finished")
)

// Phase is the tracker's state.
type Phase int

const (
	Idle Phase = iota
	Uploading
	Processing
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions happen without Reset.
func (p Phase) Terminal() bool { return p == Done || p == Failed }

// State is a snapshot of the tracker.
type State struct {
	Phase    Phase
	File     string
	Percent  int
	Message  string
	Err      string
	UploadID string
}

// Uploader sends the archive. *api.Client satisfies it.
type Uploader interface {
	UploadFile(ctx context.Context, sessionID, name string, r io.Reader) (string, error)
	UploadEventsURL(sessionID, uploadID string) string
}

// EventStream is an open processing-event stream.
type EventStream interface {
	Recv() (events.Event, error)
	Close() error
}

// Connector opens event streams.
type Connector interface {
	Connect(ctx context.Context, url string) (EventStream, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, url string) (EventStream, error)

func (f ConnectorFunc) Connect(ctx context.Context, url string) (EventStream, error) {
	return f(ctx, url)
}

// ClientConnector returns a Connector that opens streams with the API
// client's cookie jar.
func ClientConnector(c *api.Client) Connector {
	return ConnectorFunc(func(ctx context.Context, url string) (EventStream, error) {
		return events.Connect(ctx, c.StreamClient(), url)
	})
}

// Tracker runs a single upload at a time. It is safe for concurrent use.
type Tracker struct {
	up         Uploader
	conn       Connector
	onComplete func()

	mu        sync.Mutex
	state     State
	path      string
	stream    EventStream
	completed bool
	// attempt numbers each Start so a superseded one cannot touch the state.
	attempt int
}

// NewTracker creates an idle tracker. onComplete runs once per successful
// upload and may be nil.
func NewTracker(up Uploader, conn Connector, onComplete func()) *Tracker {
	return &Tracker{up: up, conn: conn, onComplete: onComplete}
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Select picks the archive to upload, clearing any previous error or
// progress. Only names ending in .zip are accepted.
func (t *Tracker) Select(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return ErrNotZip
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Phase == Uploading || t.state.Phase == Processing {
		return ErrBusy
	}
	t.closeStreamLocked()
	t.path = path
	t.completed = false
	t.state = State{Phase: Idle, File: filepath.Base(path)}
	return nil
}

// Start uploads the selected archive and opens the processing stream. On
// return the tracker is either processing or failed; the returned error is
// the cause of a failure.
func (t *Tracker) Start(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	if t.path == "" {
		t.mu.Unlock()
		return ErrNoFile
	}
	if t.state.Phase != Idle {
		t.mu.Unlock()
		return ErrBusy
	}
	path := t.path
	t.attempt++
	attempt := t.attempt
	t.state.Phase = Uploading
	t.state.Message = MsgUploading
	t.state.Percent = 0
	t.state.Err = ""
	t.mu.Unlock()

	uploadID, err := t.send(ctx, sessionID, path)
	if err != nil {
		t.fail(attempt, api.Message(err, MsgUploadFailed))
		return err
	}

	t.mu.Lock()
	if t.attempt != attempt || t.state.Phase != Uploading {
		// Reset or Close ran while the upload was in flight.
		t.mu.Unlock()
		return ErrFinished
	}
	t.state.Phase = Processing
	t.state.Message = MsgProcessing
	t.state.UploadID = uploadID
	t.mu.Unlock()

	stream, err := t.conn.Connect(ctx, t.up.UploadEventsURL(sessionID, uploadID))
	if err != nil {
		t.fail(attempt, MsgConnectionLost)
		return fmt.Errorf("opening event stream: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempt != attempt || t.state.Phase != Processing {
		_ = stream.Close()
		return ErrFinished
	}
	t.stream = stream
	return nil
}

func (t *Tracker) send(ctx context.Context, sessionID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()
	return t.up.UploadFile(ctx, sessionID, filepath.Base(path), f)
}

// Next blocks for one processing event and applies it. It returns
// ErrFinished once the tracker is in a terminal state.
func (t *Tracker) Next() (State, error) {
	t.mu.Lock()
	stream := t.stream
	phase := t.state.Phase
	t.mu.Unlock()
	if phase.Terminal() || stream == nil {
		return t.State(), ErrFinished
	}

	ev, err := stream.Recv()

	t.mu.Lock()
	if t.stream != stream || t.state.Phase != Processing {
		// A reset or close superseded this stream.
		st := t.state
		t.mu.Unlock()
		return st, ErrFinished
	}
	var notify func()
	if err != nil {
		t.failLocked(MsgConnectionLost)
	}
	switch e := ev.(type) {
	case events.Progress:
		t.state.Percent = e.Percent
		t.state.Message = e.Message
	case events.Done:
		t.state.Phase = Done
		t.state.Percent = 100
		t.state.Message = e.Message
		t.closeStreamLocked()
		if !t.completed {
			t.completed = true
			notify = t.onComplete
		}
	case events.Failure:
		switch {
		case e.Malformed:
			t.failLocked(MsgUnknownError)
		case e.Message != "":
			t.failLocked(e.Message)
		default:
			t.failLocked(MsgProcessingFailed)
		}
	}
	st := t.state
	t.mu.Unlock()

	if notify != nil {
		notify()
	}
	return st, nil
}

// Wait consumes events until a terminal state, calling fn with each state.
// Cancelling ctx closes the stream.
func (t *Tracker) Wait(ctx context.Context, fn func(State)) State {
	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer stop()
	for {
		st, err := t.Next()
		if err != nil {
			return st
		}
		if fn != nil {
			fn(st)
		}
		if st.Phase.Terminal() {
			return st
		}
	}
}

// Reset returns a finished tracker to idle with nothing selected. It does
// nothing while an upload is in flight; Close ends one first.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Phase == Uploading || t.state.Phase == Processing {
		return
	}
	t.closeStreamLocked()
	t.path = ""
	t.completed = false
	t.state = State{Phase: Idle}
}

// Close tears down any open stream. An in-flight upload ends in the
// failed state.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Phase == Uploading || t.state.Phase == Processing {
		t.failLocked(MsgConnectionLost)
		return
	}
	t.closeStreamLocked()
}

func (t *Tracker) fail(attempt int, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempt != attempt || t.state.Phase.Terminal() || t.state.Phase == Idle {
		return
	}
	t.failLocked(msg)
}

func (t *Tracker) failLocked(msg string) {
	t.state.Phase = Failed
	t.state.Err = msg
	t.closeStreamLocked()
}

func (t *Tracker) closeStreamLocked() {
	if t.stream != nil {
		_ = t.stream.Close()
		t.stream = nil
	}
}
