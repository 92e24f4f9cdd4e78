// Package events reads upload-progress events from the backend's
// server-sent event stream.
//
// A Stream yields typed events until the upload reaches a terminal state or
// the connection drops. There is no reconnection: a dropped stream surfaces
// as ErrConnectionLost and the caller decides what to show.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"

	sse "github.com/tmaxmax/go-sse"
)

// ErrConnectionLost is returned by Recv when the stream ends or fails
// before a terminal event arrives.
var ErrConnectionLost = errors.New("connection lost or server error")

// Event is one of Progress, Done or Failure.
type Event interface {
	event()
}

// Progress reports intermediate processing state.
type Progress struct {
	Percent int
	Message string
}

// Done reports that processing finished successfully.
type Done struct {
	Message string
}

// Failure reports that processing failed. Malformed reports whether the
// server's error payload could not be decoded.
type Failure struct {
	Message   string
	Malformed bool
}

func (Progress) event() {}
func (Done) event()     {}
func (Failure) event()  {}

// Stream is an open event stream. Close must be called on every exit path.
type Stream struct {
	body   io.ReadCloser
	frames chan sse.Event
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc
}

// Connect opens the event stream at url. The client's cookie jar carries
// the session credentials.
func Connect(ctx context.Context, hc *http.Client, url string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := hc.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("connecting to event stream: status %d", resp.StatusCode)
	}
	return newStream(resp.Body, cancel), nil
}

// NewStream wraps an already open event-stream body.
func NewStream(r io.ReadCloser) *Stream {
	return newStream(r, func() {})
}

func newStream(body io.ReadCloser, cancel context.CancelFunc) *Stream {
	s := &Stream{
		body:   body,
		frames: make(chan sse.Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.read()
	return s
}

// read forwards dispatched frames until the body ends, fails or the stream
// is closed.
func (s *Stream) read() {
	defer close(s.frames)
	for ev, err := range sse.Read(s.body, nil) {
		if err != nil {
			return
		}
		select {
		case s.frames <- ev:
		case <-s.done:
			return
		}
	}
}

// Recv blocks until the next progress, done or error event. Pings, comments
// and unnamed events are skipped.
func (s *Stream) Recv() (Event, error) {
	for {
		frame, ok := <-s.frames
		if !ok {
			return nil, ErrConnectionLost
		}
		if ev, ok := decode(frame.Type, frame.Data); ok {
			return ev, nil
		}
	}
}

func decode(name, data string) (Event, bool) {
	switch name {
	case "progress":
		var p struct {
			Percent float64 `json:"percent"`
			Message string  `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, false
		}
		return Progress{Percent: clampPercent(p.Percent), Message: p.Message}, true
	case "done":
		var d struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal([]byte(data), &d)
		return Done{Message: d.Message}, true
	case "error":
		var f struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return Failure{Malformed: true}, true
		}
		return Failure{Message: f.Message}, true
	}
	return nil, false
}

func clampPercent(p float64) int {
	n := int(math.Round(p))
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		err = s.body.Close()
	})
	return err
}
