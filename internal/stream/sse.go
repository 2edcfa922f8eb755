package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

const doneSentinel = "[DONE]"

var (
	ErrClosed     = errors.New("stream closed")
	ErrTerminated = errors.New("stream terminated by error event")
)

// Writer receives events in producer order.
type Writer interface {
	Write(e Event) error
}

// SetHeaders prepares an HTTP response for the UI message stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Vercel-AI-UI-Message-Stream", "v1")
}

type flusher interface {
	Flush()
}

// SSEWriter frames each event as "data: <json>\n\n" and flushes it immediately.
// It is append-only: after an Error event only Close is accepted, and after Close
// nothing is.
type SSEWriter struct {
	mu         sync.Mutex
	w          io.Writer
	f          flusher
	terminated bool
	closed     bool
}

func NewSSEWriter(w io.Writer) *SSEWriter {
	s := &SSEWriter{w: w}
	if f, ok := w.(flusher); ok {
		s.f = f
	}
	return s
}

func (s *SSEWriter) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.terminated {
		return ErrTerminated
	}
	b, err := Marshal(e)
	if err != nil {
		return err
	}
	if err := s.frame(b); err != nil {
		return err
	}
	if _, ok := e.(Error); ok {
		s.terminated = true
	}
	return nil
}

// Close writes the [DONE] sentinel once.
func (s *SSEWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.frame([]byte(doneSentinel))
}

func (s *SSEWriter) frame(payload []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	if s.f != nil {
		s.f.Flush()
	}
	return nil
}

// Decoder reads events from an SSE byte stream as they arrive.
type Decoder struct {
	r    *bufio.Reader
	done bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event, or io.EOF after [DONE] or the end of input.
// Comment lines and non-data fields are ignored; multi-line data is joined with "\n".
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return nil, io.EOF
	}
	var data bytes.Buffer
	hasData := false
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) && hasData {
				return d.emit(data.Bytes())
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				return d.emit(data.Bytes())
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		value = strings.TrimPrefix(value, " ")
		if hasData {
			data.WriteByte('\n')
		}
		data.WriteString(value)
		hasData = true
	}
}

func (d *Decoder) emit(payload []byte) (Event, error) {
	if string(payload) == doneSentinel {
		d.done = true
		return nil, io.EOF
	}
	return Unmarshal(payload)
}

// ReadAll decodes every event until [DONE] or end of input.
func ReadAll(r io.Reader) ([]Event, error) {
	dec := NewDecoder(r)
	var out []Event
	for {
		e, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
