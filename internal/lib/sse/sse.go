// Package sse writes Server-Sent Events frames.
//
// Each event carries an id, a name and a JSON payload pretty-printed with
// two-space indentation, one "data:" line per JSON line:
//
//	id: 3
//	event: data
//	data: [
//	data:   {
//	data:     "op": "add",
//	...
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Writer sends numbered events to a client. Ids start at 1. Every write is
// flushed so the client sees it immediately.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	nextID  int
}

// NewWriter wraps w. When w is an http.Flusher, every frame is flushed.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher, nextID: 1}
}

// Comment writes a comment frame. An empty comment (":\n\n") keeps the
// connection alive without producing an event.
func (s *Writer) Comment(text string) error {
	if _, err := io.WriteString(s.w, ":"+text+"\n\n"); err != nil {
		return err
	}
	s.flush()
	return nil
}

// Send writes one event with the next id.
func (s *Writer) Send(event string, data any) error {
	if err := Encode(s.w, s.nextID, event, data); err != nil {
		return err
	}
	s.nextID++
	s.flush()
	return nil
}

// LastID returns the id of the last event sent, or 0 before the first.
func (s *Writer) LastID() int {
	return s.nextID - 1
}

func (s *Writer) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// Encode writes a single frame to w. A non-positive id omits the id line.
func Encode(w io.Writer, id int, event string, data any) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	var frame bytes.Buffer
	if id > 0 {
		frame.WriteString("id: " + strconv.Itoa(id) + "\n")
	}
	frame.WriteString("event: " + event + "\n")

	lines := bufio.NewScanner(&body)
	lines.Buffer(make([]byte, 0, 64*1024), body.Len()+1)
	for lines.Scan() {
		frame.WriteString("data: ")
		frame.Write(lines.Bytes())
		frame.WriteByte('\n')
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("split %s event: %w", event, err)
	}
	frame.WriteByte('\n')

	_, err := w.Write(frame.Bytes())
	return err
}
