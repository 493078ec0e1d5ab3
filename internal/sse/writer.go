// Package sse frames server-sent events onto an HTTP response.
//
// Events use the standard wire format: an optional "event:" name line, one
// "data:" line per payload line, and a blank line terminating the event.
// Every event is flushed immediately so proxies and browsers see tokens as
// they are produced rather than when the handler returns.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Event names emitted by the search relay, in stream order: zero or more
// thinking events, one sources event, answer chunks, then exactly one
// terminal done or error event.
const (
	EventThinking = "thinking"
	EventSources  = "sources"
	EventChunk    = "chunk"
	EventDone     = "done"
	EventError    = "error"
)

// ErrorData is the payload of a terminal error event.
type ErrorData struct {
	Message string `json:"message"`
}

// Writer frames events onto an http.ResponseWriter and flushes each one.
// Not safe for concurrent use; a stream has a single producer.
type Writer struct {
	w http.ResponseWriter
	f http.Flusher
}

// NewWriter prepares w for an event stream and returns a Writer. It fails
// when w cannot flush, since an unflushable stream would sit in a buffer
// until the handler returns.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Disables response buffering in nginx-style proxies.
	h.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, f: f}, nil
}

// Send frames one event. data must already be encoded; payloads containing
// newlines are split across multiple data lines per the wire format. An
// empty event name omits the "event:" line.
func (w *Writer) Send(event string, data []byte) error {
	if event != "" {
		if _, err := fmt.Fprintf(w.w, "event: %s\n", event); err != nil {
			return err
		}
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if _, err := fmt.Fprintf(w.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w.w, "\n"); err != nil {
		return err
	}
	w.f.Flush()
	return nil
}

// SendJSON marshals v and frames it under event.
func (w *Writer) SendJSON(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Send(event, data)
}

// Comment writes a comment line, used as a keep-alive heartbeat.
func (w *Writer) Comment(msg string) error {
	if _, err := fmt.Fprintf(w.w, ": %s\n\n", msg); err != nil {
		return err
	}
	w.f.Flush()
	return nil
}
