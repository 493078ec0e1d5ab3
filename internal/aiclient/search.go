package aiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// SearchResult is a one-shot answer with its ranked sources and timings.
type SearchResult struct {
	Answer       string          `json:"answer"`
	Sources      []domain.Source `json:"sources"`
	SearchTimeMS int64           `json:"search_time_ms"`
	LLMTimeMS    int64           `json:"llm_time_ms"`
	TotalTimeMS  int64           `json:"total_time_ms"`
}

type searchRequest struct {
	ProjectID string `json:"project_id"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k,omitempty"`
}

// Search asks one question against namespace and waits for the full answer.
func (c *Client) Search(ctx context.Context, namespace, question string, topK int) (*SearchResult, error) {
	req := searchRequest{ProjectID: namespace, Question: question, TopK: topK}
	var out SearchResult
	if err := c.do(ctx, "POST", "/api/search_project", nil, req, &out, c.timeout); err != nil {
		return nil, err
	}
	if out.Sources == nil {
		out.Sources = []domain.Source{}
	}
	return &out, nil
}

// SearchStream asks one question against namespace and relays the backend's
// event stream. onEvent is invoked once per event in arrival order with the
// event name and its data payload; returning an error stops the relay and
// closes the upstream connection. No per-call deadline is applied: the
// caller's ctx bounds the stream's lifetime.
func (c *Client) SearchStream(ctx context.Context, namespace, question string, topK int, onEvent func(event string, data []byte) error) error {
	reqBody := searchRequest{ProjectID: namespace, Question: question, TopK: topK}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/search_project_stream", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: http %d: %s", ErrUnavailable, resp.StatusCode, errorMessage(raw))
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	return streamSSE(resp.Body, func(event, data string) error {
		if onEvent == nil {
			return nil
		}
		return onEvent(event, []byte(data))
	})
}

// streamSSE parses a server-sent event stream: "event:"/"data:" lines with a
// blank line closing each event. Multi-line data is joined with newlines and
// comment lines (":") are skipped. onEvent errors abort the parse.
func streamSSE(r io.Reader, onEvent func(event, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		ev := eventName
		eventName = ""
		if onEvent == nil {
			return nil
		}
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return flush()
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends the event.
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}
}
