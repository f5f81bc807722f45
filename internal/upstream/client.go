package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// Wire protocol constants sent with every query.
	queryVersion = "1.0"
	queryType    = "query"

	// Admission canary. A healthy credential answers the probe with
	// exactly this reply.
	probePrompt = "Please return 'OK'"
	probeReply  = "OK"
)

// Client speaks the bot provider's query protocol: one POST per query,
// answered either with a JSON body or with an SSE stream of partial text
// events.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Options configures the provider client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Proxy   string // optional forward proxy URL
}

// NewClient builds a provider client. Timeout covers whole non-streaming
// calls; streamed responses are bounded by the request context instead.
func NewClient(opts Options) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
	}, nil
}

type wireQuery struct {
	Query
	Version string `json:"version"`
	Type    string `json:"type"`
}

func (c *Client) newQueryRequest(ctx context.Context, botName, token string, q Query) (*http.Request, error) {
	if q.LogitBias == nil {
		q.LogitBias = map[string]int{}
	}
	if q.StopSequences == nil {
		q.StopSequences = []string{}
	}
	body, err := json.Marshal(wireQuery{Query: q, Version: queryVersion, Type: queryType})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot/%s", c.baseURL, url.PathEscape(botName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}

// errorFromResponse turns a non-200 reply into a *BotError when the body
// parses as the provider's error shape, else a plain error.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var botErr BotError
	if json.Unmarshal(body, &botErr) == nil && botErr.Text != "" {
		botErr.Payload = json.RawMessage(body)
		return &botErr
	}
	return fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Complete runs a query to completion and returns the final text.
func (c *Client) Complete(ctx context.Context, botName, token string, q Query) (string, error) {
	stream, err := c.Stream(ctx, botName, token, q)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		ev, err := stream.Next()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		if ev.Replace {
			sb.Reset()
		}
		sb.WriteString(ev.Text)
	}
}

// Stream starts a query and returns an iterator over its partial events.
// The caller must Close the stream; cancelling ctx aborts it.
func (c *Client) Stream(ctx context.Context, botName, token string, q Query) (*Stream, error) {
	req, err := c.newQueryRequest(ctx, botName, token, q)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &Stream{resp: resp, scanner: scanner}, nil
}

// ProbeToken validates a credential by sending the canary prompt to the
// probe bot and demanding the exact expected reply.
func (c *Client) ProbeToken(ctx context.Context, botName, token string) error {
	reply, err := c.Complete(ctx, botName, token, Query{
		Messages:    []Message{{Role: "user", Content: probePrompt}},
		Temperature: 0.7,
	})
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	if reply != probeReply {
		return fmt.Errorf("probe returned %q, want %q", reply, probeReply)
	}
	return nil
}

// Stream iterates over the partial events of one in-flight query.
// Next returns io.EOF after the provider's done event, a *BotError when
// the provider rejects mid-stream, or the transport error otherwise.
type Stream struct {
	resp    *http.Response
	scanner *bufio.Scanner
	closed  bool
}

type partialEventData struct {
	Text string `json:"text"`
}

func (s *Stream) Next() (PartialEvent, error) {
	if s.closed {
		return PartialEvent{}, io.EOF
	}
	currentEvent := ""
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch currentEvent {
			case "text", "replace_response":
				var ev partialEventData
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					continue
				}
				return PartialEvent{Text: ev.Text, Replace: currentEvent == "replace_response"}, nil
			case "error":
				var botErr BotError
				if err := json.Unmarshal([]byte(data), &botErr); err != nil {
					botErr.Text = data
				}
				botErr.Payload = json.RawMessage(data)
				s.Close()
				return PartialEvent{}, &botErr
			case "done":
				s.Close()
				return PartialEvent{}, io.EOF
			}
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.Close()
		return PartialEvent{}, err
	}
	// Body ended without a done event; treat as a clean end.
	s.Close()
	return PartialEvent{}, io.EOF
}

// Close releases the underlying connection. Safe to call twice.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Body.Close()
}
