package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kopiloka-assistant/internal/credential"
	"kopiloka-assistant/internal/domain"
	"kopiloka-assistant/internal/normalize"
	"kopiloka-assistant/internal/usecase"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-haiku-latest"
	apiVersion     = "2023-06-01"
)

// messagesRequest is the request shape for the Messages API. The system
// instruction is a top-level field; Anthropic does not accept system turns.
type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type errorEnvelope struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("anthropic: unexpected status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client relays completions through the Anthropic Messages API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	key        credential.Source
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

func NewClient(key credential.Source, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, fmt.Errorf("anthropic: %w", credential.ErrMissing)
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		key:        key,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string  { return "anthropic" }
func (c *Client) Model() string { return c.model }

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func messagesURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/messages"
	}
	return base + "/v1/messages"
}

func (c *Client) Complete(ctx context.Context, in usecase.Completion) (string, error) {
	apiKey, err := c.key.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	body, err := json.Marshal(buildRequest(c.model, in))
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL(c.baseURL), bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("anthropic: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("anthropic: request failed: %w", statusError(res.StatusCode, buf))
	}

	var payload messagesResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}

	var b strings.Builder
	for _, block := range payload.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// buildRequest maps the completion onto the Messages API. The API rejects an
// empty message list, so an empty conversation is sent as one placeholder
// user turn.
func buildRequest(model string, in usecase.Completion) messagesRequest {
	msgs := make([]message, 0, len(in.Messages))
	for _, m := range in.Messages {
		msgs = append(msgs, message{Role: m.Role, Content: m.Content})
	}
	if len(msgs) == 0 {
		msgs = append(msgs, message{Role: domain.RoleUser, Content: normalize.Placeholder})
	}
	return messagesRequest{
		Model:       model,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
		System:      strings.TrimSpace(in.System),
		Messages:    msgs,
	}
}

func statusError(code int, body []byte) *HTTPStatusError {
	e := &HTTPStatusError{StatusCode: code, Message: strings.TrimSpace(string(body))}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		e.Type = env.Error.Type
		e.Message = env.Error.Message
	}
	return e
}

var _ usecase.LLMClient = (*Client)(nil)
