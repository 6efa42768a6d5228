package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"kopiloka-assistant/internal/credential"
	"kopiloka-assistant/internal/usecase"
)

const DefaultModel = "gpt-4o-mini"

// chatAPI is the subset of *goopenai.Client used here.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client relays completions through the OpenAI Chat Completions API. Any
// OpenAI-compatible endpoint works via WithBaseURL.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	key        credential.Source

	mu     sync.Mutex
	api    chatAPI
	newAPI func(apiKey string) chatAPI
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
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

// NewClient creates a Client. The underlying SDK client is built on the first
// call, once the key has been resolved.
func NewClient(key credential.Source, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, fmt.Errorf("openai: %w", credential.ErrMissing)
	}
	c := &Client{
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		key:        key,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.newAPI = c.sdkClient
	return c, nil
}

func (c *Client) Name() string  { return "openai" }
func (c *Client) Model() string { return c.model }

func (c *Client) sdkClient(apiKey string) chatAPI {
	cfg := goopenai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	return goopenai.NewClientWithConfig(cfg)
}

func (c *Client) resolveAPI(ctx context.Context) (chatAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	apiKey, err := c.key.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	c.api = c.newAPI(apiKey)
	return c.api, nil
}

// Complete sends the conversation with the system instruction as a leading
// system turn, which is how the Chat Completions contract carries it.
func (c *Client) Complete(ctx context.Context, in usecase.Completion) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	resp, err := api.CreateChatCompletion(ctx, buildRequest(c.model, in))
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", mapError(err))
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func buildRequest(model string, in usecase.Completion) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(in.Messages)+1)
	if s := strings.TrimSpace(in.System); s != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: s,
		})
	}
	for _, m := range in.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   in.MaxTokens,
		Temperature: float32(in.Temperature),
		N:           1,
	}
}

// mapError converts SDK errors that carry an HTTP status into HTTPStatusError.
func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}

var _ usecase.LLMClient = (*Client)(nil)
