package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"kopiloka-assistant/internal/credential"
	"kopiloka-assistant/internal/domain"
	"kopiloka-assistant/internal/usecase"
)

type fakeSource struct {
	key   string
	err   error
	calls int
}

func (f *fakeSource) Resolve(context.Context) (string, error) {
	f.calls++
	return f.key, f.err
}

func newTestClient(t *testing.T, srv *httptest.Server, src *fakeSource) *Client {
	t.Helper()
	c, err := NewClient(
		src,
		WithBaseURL(srv.URL+"/v1"),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func testCompletion() usecase.Completion {
	return usecase.Completion{
		System:      "Kamu adalah KOPI AI.",
		Messages:    []domain.ChatMessage{{Role: "user", Content: "Recommend a beginner coffee"}},
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

type wireRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestNewClient_NilSource(t *testing.T) {
	_, err := NewClient(nil)
	require.ErrorIs(t, err, credential.ErrMissing)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(&fakeSource{key: "k"})
	require.NoError(t, err)
	require.Equal(t, "openai", c.Name())
	require.Equal(t, DefaultModel, c.Model())
}

func TestClient_Complete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var got wireRequest
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, "gpt-4o-mini", got.Model)
		require.Equal(t, 1024, got.MaxTokens)
		require.Len(t, got.Messages, 2)
		require.Equal(t, "system", got.Messages[0].Role)
		require.Equal(t, "Kamu adalah KOPI AI.", got.Messages[0].Content)
		require.Equal(t, "user", got.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"created": 1670000000,
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Coba Kopi Java Preanger."},
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer srv.Close()

	src := &fakeSource{key: "sk-test"}
	c := newTestClient(t, srv, src)
	out, err := c.Complete(context.Background(), testCompletion())
	require.NoError(t, err)
	require.Equal(t, "Coba Kopi Java Preanger.", out)

	_, err = c.Complete(context.Background(), testCompletion())
	require.NoError(t, err)
	require.Equal(t, 1, src.calls, "key must be resolved once")
}

func TestBuildRequest_SystemTurnFirst(t *testing.T) {
	req := buildRequest("m", usecase.Completion{
		System: " sys ",
		Messages: []domain.ChatMessage{
			{Role: "user", Content: "a"},
			{Role: "assistant", Content: "b"},
		},
		MaxTokens:   256,
		Temperature: 0.7,
	})
	require.Len(t, req.Messages, 3)
	require.Equal(t, goopenai.ChatMessageRoleSystem, req.Messages[0].Role)
	require.Equal(t, "sys", req.Messages[0].Content)
	require.Equal(t, "assistant", req.Messages[2].Role)
	require.Equal(t, 256, req.MaxTokens)
	require.InDelta(t, 0.7, float64(req.Temperature), 1e-6)
	require.Equal(t, 1, req.N)

	req = buildRequest("m", usecase.Completion{Messages: []domain.ChatMessage{{Role: "user", Content: "a"}}})
	require.Len(t, req.Messages, 1)
}

func TestClient_Complete_Non200(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests"}}`, "Rate limit reached"},
		{http.StatusInternalServerError, `{"error":{"message":"The server had an error","type":"server_error"}}`, "The server had an error"},
		{http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`, "Incorrect API key provided"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		_, err := newTestClient(t, srv, &fakeSource{key: "sk-test"}).Complete(context.Background(), testCompletion())
		srv.Close()

		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, tc.status, statusErr.HTTPStatusCode())
		require.Contains(t, err.Error(), "unexpected status")
		require.Contains(t, err.Error(), tc.want)
	}
}

func TestClient_Complete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv, &fakeSource{key: "sk-test"}).Complete(context.Background(), testCompletion())
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestClient_Complete_CredentialError(t *testing.T) {
	src := &fakeSource{err: credential.ErrMissing}
	c, err := NewClient(src)
	require.NoError(t, err)
	called := false
	c.newAPI = func(string) chatAPI {
		called = true
		return nil
	}

	_, err = c.Complete(context.Background(), testCompletion())
	require.ErrorIs(t, err, credential.ErrMissing)
	require.False(t, called)

	// a failed resolution is retried by the source, not cached here
	_, _ = c.Complete(context.Background(), testCompletion())
	require.Equal(t, 2, src.calls)
}

type stubAPI struct {
	err error
}

func (s *stubAPI) CreateChatCompletion(context.Context, goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	return goopenai.ChatCompletionResponse{}, s.err
}

func TestClient_Complete_TransportError(t *testing.T) {
	c, err := NewClient(&fakeSource{key: "k"})
	require.NoError(t, err)
	transportErr := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	c.newAPI = func(string) chatAPI { return &stubAPI{err: transportErr} }

	_, err = c.Complete(context.Background(), testCompletion())
	require.ErrorIs(t, err, transportErr)
	require.ErrorContains(t, err, "request failed")
	var statusErr *HTTPStatusError
	require.False(t, errors.As(err, &statusErr))
}

func TestMapError(t *testing.T) {
	err := mapError(&goopenai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key"})
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 401, statusErr.StatusCode)
	require.Equal(t, "Incorrect API key", statusErr.Message)

	err = mapError(&goopenai.RequestError{HTTPStatusCode: 503, Err: errors.New("service unavailable")})
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 503, statusErr.StatusCode)

	plain := errors.New("boom")
	require.Equal(t, plain, mapError(plain))
}
