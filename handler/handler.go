package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"kopiloka-assistant/internal/normalize"
	"kopiloka-assistant/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 1 << 20

	defaultTimeout = 30 * time.Second

	msgGenerateFailed = "Failed to generate response"
	msgMethodNotAllow = "Method not allowed"
)

// ChatReplier is the relay consumed by the handler.
type ChatReplier interface {
	Reply(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type chatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

type chatResponse struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type Handler struct {
	chat    ChatReplier
	timeout time.Duration
	logger  *slog.Logger
	newID   func() string
}

type Option func(*Handler)

// WithTimeout bounds each request, upstream call included.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(chat ChatReplier, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat service must not be nil")
	}
	h := &Handler{
		chat:    chat,
		timeout: defaultTimeout,
		logger:  slog.Default(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle is the API Gateway entrypoint. It always answers with a structured
// body and never returns a Go error.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := h.correlationID(headerValue(req.Headers, correlationHeader))

	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return h.proxyResponse(correlationID, http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllow}), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return h.proxyResponse(correlationID, http.StatusInternalServerError, errorResponse{Error: msgGenerateFailed, Details: err.Error()}), nil
		}
		body = decoded
	}

	status, payload := h.process(ctx, correlationID, body)
	return h.proxyResponse(correlationID, status, payload), nil
}

// ServeHTTP serves the same contract over plain HTTP.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := h.correlationID(r.Header.Get(correlationHeader))

	if r.Method != http.MethodPost {
		writeJSON(w, correlationID, http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllow})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, correlationID, http.StatusInternalServerError, errorResponse{Error: msgGenerateFailed, Details: err.Error()})
		return
	}

	status, payload := h.process(r.Context(), correlationID, body)
	writeJSON(w, correlationID, status, payload)
}

// process decodes the body, normalizes the turns and relays them. Every
// failure, an undecodable body included, is answered with the 500 envelope.
// The caller going away does not cancel the relay; only the request deadline does.
func (h *Handler) process(ctx context.Context, correlationID string, body []byte) (int, any) {
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", "correlation_id", correlationID, "err", err)
		return http.StatusInternalServerError, errorResponse{Error: msgGenerateFailed, Details: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	out, err := h.chat.Reply(ctx, usecase.ChatInput{
		Messages:  normalize.NormalizeJSON(req.Messages),
		RequestID: correlationID,
	})
	if err != nil {
		return http.StatusInternalServerError, errorResponse{Error: msgGenerateFailed, Details: details(err)}
	}
	return http.StatusOK, chatResponse{Content: out.Content, Role: out.Role}
}

func (h *Handler) correlationID(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return h.newID()
}

func (h *Handler) proxyResponse(correlationID string, status int, payload any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"` + msgGenerateFailed + `"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(raw),
	}
}

func writeJSON(w http.ResponseWriter, correlationID string, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(correlationHeader, correlationID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func details(err error) string {
	var uerr *usecase.Error
	if errors.As(err, &uerr) {
		return uerr.Details()
	}
	return err.Error()
}

// headerValue looks a header up case-insensitively; API Gateway preserves the
// client's casing.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
