package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kopiloka-assistant/internal/credential"
	"kopiloka-assistant/internal/domain"
	"kopiloka-assistant/internal/normalize"
)

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
	maxTemperature     = 2.0

	// FallbackReply is returned when the upstream succeeds without any text.
	FallbackReply = "Maaf, saya tidak bisa merespons saat ini."

	statusSuccess = "success"
	statusError   = "error"
)

// Completion is a provider-agnostic completion request. System travels
// out-of-band; each adapter places it where its provider expects it.
type Completion struct {
	System      string
	Messages    []domain.ChatMessage
	MaxTokens   int
	Temperature float64
}

type LLMClient interface {
	Name() string
	Model() string
	Complete(ctx context.Context, c Completion) (string, error)
}

// Recorder receives one observation per relay call.
type Recorder interface {
	ObserveReply(provider, model, status string, duration time.Duration, promptTokens int)
}

// Journal persists finished exchanges. It is never read back into a prompt.
type Journal interface {
	Record(ctx context.Context, ex domain.Exchange) error
}

// TokenCounter estimates the prompt size of a completion.
type TokenCounter func(system string, msgs []domain.ChatMessage) int

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

type Option func(*ChatService)

func WithRecorder(r Recorder) Option {
	return func(s *ChatService) { s.recorder = r }
}

func WithJournal(j Journal) Option {
	return func(s *ChatService) { s.journal = j }
}

func WithTokenCounter(fn TokenCounter) Option {
	return func(s *ChatService) { s.countTokens = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ChatService) {
		if l != nil {
			s.logger = l
		}
	}
}

// ChatService relays one conversation to the upstream provider per call. It
// keeps no conversation state between calls.
type ChatService struct {
	llm         LLMClient
	system      string
	maxTokens   int
	temperature float64

	recorder    Recorder
	journal     Journal
	countTokens TokenCounter
	logger      *slog.Logger
	now         func() time.Time
}

type ChatInput struct {
	Messages  []domain.ChatMessage
	RequestID string
}

type ChatOutput struct {
	Content string
	Role    string
}

func NewChatService(llm LLMClient, opts ChatOptions, options ...Option) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	system := strings.TrimSpace(opts.SystemPrompt)
	if system == "" {
		return nil, errors.New("usecase: system prompt must not be empty")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature < 0 || opts.Temperature > maxTemperature {
		return nil, errors.New("usecase: temperature must be between 0 and 2")
	}
	s := &ChatService{
		llm:         llm,
		system:      system,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// DefaultChatOptions returns the sampling settings used when nothing is configured.
func DefaultChatOptions(systemPrompt string) ChatOptions {
	return ChatOptions{
		SystemPrompt: systemPrompt,
		MaxTokens:    defaultMaxTokens,
		Temperature:  defaultTemperature,
	}
}

func (s *ChatService) Reply(ctx context.Context, in ChatInput) (ChatOutput, error) {
	msgs := normalize.Messages(in.Messages)

	promptTokens := 0
	if s.countTokens != nil {
		promptTokens = s.countTokens(s.system, msgs)
	}

	start := s.now()
	text, err := s.llm.Complete(ctx, Completion{
		System:      s.system,
		Messages:    msgs,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	elapsed := s.now().Sub(start)

	if err != nil {
		uerr := classify(err)
		s.observe(statusError, elapsed, promptTokens)
		s.logger.ErrorContext(ctx, "upstream completion failed",
			"request_id", in.RequestID,
			"provider", s.llm.Name(),
			"model", s.llm.Model(),
			"code", uerr.Code,
			"reason", uerr.Reason,
			"err", err,
		)
		s.record(ctx, in.RequestID, len(msgs), promptTokens, "", string(uerr.Code), elapsed)
		return ChatOutput{}, uerr
	}

	if strings.TrimSpace(text) == "" {
		text = FallbackReply
	}
	s.observe(statusSuccess, elapsed, promptTokens)
	s.logger.InfoContext(ctx, "upstream completion succeeded",
		"request_id", in.RequestID,
		"provider", s.llm.Name(),
		"model", s.llm.Model(),
		"turns", len(msgs),
		"prompt_tokens", promptTokens,
		"latency_ms", elapsed.Milliseconds(),
	)
	s.record(ctx, in.RequestID, len(msgs), promptTokens, text, statusSuccess, elapsed)

	return ChatOutput{
		Content: text,
		Role:    domain.RoleAssistant,
	}, nil
}

func (s *ChatService) observe(status string, elapsed time.Duration, promptTokens int) {
	if s.recorder == nil {
		return
	}
	s.recorder.ObserveReply(s.llm.Name(), s.llm.Model(), status, elapsed, promptTokens)
}

// record writes the exchange to the journal. Journal failures are logged and
// never change the caller's result.
func (s *ChatService) record(ctx context.Context, requestID string, turns, promptTokens int, reply, status string, elapsed time.Duration) {
	if s.journal == nil {
		return
	}
	ex := domain.Exchange{
		RequestID:    requestID,
		Provider:     s.llm.Name(),
		Model:        s.llm.Model(),
		Turns:        turns,
		PromptTokens: promptTokens,
		Reply:        reply,
		Status:       status,
		LatencyMs:    elapsed.Milliseconds(),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.journal.Record(ctx, ex); err != nil {
		s.logger.WarnContext(ctx, "journal write failed", "request_id", requestID, "err", err)
	}
}

func classify(err error) *Error {
	if errors.Is(err, credential.ErrMissing) {
		return newError(ErrorConfig, "missing_credential", err)
	}
	if _, ok := upstreamStatusCode(err); ok {
		return newError(ErrorUpstream, "upstream_status", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorUpstream, "upstream_timeout", err)
	}
	return newError(ErrorUpstream, "upstream_transport", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
