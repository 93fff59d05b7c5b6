package summarizer

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/observability/logging"
	"ai-meeting-summary-service/internal/observability/metrics"
)

// ErrEmptyCompletion is returned when the model responds with no usable text.
var ErrEmptyCompletion = errors.New("summarizer: empty completion")

// OpenAISummarizer implements Summarizer with the OpenAI chat completion API.
type OpenAISummarizer struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Config holds OpenAI client settings.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewOpenAI creates a summarizer backed by the OpenAI chat completion API.
func NewOpenAI(cfg Config) *OpenAISummarizer {
	return &OpenAISummarizer{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logging.WithComponent("summarizer"),
		metrics: metrics.DefaultMetrics,
	}
}

// Summarize issues one stateless chat completion call. The timeout bounds
// a single call; retries are the caller's concern since every tick resends
// the full context anyway.
func (s *OpenAISummarizer) Summarize(ctx context.Context, input string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(input),
		},
	})
	s.metrics.RecordAICall(err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		s.metrics.AIErrors.Inc()
		return "", ErrEmptyCompletion
	}

	s.logger.Debug().
		Str("model", s.model).
		Dur("latency", time.Since(start)).
		Int("inputChars", len(input)).
		Msg("Summary generated")
	return resp.Choices[0].Message.Content, nil
}
