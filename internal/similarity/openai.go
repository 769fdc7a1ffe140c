package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"envjudge/internal/logging"

	openai "github.com/sashabaranov/go-openai"
)

const similaritySystemPrompt = "You are an expert evaluator for text similarity assessment."

// chatClient is the slice of the OpenAI client the scorer needs.
// *openai.Client satisfies it; tests substitute a fake.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the LLM-backed scorer.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	CallTimeout time.Duration // per-call deadline
	MaxRetries  int           // retry budget for transient failures
}

// OpenAIScorer judges semantic similarity with a chat-completion call.
// The model answers with a JSON verdict {is_similar, confidence, reason};
// a not-similar verdict scores 0, a similar one scores its confidence.
type OpenAIScorer struct {
	client      chatClient
	model       string
	callTimeout time.Duration
	maxRetries  int
	logger      *slog.Logger
}

// NewOpenAIScorer builds a scorer from config. The API key is required.
func NewOpenAIScorer(cfg OpenAIConfig) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("similarity: OpenAI API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &OpenAIScorer{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		callTimeout: timeout,
		maxRetries:  retries,
		logger:      logging.New("similarity"),
	}, nil
}

func (s *OpenAIScorer) Name() string { return "openai/" + s.model }

// Score implements Scorer. Transient API failures are retried up to the
// configured budget; exhaustion surfaces as a plain error so the caller can
// degrade the pair to 0. Credential and quota failures wrap ErrUnavailable.
func (s *OpenAIScorer) Score(ctx context.Context, a, b string, kind Kind) (float64, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: similaritySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(a, b, kind)},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		resp, err := s.client.CreateChatCompletion(callCtx, req)
		cancel()
		if err != nil {
			if fatal := classifyAPIError(err); fatal != nil {
				return 0, fatal
			}
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = err
			s.logger.Warn("similarity call failed", "kind", kind.String(), "attempt", attempt+1, "error", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty completion")
			continue
		}
		verdict := parseVerdict(resp.Choices[0].Message.Content)
		if !verdict.IsSimilar {
			return 0, nil
		}
		return clamp(verdict.Confidence), nil
	}
	return 0, fmt.Errorf("similarity call exhausted %d retries: %w", s.maxRetries, lastErr)
}

// classifyAPIError returns a non-nil ErrUnavailable-wrapping error for
// failures that no retry will cure.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func buildPrompt(a, b string, kind Kind) string {
	var task string
	switch kind {
	case KindFix:
		task = "You need to evaluate whether two fix solutions are semantically similar.\n" +
			"Two solutions are considered similar if they propose the same or equivalent\n" +
			"approach to solve the problem, even if the specific commands or wording differ."
	default:
		task = "You need to evaluate whether two error descriptions are semantically similar.\n" +
			"Two descriptions are considered similar if they describe the same type of problem,\n" +
			"even if the wording is different."
	}

	return fmt.Sprintf(`%s

Text 1: %s

Text 2: %s

Please evaluate the similarity and respond in the following JSON format:
{
    "is_similar": true/false,
    "confidence": 0.0-1.0,
    "reason": "Brief explanation of your decision"
}

Consider the texts similar if they convey the same core meaning, even with different wording.`, task, a, b)
}

type verdict struct {
	IsSimilar  bool    `json:"is_similar"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// parseVerdict extracts the JSON verdict from a model reply. Replies that
// wrap the JSON in prose are handled by brace extraction; replies with no
// JSON at all fall back to keyword sniffing at half confidence.
func parseVerdict(reply string) verdict {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start != -1 && end > start {
		var v verdict
		if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err == nil {
			return v
		}
	}
	lower := strings.ToLower(reply)
	if strings.Contains(lower, "true") || strings.Contains(lower, "similar") {
		return verdict{IsSimilar: true, Confidence: 0.5, Reason: "parsed from non-JSON response"}
	}
	return verdict{Reason: "unparseable response"}
}
