package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"tripmate/config"
	"tripmate/metrics"
)

// FallbackResponse is returned whenever text generation fails.
const FallbackResponse = "I'm sorry, but I encountered an issue generating a response. Please try again later."

const defaultTemperature = 0.7

// TextGenerator turns a prompt into text. Implementations never fail; they
// return FallbackResponse instead.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) string
}

// LLMClient talks to an OpenAI-compatible chat completions endpoint
// (Cerebras by default).
type LLMClient struct {
	client     openai.Client
	model      string
	configured bool
	log        *zap.Logger
}

func NewLLMClient(cfg config.LLM, log *zap.Logger, opts ...option.RequestOption) *LLMClient {
	if log == nil {
		log = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, opts...)

	c := &LLMClient{
		client:     openai.NewClient(reqOpts...),
		model:      cfg.Model,
		configured: cfg.APIKey != "",
		log:        log,
	}
	if c.configured {
		log.Info("llm client initialized", zap.String("model", cfg.Model))
	} else {
		log.Warn("CEREBRAS_API_KEY not set, itinerary and chat will use fallback text")
	}
	return c
}

func (c *LLMClient) Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) string {
	text, err := c.complete(ctx, prompt, systemPrompt, temperature)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("llm", metrics.OutcomeError).Inc()
		c.log.Error("llm request failed", zap.Error(err))
		return FallbackResponse
	}
	metrics.UpstreamRequests.WithLabelValues("llm", metrics.OutcomeOK).Inc()
	return text
}

func (c *LLMClient) complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	if !c.configured {
		return "", errors.New("llm api key not configured")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("empty response from llm")
	}
	return resp.Choices[0].Message.Content, nil
}
