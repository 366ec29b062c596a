package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const DefaultModel = "gpt-4o-search-preview"

// Searcher sends a prompt to a hosted model with web access and returns its reply.
type Searcher interface {
	Search(ctx context.Context, prompt string) (string, error)
}

type OpenAISearcher struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

// NewOpenAISearcher builds a searcher. baseURL may be empty for the public API.
func NewOpenAISearcher(apiKey, model, baseURL string, log *zap.Logger) *OpenAISearcher {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAISearcher{client: openai.NewClientWithConfig(cfg), model: model, log: log}
}

func (s *OpenAISearcher) Search(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	s.log.Debug("OpenAI API response",
		zap.String("model", s.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}
