package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devpulse/devpulse-go/internal/config"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Oracle is the narrow text-classification capability the pipeline consumes.
// Both the review classifier and the recurring-issue canonicalizer depend on
// this interface, never on a concrete client; the caller owns the lifecycle.
type Oracle interface {
	// CompleteJSON sends a prompt pair and returns the raw response text,
	// which the caller parses. The response is expected to be a single JSON
	// object but must be treated as untrusted.
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client is the production Oracle backed by an OpenAI-compatible endpoint.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	limiter   *rate.Limiter
	cache     *ResponseCache
	logger    *slog.Logger
}

// NewClient creates an oracle client from configuration.
// API keys come from config/env only, never hardcoded.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg.Oracle.APIKey == "" {
		return nil, fmt.Errorf("oracle API key not configured (set OPENAI_API_KEY or oracle.api_key)")
	}

	clientCfg := openai.DefaultConfig(cfg.Oracle.APIKey)
	if cfg.Oracle.BaseURL != "" {
		clientCfg.BaseURL = cfg.Oracle.BaseURL
	}

	maxTokens := cfg.Oracle.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var limiter *rate.Limiter
	if cfg.Oracle.RequestsPer > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Oracle.RequestsPer), 1)
	}

	var cache *ResponseCache
	if cfg.Oracle.CachePath != "" {
		var err error
		cache, err = NewResponseCache(cfg.Oracle.CachePath)
		if err != nil {
			// Cache is an optimization; run without it rather than fail
			logger.Warn("oracle response cache unavailable", "path", cfg.Oracle.CachePath, "error", err)
			cache = nil
		}
	}

	return &Client{
		api:       openai.NewClientWithConfig(clientCfg),
		model:     cfg.Oracle.Model,
		maxTokens: maxTokens,
		limiter:   limiter,
		cache:     cache,
		logger:    logger.With("component", "oracle"),
	}, nil
}

// CompleteJSON implements Oracle.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(systemPrompt, userPrompt); ok {
			c.logger.Debug("oracle cache hit", "response_length", len(cached))
			return cached, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("oracle rate limit wait: %w", err)
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1, // Low temperature for consistency
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("oracle completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("oracle completion",
		"prompt_length", len(userPrompt),
		"response_length", len(content),
		"tokens_used", resp.Usage.TotalTokens,
	)

	if c.cache != nil {
		if err := c.cache.Put(systemPrompt, userPrompt, content); err != nil {
			c.logger.Warn("oracle cache write failed", "error", err)
		}
	}

	return content, nil
}

// Close releases the response cache, if any.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}
