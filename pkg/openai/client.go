// Package openai adapts the OpenAI API to the llm contracts, with
// exponential-backoff retries on transient failures.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/WessleyAI/unga-engine/pkg/fn"
	"github.com/WessleyAI/unga-engine/pkg/llm"
)

const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

// Config holds client settings. BaseURL overrides the API endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Retry          fn.RetryOpts
	Timeout        time.Duration
}

// Client implements llm.Embedder and llm.Completer.
type Client struct {
	api            *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	retry          fn.RetryOpts
	timeout        time.Duration
}

var (
	_ llm.Embedder  = (*Client)(nil)
	_ llm.Completer = (*Client)(nil)
)

// New creates a client. An API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(DefaultEmbeddingModel)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fn.DefaultRetry
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = retryable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		api:            openai.NewClientWithConfig(oc),
		chatModel:      cfg.ChatModel,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		retry:          cfg.Retry,
		timeout:        cfg.Timeout,
	}, nil
}

// Encode returns the embedding of text.
func (c *Client) Encode(ctx context.Context, text string) ([]float32, error) {
	return fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[[]float32] {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: c.embeddingModel,
		})
		if err != nil {
			return fn.Errf[[]float32]("openai: embed: %w", err)
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return fn.Errf[[]float32]("openai: embed: no embedding returned")
		}
		return fn.Ok(resp.Data[0].Embedding)
	}).Unwrap()
}

// Complete runs a chat completion with a system and a user message.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Reply, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	return fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[llm.Reply] {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.chatModel,
			Messages:    msgs,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			return fn.Errf[llm.Reply]("openai: complete: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fn.Errf[llm.Reply]("openai: complete: no choices returned")
		}
		return fn.Ok(llm.Reply{
			Text:       resp.Choices[0].Message.Content,
			Model:      resp.Model,
			TokensUsed: resp.Usage.TotalTokens,
		})
	}).Unwrap()
}

// retryable treats rate limits, server errors and transport failures as
// transient. Other API errors fail fast.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}
	return !errors.Is(err, context.Canceled)
}

func transientStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
