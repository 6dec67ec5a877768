// Package ollama talks to a local Ollama server for embeddings and chat.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/WessleyAI/unga-engine/pkg/llm"
)

// Client implements llm.Embedder and llm.Completer over Ollama's HTTP API.
type Client struct {
	baseURL    string
	embedModel string
	chatModel  string
	client     *http.Client
}

var (
	_ llm.Embedder  = (*Client)(nil)
	_ llm.Completer = (*Client)(nil)
)

// New creates an Ollama client. An empty chatModel disables Complete.
func New(baseURL, embedModel, chatModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		chatModel:  chatModel,
		client:     &http.Client{Timeout: 2 * time.Minute},
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Encode returns the embedding of text.
func (c *Client) Encode(ctx context.Context, text string) ([]float32, error) {
	var result embedResp
	if err := c.post(ctx, "/api/embeddings", embedReq{Model: c.embedModel, Prompt: text}, &result); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding from model %s", c.embedModel)
	}
	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResp struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	// token counts for prompt and completion
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// Complete runs a non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Reply, error) {
	if c.chatModel == "" {
		return llm.Reply{}, fmt.Errorf("ollama chat: no chat model configured")
	}
	body := chatReq{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Options: map[string]any{"temperature": req.Temperature},
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}
	var result chatResp
	if err := c.post(ctx, "/api/chat", body, &result); err != nil {
		return llm.Reply{}, fmt.Errorf("ollama chat: %w", err)
	}
	return llm.Reply{
		Text:       result.Message.Content,
		Model:      result.Model,
		TokensUsed: result.PromptEvalCount + result.EvalCount,
	}, nil
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama ping: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
