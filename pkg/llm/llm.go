// Package llm defines the provider-neutral contracts for embedding and
// completion backends.
package llm

import "context"

// Embedder encodes text into a dense vector.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Completer produces a chat completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Reply is a completion result.
type Reply struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}
