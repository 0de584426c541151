package concierge

import (
	"context"
	"errors"

	"github.com/kalambet/concierge/internal/ollama"
	"github.com/kalambet/concierge/internal/proxy"
)

// ErrNotConfigured is returned by a Completer that has no credentials or
// backend to talk to.
var ErrNotConfigured = errors.New("text generation backend not configured")

// Completer generates the assistant's reply for a rendered prompt.
// *proxy.Client satisfies it directly; OllamaCompleter adapts a local model.
type Completer interface {
	Complete(ctx context.Context, messages []proxy.Message, maxTokens int, temperature float64) (string, error)
}

// configurable is implemented by completers that can tell up front whether
// they have credentials.
type configurable interface {
	Configured() bool
}

// OllamaCompleter runs completions against a local Ollama model.
type OllamaCompleter struct {
	Client *ollama.Client
	Model  string
}

// NewOllamaCompleter creates a Completer backed by model on c.
func NewOllamaCompleter(c *ollama.Client, model string) *OllamaCompleter {
	return &OllamaCompleter{Client: c, Model: model}
}

// Complete converts messages to Ollama's format and runs a chat completion.
func (o *OllamaCompleter) Complete(ctx context.Context, messages []proxy.Message, maxTokens int, temperature float64) (string, error) {
	if o.Client == nil || o.Model == "" {
		return "", ErrNotConfigured
	}
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	return o.Client.Chat(ctx, o.Model, msgs, &ollama.Options{
		NumPredict:  maxTokens,
		Temperature: temperature,
	})
}
