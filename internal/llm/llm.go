// Package llm sends a conversation to a remote generative model and returns
// the reply text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/comigor/gemini-chat/internal/config"
	"github.com/comigor/gemini-chat/internal/history"
)

var (
	// ErrSafetyBlocked means the model refused to answer because of its
	// safety filters.
	ErrSafetyBlocked = errors.New("message blocked by safety filters")
	// ErrUnexpectedResponse means the reply had no text to show.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// APIError is a non-success HTTP status from the remote API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Error %d", e.StatusCode)
}

// Options are the generation parameters sent with every request.
type Options struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// Request is one turn: the full ordered history, ending with the new user
// message.
type Request struct {
	APIKey            string
	Model             string
	Messages          []history.Message
	SystemInstruction string
	Options           Options
}

// Generator is the remote chat API. Implementations do not retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// NewGenerator builds the backend named by cfg.Provider.
func NewGenerator(cfg config.LLMConfig) (Generator, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(cfg.BaseURL, cfg.APIKey, httpClient), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(openAIBaseURL(cfg.BaseURL), cfg.APIKey, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// openAIBaseURL points the Gemini REST base at its OpenAI-compatible surface.
func openAIBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	if strings.HasPrefix(base, DefaultGeminiBaseURL) && !strings.HasSuffix(base, "/openai") {
		base += "/openai"
	}
	return base
}
