package llm

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/gemini-chat/internal/history"
)

// ChatCompletioner is the subset of openai.Client used here; it is easy to
// mock in tests.
type ChatCompletioner interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint,
// including the one Gemini exposes.
type OpenAIClient struct {
	apiKey    string
	newClient func(apiKey string) ChatCompletioner
}

// NewOpenAIClient creates a client for baseURL. Since the key can change per
// request, the SDK client is built per call.
func NewOpenAIClient(baseURL, apiKey string, httpClient *http.Client) *OpenAIClient {
	return &OpenAIClient{
		apiKey: apiKey,
		newClient: func(key string) ChatCompletioner {
			cfg := openai.DefaultConfig(key)
			cfg.BaseURL = baseURL
			if httpClient != nil {
				cfg.HTTPClient = httpClient
			}
			return openai.NewClientWithConfig(cfg)
		},
	}
}

// openAITemperature keeps an explicit zero in the request. The SDK field is
// omitempty, so a plain 0 would fall back to the server default.
func openAITemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.apiKey
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemInstruction})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == history.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}

	resp, err := c.newClient(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: openAITemperature(req.Options.Temperature),
		TopP:        float32(req.Options.TopP),
		MaxTokens:   req.Options.MaxOutputTokens,
	})
	if err != nil {
		return "", translateOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrUnexpectedResponse
	}
	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		return choice.Message.Content, nil
	}
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", ErrSafetyBlocked
	}
	return "", ErrUnexpectedResponse
}

func translateOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode}
	}
	return err
}

var _ Generator = (*OpenAIClient)(nil)
