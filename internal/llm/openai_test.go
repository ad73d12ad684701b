package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/gemini-chat/internal/config"
)

type mockCompletioner struct {
	resp openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (m *mockCompletioner) CreateChatCompletion(_ context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.got = r
	return m.resp, m.err
}

func newMockOpenAI(m *mockCompletioner, keys *[]string) *OpenAIClient {
	return &OpenAIClient{
		apiKey: "default-key",
		newClient: func(key string) ChatCompletioner {
			*keys = append(*keys, key)
			return m
		},
	}
}

func TestOpenAIClient_MapsRolesAndOptions(t *testing.T) {
	var keys []string
	m := &mockCompletioner{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "I'm fine."}}},
	}}
	client := newMockOpenAI(m, &keys)

	out, err := client.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "I'm fine.", out)
	require.Equal(t, []string{"default-key"}, keys)

	require.Equal(t, "gemini-2.0-flash", m.got.Model)
	require.Equal(t, 8192, m.got.MaxTokens)
	require.InDelta(t, 0.7, m.got.Temperature, 1e-6)
	roles := make([]string, len(m.got.Messages))
	for i, msg := range m.got.Messages {
		roles[i] = msg.Role
	}
	require.Equal(t, []string{
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleUser,
	}, roles)
	require.Equal(t, "Be brief.", m.got.Messages[0].Content)

	req := sampleRequest()
	req.Options.Temperature = 0
	_, err = client.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotZero(t, m.got.Temperature)
	require.InDelta(t, 0, m.got.Temperature, 1e-6)
	body, err := json.Marshal(m.got)
	require.NoError(t, err)
	require.Contains(t, string(body), `"temperature":`)
}

func TestOpenAIClient_Errors(t *testing.T) {
	var keys []string

	m := &mockCompletioner{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}}
	_, err := newMockOpenAI(m, &keys).Generate(context.Background(), sampleRequest())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "bad key", apiErr.Error())

	m = &mockCompletioner{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{FinishReason: openai.FinishReasonContentFilter}},
	}}
	_, err = newMockOpenAI(m, &keys).Generate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrSafetyBlocked)

	m = &mockCompletioner{}
	_, err = newMockOpenAI(m, &keys).Generate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrUnexpectedResponse)

	m = &mockCompletioner{err: context.DeadlineExceeded}
	_, err = newMockOpenAI(m, &keys).Generate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenAIClient_PerRequestKey(t *testing.T) {
	var keys []string
	m := &mockCompletioner{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "x"}}},
	}}
	req := sampleRequest()
	req.APIKey = "user-key"
	_, err := newMockOpenAI(m, &keys).Generate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []string{"user-key"}, keys)
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(config.LLMConfig{Provider: config.ProviderGemini})
	require.NoError(t, err)
	require.IsType(t, &GeminiClient{}, g)

	g, err = NewGenerator(config.LLMConfig{Provider: config.ProviderOpenAI, BaseURL: DefaultGeminiBaseURL})
	require.NoError(t, err)
	require.IsType(t, &OpenAIClient{}, g)

	_, err = NewGenerator(config.LLMConfig{Provider: "claude"})
	require.Error(t, err)
}

func TestOpenAIBaseURL(t *testing.T) {
	require.Equal(t, DefaultGeminiBaseURL+"/openai", openAIBaseURL(""))
	require.Equal(t, DefaultGeminiBaseURL+"/openai", openAIBaseURL(DefaultGeminiBaseURL+"/"))
	require.Equal(t, DefaultGeminiBaseURL+"/openai", openAIBaseURL(DefaultGeminiBaseURL+"/openai"))
	require.Equal(t, "https://api.example.com/v1", openAIBaseURL("https://api.example.com/v1"))
}
