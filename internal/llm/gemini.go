package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/comigor/gemini-chat/internal/history"
	"github.com/comigor/gemini-chat/internal/logger"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []history.Message `json:"contents"`
	GenerationConfig  generationConfig  `json:"generationConfig"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

const finishReasonSafety = "SAFETY"

// GeminiClient calls the generateContent REST endpoint.
type GeminiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGeminiClient creates a client. apiKey is used when a request carries
// none of its own.
func NewGeminiClient(baseURL, apiKey string, client *http.Client) *GeminiClient {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GeminiClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.apiKey
	}

	body := geminiRequest{
		Contents: req.Messages,
		GenerationConfig: generationConfig{
			Temperature:     req.Options.Temperature,
			TopP:            req.Options.TopP,
			TopK:            req.Options.TopK,
			MaxOutputTokens: req.Options.MaxOutputTokens,
		},
	}
	if sp := strings.TrimSpace(req.SystemInstruction); sp != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: sp}}}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb geminiErrorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Error.Message
		}
		return "", apiErr
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	logger.For("llm").Debug("gemini usage",
		"model", req.Model,
		"prompt_tokens", parsed.UsageMetadata.PromptTokenCount,
		"response_tokens", parsed.UsageMetadata.CandidatesTokenCount,
		"total_tokens", parsed.UsageMetadata.TotalTokenCount)

	if parsed.PromptFeedback.BlockReason != "" {
		return "", ErrSafetyBlocked
	}
	if len(parsed.Candidates) == 0 {
		return "", ErrUnexpectedResponse
	}

	cand := parsed.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() > 0 {
		return sb.String(), nil
	}
	if cand.FinishReason == finishReasonSafety {
		return "", ErrSafetyBlocked
	}
	return "", ErrUnexpectedResponse
}

var _ Generator = (*GeminiClient)(nil)
