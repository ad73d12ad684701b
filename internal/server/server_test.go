package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/gemini-chat/internal/chat"
	"github.com/comigor/gemini-chat/internal/history"
	"github.com/comigor/gemini-chat/internal/kvstore"
	"github.com/comigor/gemini-chat/internal/llm"
)

type mockGenerator struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "**sure**", nil
}

func newTestServer(t *testing.T, gen llm.Generator, apiKey string) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	store := history.NewStore(ctx, history.NewSlotRepository(kv))
	settings := chat.NewSettingsStore(kv, chat.Settings{APIKey: apiKey, Model: "gemini-2.0-flash", Temperature: 0.7})
	srv := New(chat.New(store, gen, settings, llm.Options{}))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestSendListOpenDelete(t *testing.T) {
	ts := newTestServer(t, &mockGenerator{}, "secret-key")

	resp, body := do(t, http.MethodPost, ts.URL+"/api/messages", `{"text":"hello *there*"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "**sure**", body["reply"])
	require.Equal(t, "<strong>sure</strong>", body["html"])

	session := body["session"].(map[string]any)
	id := session["id"].(string)
	require.Equal(t, "hello *there*", session["title"])
	msgs := session["messages"].([]any)
	require.Len(t, msgs, 2)
	require.Equal(t, "hello <em>there</em>", msgs[0].(map[string]any)["html"])

	resp, body = do(t, http.MethodGet, ts.URL+"/api/chats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	today := body["today"].([]any)
	require.Len(t, today, 1)
	entry := today[0].(map[string]any)
	require.Equal(t, id, entry["id"])
	require.Equal(t, true, entry["active"])
	require.Empty(t, body["pastMonth"])

	resp, body = do(t, http.MethodPost, ts.URL+"/api/chats", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEqual(t, id, body["id"])
	require.Empty(t, body["messages"])

	resp, body = do(t, http.MethodGet, ts.URL+"/api/chats/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, id, body["id"])

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/chats/"+id, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodDelete, ts.URL+"/api/chats/"+id, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, body["error"], "session not found")

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/chats/"+id, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendErrors(t *testing.T) {
	cases := []struct {
		name   string
		apiKey string
		body   string
		err    error
		status int
	}{
		{"empty", "k", `{"text":"  "}`, nil, http.StatusBadRequest},
		{"bad json", "k", `{`, nil, http.StatusBadRequest},
		{"missing key", "", `{"text":"hi"}`, nil, http.StatusPreconditionFailed},
		{"safety", "k", `{"text":"hi"}`, llm.ErrSafetyBlocked, http.StatusUnprocessableEntity},
		{"api error", "k", `{"text":"hi"}`, &llm.APIError{StatusCode: 400, Message: "bad"}, http.StatusBadGateway},
		{"unexpected", "k", `{"text":"hi"}`, llm.ErrUnexpectedResponse, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &mockGenerator{GenerateFunc: func(context.Context, llm.Request) (string, error) {
				if tc.err != nil {
					return "", tc.err
				}
				return "ok", nil
			}}
			ts := newTestServer(t, gen, tc.apiKey)
			resp, body := do(t, http.MethodPost, ts.URL+"/api/messages", tc.body)
			require.Equal(t, tc.status, resp.StatusCode)
			require.NotEmpty(t, body["error"])

			_, list := do(t, http.MethodGet, ts.URL+"/api/chats", "")
			require.Empty(t, list["today"])
		})
	}
}

func TestSettingsEndpoints(t *testing.T) {
	ts := newTestServer(t, &mockGenerator{}, "config-key-1234")

	resp, body := do(t, http.MethodGet, ts.URL+"/api/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "***********1234", body["apiKey"])
	require.Equal(t, true, body["hasApiKey"])
	require.Equal(t, "gemini-2.0-flash", body["model"])

	// A masked key round-trips without replacing the real one.
	resp, body = do(t, http.MethodPut, ts.URL+"/api/settings",
		`{"apiKey":"***********1234","temperature":1.1,"systemPrompt":"Short answers."}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "***********1234", body["apiKey"])
	require.InDelta(t, 1.1, body["temperature"], 1e-9)
	require.Equal(t, "Short answers.", body["systemPrompt"])

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/settings", `{"temperature":3}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFormatEndpoint(t *testing.T) {
	ts := newTestServer(t, &mockGenerator{}, "k")
	resp, body := do(t, http.MethodPost, ts.URL+"/api/format", `{"text":"# Hi\n- a\n- b"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<h1>Hi</h1><br><ul><li>a</li><li>b</li></ul>", body["html"])
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusConflict, statusFor(chat.ErrBusy))
	require.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}
