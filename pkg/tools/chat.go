package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/comigor/gemini-chat/internal/chat"
	"github.com/comigor/gemini-chat/internal/history"
	"github.com/comigor/gemini-chat/internal/markdown"
)

type textArgs struct {
	Text string `json:"text"`
}

func parseText(args string) (string, error) {
	var a textArgs
	if args == "" {
		return "", nil
	}
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return a.Text, nil
}

// FormatTool renders markdown to HTML.
type FormatTool struct{}

func (FormatTool) Name() string        { return "format_markdown" }
func (FormatTool) Description() string { return "Renders chat markdown into safe HTML." }
func (FormatTool) Params() []Param {
	return []Param{{Name: "text", Description: "Markdown text to render", Required: true}}
}

func (FormatTool) Run(_ context.Context, args string) (string, error) {
	text, err := parseText(args)
	if err != nil {
		return "", err
	}
	return markdown.Format(text), nil
}

// SendTool sends a message in the active chat and returns the model reply.
type SendTool struct {
	conv *chat.Conversation
}

func NewSendTool(conv *chat.Conversation) *SendTool { return &SendTool{conv: conv} }

func (t *SendTool) Name() string { return "send_message" }
func (t *SendTool) Description() string {
	return "Sends a message to the model in the active chat and returns its reply."
}
func (t *SendTool) Params() []Param {
	return []Param{{Name: "text", Description: "Message to send", Required: true}}
}

func (t *SendTool) Run(ctx context.Context, args string) (string, error) {
	text, err := parseText(args)
	if err != nil {
		return "", err
	}
	reply, err := t.conv.Send(ctx, text)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// NewChatTool starts a new chat.
type NewChatTool struct {
	conv *chat.Conversation
}

func NewNewChatTool(conv *chat.Conversation) *NewChatTool { return &NewChatTool{conv: conv} }

func (t *NewChatTool) Name() string        { return "new_chat" }
func (t *NewChatTool) Description() string { return "Starts a new, empty chat and makes it active." }
func (t *NewChatTool) Params() []Param     { return nil }

func (t *NewChatTool) Run(context.Context, string) (string, error) {
	return t.conv.NewChat().ID, nil
}

// ListChatsTool lists stored chats grouped by recency.
type ListChatsTool struct {
	conv *chat.Conversation
	now  func() time.Time
}

func NewListChatsTool(conv *chat.Conversation) *ListChatsTool {
	return &ListChatsTool{conv: conv, now: time.Now}
}

func (t *ListChatsTool) Name() string { return "list_chats" }
func (t *ListChatsTool) Description() string {
	return "Lists stored chats grouped into today, yesterday, past week and older."
}
func (t *ListChatsTool) Params() []Param { return nil }

type chatEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func entries(sessions []history.ChatSession) []chatEntry {
	out := make([]chatEntry, len(sessions))
	for i, s := range sessions {
		out[i] = chatEntry{ID: s.ID, Title: s.Title}
	}
	return out
}

func (t *ListChatsTool) Run(context.Context, string) (string, error) {
	g := t.conv.Groups(t.now())
	b, err := json.Marshal(map[string][]chatEntry{
		"today":     entries(g.Today),
		"yesterday": entries(g.Yesterday),
		"pastWeek":  entries(g.PastWeek),
		"pastMonth": entries(g.PastMonth),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ChatTools registers every chat tool on a new manager.
func ChatTools(conv *chat.Conversation) *ToolManager {
	m := NewToolManager()
	m.RegisterTool(FormatTool{})
	m.RegisterTool(NewSendTool(conv))
	m.RegisterTool(NewNewChatTool(conv))
	m.RegisterTool(NewListChatsTool(conv))
	return m
}
