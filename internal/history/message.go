package history

import (
	"encoding/json"
	"strings"
	"time"
)

// Role tags who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one conversation turn. It is stored in the same shape the
// generative-language API uses for contents, so a session's history can be
// sent back as is.
type Message struct {
	Role Role
	Text string
}

// UserMessage returns a message authored by the user.
func UserMessage(text string) Message { return Message{Role: RoleUser, Text: text} }

// ModelMessage returns a message authored by the model.
func ModelMessage(text string) Message { return Message{Role: RoleModel, Text: text} }

type part struct {
	Text string `json:"text"`
}

type messageJSON struct {
	Role  Role   `json:"role"`
	Parts []part `json:"parts"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{Role: m.Role, Parts: []part{{Text: m.Text}}})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	texts := make([]string, 0, len(raw.Parts))
	for _, p := range raw.Parts {
		texts = append(texts, p.Text)
	}
	m.Role = raw.Role
	m.Text = strings.Join(texts, "")
	return nil
}

// ChatSession is one persisted conversation.
type ChatSession struct {
	ID       string
	Title    string
	Messages []Message
	// CreatedAt is set on first save and never changes; recency grouping
	// uses it.
	CreatedAt time.Time
	UpdatedAt time.Time
}

type sessionJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Timestamp int64     `json:"timestamp"`
	UpdatedAt int64     `json:"updatedAt"`
}

func (s ChatSession) MarshalJSON() ([]byte, error) {
	msgs := s.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(sessionJSON{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  msgs,
		Timestamp: toMillis(s.CreatedAt),
		UpdatedAt: toMillis(s.UpdatedAt),
	})
}

func (s *ChatSession) UnmarshalJSON(data []byte) error {
	var raw sessionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ChatSession{
		ID:        raw.ID,
		Title:     raw.Title,
		Messages:  raw.Messages,
		CreatedAt: fromMillis(raw.Timestamp),
		UpdatedAt: fromMillis(raw.UpdatedAt),
	}
	return nil
}

// Clone returns a copy that shares no message storage with s.
func (s ChatSession) Clone() ChatSession {
	s.Messages = append([]Message(nil), s.Messages...)
	return s
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
