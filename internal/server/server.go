// Package server exposes a Conversation over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/comigor/gemini-chat/internal/chat"
	"github.com/comigor/gemini-chat/internal/history"
	"github.com/comigor/gemini-chat/internal/llm"
	"github.com/comigor/gemini-chat/internal/logger"
	"github.com/comigor/gemini-chat/internal/markdown"
)

const maxBodyBytes = 1 << 20

// Server routes API requests to a Conversation.
type Server struct {
	conv *chat.Conversation
	now  func() time.Time
	mux  *http.ServeMux
}

// New builds the router.
func New(conv *chat.Conversation) *Server {
	s := &Server{conv: conv, now: time.Now, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /api/chats", s.listChats)
	s.mux.HandleFunc("POST /api/chats", s.newChat)
	s.mux.HandleFunc("GET /api/chats/{id}", s.openChat)
	s.mux.HandleFunc("DELETE /api/chats/{id}", s.deleteChat)
	s.mux.HandleFunc("POST /api/messages", s.sendMessage)
	s.mux.HandleFunc("GET /api/settings", s.getSettings)
	s.mux.HandleFunc("PUT /api/settings", s.putSettings)
	s.mux.HandleFunc("POST /api/format", s.format)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type sessionSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
	UpdatedAt int64  `json:"updatedAt"`
	Active    bool   `json:"active"`
}

type messageView struct {
	Role history.Role `json:"role"`
	Text string       `json:"text"`
	HTML string       `json:"html"`
}

type sessionView struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Timestamp int64         `json:"timestamp"`
	UpdatedAt int64         `json:"updatedAt"`
	Messages  []messageView `json:"messages"`
}

type groupsView struct {
	Today     []sessionSummary `json:"today"`
	Yesterday []sessionSummary `json:"yesterday"`
	PastWeek  []sessionSummary `json:"pastWeek"`
	PastMonth []sessionSummary `json:"pastMonth"`
}

type settingsView struct {
	APIKey       string  `json:"apiKey"`
	HasAPIKey    bool    `json:"hasApiKey"`
	SystemPrompt string  `json:"systemPrompt"`
	Temperature  float64 `json:"temperature"`
	Model        string  `json:"model"`
}

type textRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Reply   string      `json:"reply"`
	HTML    string      `json:"html"`
	Session sessionView `json:"session"`
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func toView(sess history.ChatSession) sessionView {
	msgs := make([]messageView, len(sess.Messages))
	for i, m := range sess.Messages {
		msgs[i] = messageView{Role: m.Role, Text: m.Text, HTML: markdown.Format(m.Text)}
	}
	return sessionView{
		ID:        sess.ID,
		Title:     sess.Title,
		Timestamp: millis(sess.CreatedAt),
		UpdatedAt: millis(sess.UpdatedAt),
		Messages:  msgs,
	}
}

func summaries(sessions []history.ChatSession, activeID string) []sessionSummary {
	out := make([]sessionSummary, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionSummary{
			ID:        sess.ID,
			Title:     sess.Title,
			Timestamp: millis(sess.CreatedAt),
			UpdatedAt: millis(sess.UpdatedAt),
			Active:    sess.ID == activeID,
		}
	}
	return out
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	activeID := s.conv.Active().ID
	g := s.conv.Groups(s.now())
	writeJSON(w, http.StatusOK, groupsView{
		Today:     summaries(g.Today, activeID),
		Yesterday: summaries(g.Yesterday, activeID),
		PastWeek:  summaries(g.PastWeek, activeID),
		PastMonth: summaries(g.PastMonth, activeID),
	})
}

func (s *Server) newChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, toView(s.conv.NewChat()))
}

func (s *Server) openChat(w http.ResponseWriter, r *http.Request) {
	sess, err := s.conv.Open(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(sess))
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := s.conv.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeError(w, history.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !readJSON(w, r, &req) {
		return
	}
	reply, err := s.conv.Send(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{
		Reply:   reply.Text,
		HTML:    markdown.Format(reply.Text),
		Session: toView(reply.Session),
	})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	st := s.conv.Settings(r.Context())
	writeJSON(w, http.StatusOK, settingsView{
		APIKey:       st.MaskedAPIKey(),
		HasAPIKey:    st.APIKey != "",
		SystemPrompt: st.SystemPrompt,
		Temperature:  st.Temperature,
		Model:        st.Model,
	})
}

// putSettings stores new settings. An omitted or masked API key keeps the
// current one.
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	current := s.conv.Settings(r.Context())
	next := current
	if !readJSON(w, r, &next) {
		return
	}
	if next.APIKey == current.MaskedAPIKey() {
		next.APIKey = current.APIKey
	}
	if err := s.conv.UpdateSettings(r.Context(), next); err != nil {
		writeError(w, err)
		return
	}
	s.getSettings(w, r)
}

func (s *Server) format(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": markdown.Format(req.Text)})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.L.Error("read body error", "err", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read request body"})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, history.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrMissingAPIKey):
		return http.StatusPreconditionFailed
	case errors.Is(err, llm.ErrSafetyBlocked):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr), errors.Is(err, llm.ErrUnexpectedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.L.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("write response failed", "err", err)
	}
}
