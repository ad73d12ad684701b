// Package chat ties the history store to the remote model: it tracks the
// active session and runs one send turn at a time.
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/gemini-chat/internal/history"
	"github.com/comigor/gemini-chat/internal/llm"
	"github.com/comigor/gemini-chat/internal/logger"
)

var (
	// ErrBusy is returned by Send while another send is in flight.
	ErrBusy = errors.New("a message is already being sent")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("API key is not configured")
)

// Send turn states and triggers.
const (
	stateIdle             = "Idle"
	stateAwaitingResponse = "AwaitingResponse"

	triggerSend      = "Send"
	triggerResponded = "Responded"
	triggerFailed    = "Failed"
)

func newTurnMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(stateIdle)
	fsm.Configure(stateIdle).
		Permit(triggerSend, stateAwaitingResponse)
	fsm.Configure(stateAwaitingResponse).
		Permit(triggerResponded, stateIdle).
		Permit(triggerFailed, stateIdle)
	return fsm
}

// Reply is the outcome of a successful Send.
type Reply struct {
	Text    string
	Session history.ChatSession
}

// Conversation is the session context: the active session, the send gate
// and the collaborators a turn needs.
type Conversation struct {
	store    *history.Store
	gen      llm.Generator
	settings *SettingsStore
	options  llm.Options

	mu     sync.Mutex
	active *history.ChatSession
	turn   *stateless.StateMachine
	// ids deleted while the current turn awaits its reply
	deleted map[string]struct{}
}

// New creates a Conversation with a fresh active session. TopP, TopK and
// MaxOutputTokens come from opts; temperature comes from the settings.
func New(store *history.Store, gen llm.Generator, settings *SettingsStore, opts llm.Options) *Conversation {
	return &Conversation{
		store:    store,
		gen:      gen,
		settings: settings,
		options:  opts,
		active:   store.CreateSession(),
		turn:     newTurnMachine(),
		deleted:  map[string]struct{}{},
	}
}

// Active returns a copy of the active session.
func (c *Conversation) Active() history.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.Clone()
}

// Busy reports whether a send is in flight.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn.MustState() != stateIdle
}

// NewChat makes a fresh, unsaved session active.
func (c *Conversation) NewChat() history.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = c.store.CreateSession()
	return c.active.Clone()
}

// Open makes the stored session id active.
func (c *Conversation) Open(id string) (history.ChatSession, error) {
	sess, err := c.store.LoadSession(id)
	if err != nil {
		return history.ChatSession{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = sess
	return sess.Clone(), nil
}

// Delete removes a stored session. Deleting the active session starts a
// new chat. A reply still pending for the deleted session is not saved.
func (c *Conversation) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := c.store.DeleteSession(ctx, id)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turn.MustState() != stateIdle {
		c.deleted[id] = struct{}{}
	}
	if c.active.ID == id {
		c.active = c.store.CreateSession()
	}
	return removed, nil
}

// Groups lists stored sessions bucketed by recency.
func (c *Conversation) Groups(now time.Time) history.Groups {
	return c.store.ListSessionsGrouped(now)
}

// Settings returns the effective user settings.
func (c *Conversation) Settings(ctx context.Context) Settings {
	return c.settings.Load(ctx)
}

// UpdateSettings validates and stores new settings.
func (c *Conversation) UpdateSettings(ctx context.Context, s Settings) error {
	return c.settings.Save(ctx, s)
}

// Send appends text as a user message to the active session and asks the
// model for a reply. The reply goes to the session that was active when
// Send was called, even if another session has been opened since; it is
// returned but not saved if that session was deleted meanwhile. On any
// failure the user message is removed again, so a retry resends cleanly.
func (c *Conversation) Send(ctx context.Context, text string) (Reply, error) {
	log := logger.For("chat")

	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyMessage
	}
	settings := c.settings.Load(ctx)
	if strings.TrimSpace(settings.APIKey) == "" {
		return Reply{}, ErrMissingAPIKey
	}

	c.mu.Lock()
	if c.turn.MustState() != stateIdle {
		c.mu.Unlock()
		return Reply{}, ErrBusy
	}
	if err := c.turn.Fire(triggerSend); err != nil {
		c.mu.Unlock()
		return Reply{}, err
	}
	clear(c.deleted)
	sess := c.active
	sess.Messages = append(sess.Messages, history.UserMessage(text))
	req := llm.Request{
		APIKey:            strings.TrimSpace(settings.APIKey),
		Model:             settings.Model,
		Messages:          slices.Clone(sess.Messages),
		SystemInstruction: strings.TrimSpace(settings.SystemPrompt),
		Options:           c.options,
	}
	req.Options.Temperature = settings.Temperature
	c.mu.Unlock()

	log.Debug("sending message", "session", sess.ID, "messages", len(req.Messages), "model", req.Model)
	out, genErr := c.gen.Generate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if genErr != nil {
		sess.Messages = sess.Messages[:len(sess.Messages)-1]
		if err := c.turn.Fire(triggerFailed); err != nil {
			log.Error("send turn transition failed", "error", err)
		}
		log.Warn("send failed", "session", sess.ID, "error", genErr)
		return Reply{}, genErr
	}

	sess.Messages = append(sess.Messages, history.ModelMessage(out))
	if err := c.turn.Fire(triggerResponded); err != nil {
		log.Error("send turn transition failed", "error", err)
	}
	if _, gone := c.deleted[sess.ID]; gone {
		log.Info("session deleted while awaiting reply, not saving", "session", sess.ID)
		return Reply{Text: out, Session: sess.Clone()}, nil
	}
	if c.active.ID == sess.ID {
		c.active = sess
	}
	// The reply already arrived; a cancelled caller must not lose it.
	if err := c.store.SaveActiveSession(context.WithoutCancel(ctx), sess); err != nil {
		log.Error("saving session failed", "session", sess.ID, "error", err)
	}
	return Reply{Text: out, Session: sess.Clone()}, nil
}
