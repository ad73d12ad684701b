package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/comigor/gemini-chat/internal/kvstore"
	"github.com/comigor/gemini-chat/internal/logger"
)

// ChatsSlot is the storage slot holding the serialized session collection.
const ChatsSlot = "gemini-chats"

// Repository loads and saves the whole session collection.
type Repository interface {
	// Load never fails: unreadable state is reported as an empty collection.
	Load(ctx context.Context) []ChatSession
	Save(ctx context.Context, sessions []ChatSession) error
}

// SlotRepository stores the collection as one JSON array in a kvstore slot.
type SlotRepository struct {
	kv  kvstore.Store
	key string
}

func NewSlotRepository(kv kvstore.Store) *SlotRepository {
	return &SlotRepository{kv: kv, key: ChatsSlot}
}

func (r *SlotRepository) Load(ctx context.Context) []ChatSession {
	log := logger.For("history")

	data, err := r.kv.Get(ctx, r.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []ChatSession{}
	}
	if err != nil {
		log.Warn("reading chat history failed; starting empty", "error", err)
		return []ChatSession{}
	}

	var sessions []ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		log.Warn("chat history is corrupt; starting empty", "error", err)
		return []ChatSession{}
	}
	if sessions == nil {
		sessions = []ChatSession{}
	}
	return sessions
}

func (r *SlotRepository) Save(ctx context.Context, sessions []ChatSession) error {
	if sessions == nil {
		sessions = []ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}
	return r.kv.Put(ctx, r.key, data)
}

var _ Repository = (*SlotRepository)(nil)
