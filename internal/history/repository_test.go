package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/gemini-chat/internal/kvstore"
)

type brokenKV struct{ kvstore.MemoryStore }

func (*brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("io error") }

func TestSlotRepository_LoadDegradesToEmpty(t *testing.T) {
	ctx := context.Background()

	missing := NewSlotRepository(kvstore.NewMemoryStore())
	require.Empty(t, missing.Load(ctx))

	corruptKV := kvstore.NewMemoryStore()
	require.NoError(t, corruptKV.Put(ctx, ChatsSlot, []byte("{not json")))
	require.Empty(t, NewSlotRepository(corruptKV).Load(ctx))

	nullKV := kvstore.NewMemoryStore()
	require.NoError(t, nullKV.Put(ctx, ChatsSlot, []byte("null")))
	sessions := NewSlotRepository(nullKV).Load(ctx)
	require.NotNil(t, sessions)
	require.Empty(t, sessions)

	require.Empty(t, NewSlotRepository(&brokenKV{}).Load(ctx))
}

func TestSlotRepository_WireFormat(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	repo := NewSlotRepository(kv)

	created := time.UnixMilli(1760536800000)
	require.NoError(t, repo.Save(ctx, []ChatSession{{
		ID:        "abc",
		Title:     "hello",
		Messages:  []Message{UserMessage("hello"), ModelMessage("hi there")},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Second),
	}}))

	raw, err := kv.Get(ctx, ChatsSlot)
	require.NoError(t, err)
	require.JSONEq(t, `[{
		"id": "abc",
		"title": "hello",
		"messages": [
			{"role": "user", "parts": [{"text": "hello"}]},
			{"role": "model", "parts": [{"text": "hi there"}]}
		],
		"timestamp": 1760536800000,
		"updatedAt": 1760536801000
	}]`, string(raw))

	loaded := repo.Load(ctx)
	require.Len(t, loaded, 1)
	require.Equal(t, "hi there", loaded[0].Messages[1].Text)
	require.Equal(t, RoleModel, loaded[0].Messages[1].Role)
	require.True(t, created.Equal(loaded[0].CreatedAt))
}

func TestMessage_UnmarshalJoinsParts(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"model","parts":[{"text":"a"},{"text":"b"}]}`), &m))
	require.Equal(t, ModelMessage("ab"), m)
}

func TestSlotRepository_SaveNil(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, NewSlotRepository(kv).Save(ctx, nil))
	raw, err := kv.Get(ctx, ChatsSlot)
	require.NoError(t, err)
	require.Equal(t, "[]", string(raw))
}
