// Package kvstore persists named slots of opaque bytes, the local storage
// that chat history and user settings live in.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/gemini-chat/internal/config"
	"github.com/comigor/gemini-chat/internal/logger"
)

// ErrNotFound is returned by Get when a slot has never been written.
var ErrNotFound = errors.New("kvstore: slot not found")

// Store reads and writes whole slots. Every Put replaces the slot as a single
// unit.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open builds the backend named in cfg. A sqlite database that cannot be
// opened degrades to an in-memory store so the app still starts.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageSQLite, "":
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			logger.L.Warn("sqlite open failed; using in-memory storage", "path", cfg.Path, "error", err)
			return NewMemoryStore(), nil
		}
		return s, nil
	case config.StorageFile:
		return NewFileStore(cfg.Path)
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
