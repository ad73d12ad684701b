package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/comigor/gemini-chat/internal/config"
	"github.com/comigor/gemini-chat/internal/kvstore"
	"github.com/comigor/gemini-chat/internal/logger"
)

// SettingsSlot is the storage slot holding the user settings.
const SettingsSlot = "gemini-settings"

// ErrInvalidSettings is returned when settings fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the user-editable request parameters.
type Settings struct {
	APIKey       string  `json:"apiKey"`
	SystemPrompt string  `json:"systemPrompt"`
	Temperature  float64 `json:"temperature"`
	Model        string  `json:"model"`
}

// UnmarshalJSON accepts the temperature as a number or a numeric string,
// since older clients stored the raw input value.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type alias Settings
	raw := struct {
		*alias
		Temperature json.RawMessage `json:"temperature"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Temperature) == 0 || string(raw.Temperature) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw.Temperature, &f); err == nil {
		s.Temperature = f
		return nil
	}
	var str string
	if err := json.Unmarshal(raw.Temperature, &str); err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	s.Temperature = f
	return nil
}

// Validate checks ranges the remote API enforces.
func (s Settings) Validate() error {
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v outside [0, 2]", ErrInvalidSettings, s.Temperature)
	}
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidSettings)
	}
	return nil
}

// MaskedAPIKey hides all but the last four characters of the key.
func (s Settings) MaskedAPIKey() string {
	if len(s.APIKey) <= 4 {
		return strings.Repeat("*", len(s.APIKey))
	}
	return strings.Repeat("*", len(s.APIKey)-4) + s.APIKey[len(s.APIKey)-4:]
}

// DefaultSettings derives settings from configuration.
func DefaultSettings(cfg config.LLMConfig) Settings {
	return Settings{
		APIKey:       cfg.APIKey,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		Model:        cfg.Model,
	}
}

// SettingsStore persists Settings in their own slot.
type SettingsStore struct {
	kv       kvstore.Store
	defaults Settings
}

func NewSettingsStore(kv kvstore.Store, defaults Settings) *SettingsStore {
	return &SettingsStore{kv: kv, defaults: defaults}
}

// Load returns the stored settings layered over the defaults. Missing or
// unreadable settings yield the defaults.
func (s *SettingsStore) Load(ctx context.Context) Settings {
	out := s.defaults

	data, err := s.kv.Get(ctx, SettingsSlot)
	if errors.Is(err, kvstore.ErrNotFound) {
		return out
	}
	if err != nil {
		logger.For("settings").Warn("reading settings failed; using defaults", "error", err)
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		logger.For("settings").Warn("settings are corrupt; using defaults", "error", err)
		return s.defaults
	}
	if strings.TrimSpace(out.Model) == "" {
		out.Model = s.defaults.Model
	}
	if strings.TrimSpace(out.APIKey) == "" {
		out.APIKey = s.defaults.APIKey
	}
	return out
}

// Save validates and stores settings.
func (s *SettingsStore) Save(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.kv.Put(ctx, SettingsSlot, data)
}
