// Package tokenstore persists the bot token and its identity in a key-value backend.
package tokenstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

// Fixed keys of the two persisted entries
const (
	TokenKey   = "discord_bot_token"
	BotDataKey = "discord_bot_data"
)

// KV is a persistent string key-value backend
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// TokenStore is what authenticated components depend on
type TokenStore interface {
	Save(data types.BotTokenData) error
	Token() (string, bool)
	Identity() (*types.BotTokenData, bool)
	Clear() error
	HasToken() bool
}

// Store implements TokenStore over a KV backend
type Store struct {
	kv     KV
	logger zerolog.Logger
	mu     sync.Mutex
}

// New creates a store over the given backend
func New(kv KV, logger zerolog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Save writes both the raw token and the full identity record
func (s *Store) Save(data types.BotTokenData) error {
	if data.Token == "" {
		return fmt.Errorf("cannot save empty token")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode bot data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(TokenKey, data.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if err := s.kv.Set(BotDataKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save bot data: %w", err)
	}
	return nil
}

// Token returns the stored raw token
func (s *Store) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok, err := s.kv.Get(TokenKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read stored token")
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Identity returns the stored bot identity. Malformed data reads as absent.
func (s *Store) Identity() (*types.BotTokenData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(BotDataKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read stored bot data")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var data types.BotTokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.logger.Warn().Err(err).Msg("ignoring malformed stored bot data")
		return nil, false
	}
	return &data, true
}

// Clear removes both entries. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(TokenKey); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	if err := s.kv.Delete(BotDataKey); err != nil {
		return fmt.Errorf("failed to clear bot data: %w", err)
	}
	return nil
}

// HasToken reports whether a token is stored
func (s *Store) HasToken() bool {
	_, ok := s.Token()
	return ok
}
