// Package credentials holds the optional classifier API key. The key is
// stored in clear text under openai_api_key; it has no expiry and is meant
// for demo deployments only.
package credentials

import (
	"context"
	"strings"

	"github.com/sol1corejz/ecoglass/internal/logger"
	"github.com/sol1corejz/ecoglass/internal/storage"
	"go.uber.org/zap"
)

type Store struct {
	kv storage.KV
}

func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Get returns the trimmed key. Read errors are logged and reported as a
// missing key, which makes validation fall back to simulation.
func (s *Store) Get(ctx context.Context) (string, bool) {
	var key string
	ok, err := s.kv.Get(ctx, storage.KeyAPIKey, &key)
	if err != nil {
		logger.Log.Error("Error reading api key", zap.Error(err))
		return "", false
	}
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (s *Store) Has(ctx context.Context) bool {
	_, ok := s.Get(ctx)
	return ok
}

// Set stores the trimmed value; a blank value clears the key.
func (s *Store) Set(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.Clear(ctx)
	}
	return s.kv.Put(ctx, storage.KeyAPIKey, value)
}

func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, storage.KeyAPIKey)
}

// Mask hides all but the last four characters of key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
