package storage

import (
	"context"
	"errors"
)

var (
	ErrConnectionFailed    = errors.New("db connection failed")
	ErrCreatingTableFailed = errors.New("creating table failed")
	ErrUnknownDriver       = errors.New("unknown sql driver")
)

// Keys of the persisted state. Values are JSON documents.
const (
	KeyCurrentUser = "currentUser"
	KeyUsers       = "users"
	KeyAPIKey      = "openai_api_key"
)

func UploadsKey(email string) string {
	return "uploads_" + email
}

func ProgressKey(email string) string {
	return "progress_" + email
}

func RedeemedKey(email string) string {
	return "redeemed_" + email
}

// KV reads and writes JSON values by key. Get reports false when the key
// is absent and leaves dst untouched.
type KV interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// Store is a KV that can run a group of reads and writes atomically:
// either every write made through the KV passed to fn is kept or none is.
type Store interface {
	KV
	Atomic(ctx context.Context, fn func(kv KV) error) error
	Close() error
}

// Open returns the Postgres store for a non-empty uri and the in-memory
// store otherwise.
func Open(ctx context.Context, driver, uri string) (Store, error) {
	if uri == "" {
		return NewMemory(), nil
	}
	return NewPostgres(ctx, driver, uri)
}
