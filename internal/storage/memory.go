package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory keeps the JSON documents in a map. Atomic holds the write lock for
// the whole callback and applies the staged writes only when it succeeds.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	return decode(key, raw, ok, dst)
}

func (m *Memory) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Atomic(ctx context.Context, fn func(kv KV) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		base:    m.data,
		staged:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for key := range tx.deleted {
		delete(m.data, key)
	}
	for key, raw := range tx.staged {
		m.data[key] = raw
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}

type memoryTx struct {
	base    map[string][]byte
	staged  map[string][]byte
	deleted map[string]bool
}

func (t *memoryTx) Get(ctx context.Context, key string, dst any) (bool, error) {
	if raw, ok := t.staged[key]; ok {
		return decode(key, raw, true, dst)
	}
	if t.deleted[key] {
		return false, nil
	}
	raw, ok := t.base[key]
	return decode(key, raw, ok, dst)
}

func (t *memoryTx) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	delete(t.deleted, key)
	t.staged[key] = raw
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, key string) error {
	delete(t.staged, key)
	t.deleted[key] = true
	return nil
}

func decode(key string, raw []byte, ok bool, dst any) (bool, error) {
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}
