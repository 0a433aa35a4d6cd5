package sessionstore

import (
	"context"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
)

// Memory keeps slots in process memory. It does not survive a restart and is
// meant for tests and for the "memory" store setting.
type Memory struct {
	cache  *cache.Cache
	writes atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *Memory) Get(_ context.Context, slot Slot) ([]byte, error) {
	x, found := m.cache.Get(string(slot))
	if !found {
		return nil, ErrNotFound
	}
	return append([]byte(nil), x.([]byte)...), nil
}

func (m *Memory) Set(_ context.Context, slot Slot, value []byte) error {
	m.cache.Set(string(slot), append([]byte(nil), value...), cache.NoExpiration)
	m.writes.Add(1)
	return nil
}

func (m *Memory) Delete(_ context.Context, slot Slot) error {
	m.cache.Delete(string(slot))
	return nil
}

// Writes returns how many Set calls the store has served.
func (m *Memory) Writes() int64 {
	return m.writes.Load()
}
