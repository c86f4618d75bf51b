package contentcache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Memory struct{ c *gocache.Cache }

func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.c.Set(key, append([]byte(nil), value...), ttl)
}

func (m *Memory) Len() int { return m.c.ItemCount() }
