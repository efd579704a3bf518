package ttlcache

import (
	"context"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	shardCount      = 256
	sweepInterval   = 30 * time.Second
	defaultPerShard = 8
)

type entry struct {
	value string
	// expiresAt is zero for entries without TTL.
	expiresAt int64
}

type shard struct {
	sync.RWMutex
	items map[string]entry
}

// Memory is the in-process Cache. Keys are spread over shards by xxh3 so
// concurrent event handlers do not contend on one mutex. Expired entries are
// dropped lazily on read and swept periodically.
type Memory struct {
	shards [shardCount]*shard
}

func NewMemory(ctx context.Context) *Memory {
	m := &Memory{}
	for i := 0; i < shardCount; i++ {
		m.shards[i] = &shard{items: make(map[string]entry, defaultPerShard)}
	}
	go m.sweepLoop(ctx)
	return m
}

func (m *Memory) shardOf(key string) *shard {
	return m.shards[xxh3.HashString(key)%shardCount]
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	s := m.shardOf(key)
	s.RLock()
	e, ok := s.items[key]
	s.RUnlock()
	if !ok {
		return "", false, nil
	}
	if e.expiresAt != 0 && time.Now().UnixNano() > e.expiresAt {
		s.Lock()
		delete(s.items, key)
		s.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s := m.shardOf(key)
	s.Lock()
	s.items[key] = entry{value: value, expiresAt: deadline(ttl)}
	s.Unlock()
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s := m.shardOf(key)
	s.Lock()
	defer s.Unlock()
	if e, ok := s.items[key]; ok && (e.expiresAt == 0 || time.Now().UnixNano() <= e.expiresAt) {
		return false, nil
	}
	s.items[key] = entry{value: value, expiresAt: deadline(ttl)}
	return true, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	s := m.shardOf(key)
	s.Lock()
	delete(s.items, key)
	s.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) sweepLoop(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := time.Now().UnixNano()
			for _, s := range m.shards {
				s.Lock()
				for k, e := range s.items {
					if e.expiresAt != 0 && now > e.expiresAt {
						delete(s.items, k)
					}
				}
				s.Unlock()
			}
		}
	}
}

func deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixNano()
}
