package cache

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache реализация CachePort в памяти процесса
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache создает кэш в памяти; cleanupInterval задает период
// удаления просроченных ключей
func NewMemoryCache(cleanupInterval time.Duration) interfaces.CachePort {
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	data := v.([]byte)
	return append([]byte(nil), data...), nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	m.store.Set(key, append([]byte(nil), value...), expiration)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

func (m *MemoryCache) Close() error {
	m.store.Flush()
	return nil
}
