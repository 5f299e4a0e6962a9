package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"webchat-transcript-exporter/internal/domain"
)

// CacheItem представляет кэшированный артефакт экспорта
type CacheItem struct {
	Artifact  *domain.Artifact
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением готовых артефактов.
// Повторный экспорт одного и того же снимка беседы отдается из кэша.
type CacheStore struct {
	cache map[string]*CacheItem
	mutex sync.RWMutex
}

// NewCacheStore создает новый экземпляр CacheStore
func NewCacheStore() *CacheStore {
	return &CacheStore{
		cache: make(map[string]*CacheItem),
	}
}

// Get извлекает кэшированный элемент по его ключу (хешу снимка)
func (cs *CacheStore) Get(key string) (*CacheItem, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[key]
	if !exists || time.Now().After(item.ExpiresAt) {
		// Элемент не существует или срок его действия истек
		return nil, false
	}

	return item, true
}

// Put сохраняет артефакт в кэш с указанным сроком действия
func (cs *CacheStore) Put(key string, artifact *domain.Artifact, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := time.Now()
	cs.cache[key] = &CacheItem{
		Artifact:  artifact,
		ExpiresAt: now.Add(ttl),
	}
}

// CleanupExpired удаляет просроченные элементы из кэша
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := time.Now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

// CalculateSnapshotHash вычисляет хеш SHA256 тела снимка беседы.
// Хеш служит ключом кэша артефактов.
func CalculateSnapshotHash(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
