package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webchat-transcript-exporter/internal/domain"
)

func TestCacheStore(t *testing.T) {
	artifact := &domain.Artifact{Name: "bundle.zip", ContentType: "application/zip", Data: []byte("zip")}

	t.Run("NewCacheStore создает корректный экземпляр", func(t *testing.T) {
		store := NewCacheStore()

		assert.NotNil(t, store)
		assert.NotNil(t, store.cache)
	})

	t.Run("Put и Get возвращают сохраненный артефакт", func(t *testing.T) {
		store := NewCacheStore()
		store.Put("key", artifact, time.Hour)

		item, ok := store.Get("key")
		require.True(t, ok)
		assert.Equal(t, artifact, item.Artifact)
		assert.WithinDuration(t, time.Now().Add(time.Hour), item.ExpiresAt, time.Second)
	})

	t.Run("Get возвращает false для отсутствующего ключа", func(t *testing.T) {
		store := NewCacheStore()

		item, ok := store.Get("missing")
		assert.False(t, ok)
		assert.Nil(t, item)
	})

	t.Run("Get возвращает false для просроченного элемента", func(t *testing.T) {
		store := NewCacheStore()
		store.Put("key", artifact, -time.Minute)

		item, ok := store.Get("key")
		assert.False(t, ok)
		assert.Nil(t, item)
	})

	t.Run("Put перезаписывает существующий ключ", func(t *testing.T) {
		store := NewCacheStore()
		store.Put("key", artifact, time.Hour)

		updated := &domain.Artifact{Name: "other.zip", ContentType: "application/zip", Data: []byte("other")}
		store.Put("key", updated, time.Hour)

		item, ok := store.Get("key")
		require.True(t, ok)
		assert.Equal(t, updated, item.Artifact)
	})

	t.Run("CleanupExpired удаляет только просроченные элементы", func(t *testing.T) {
		store := NewCacheStore()
		store.Put("expired", artifact, -time.Minute)
		store.Put("alive", artifact, time.Hour)

		store.CleanupExpired()

		_, ok := store.Get("expired")
		assert.False(t, ok)

		_, ok = store.Get("alive")
		assert.True(t, ok)
	})

	t.Run("StartCleanupTicker периодически чистит кэш", func(t *testing.T) {
		store := NewCacheStore()
		store.Put("expired", artifact, -time.Minute)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store.StartCleanupTicker(ctx, 10*time.Millisecond)

		require.Eventually(t, func() bool {
			store.mutex.RLock()
			defer store.mutex.RUnlock()
			_, exists := store.cache["expired"]
			return !exists
		}, time.Second, 10*time.Millisecond)
	})
}

func TestCalculateSnapshotHash(t *testing.T) {
	t.Run("Одинаковые данные дают одинаковый хеш", func(t *testing.T) {
		first := CalculateSnapshotHash([]byte(`{"messages": []}`))
		second := CalculateSnapshotHash([]byte(`{"messages": []}`))

		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
	})

	t.Run("Разные данные дают разные хеши", func(t *testing.T) {
		first := CalculateSnapshotHash([]byte(`{"messages": []}`))
		second := CalculateSnapshotHash([]byte(`{"messages": [1]}`))

		assert.NotEqual(t, first, second)
	})
}
