// cache.go — LRU-кэш метаданных файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable. Разгружает хранилище
// метаданных на read path (GetInfo); короткий TTL ограничивает
// staleness счётчика скачиваний в ответах.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных",
	})
)

// metadataCache — LRU-кэш записей FileInfo с автоматическим TTL.
type metadataCache struct {
	cache *expirable.LRU[string, *model.FileInfo]
}

// newMetadataCache создаёт LRU-кэш с указанным размером и TTL.
func newMetadataCache(maxSize int, ttl time.Duration) *metadataCache {
	return &metadataCache{
		cache: expirable.NewLRU[string, *model.FileInfo](maxSize, nil, ttl),
	}
}

// Get возвращает запись из кэша по ключу файла.
func (c *metadataCache) Get(fileKey string) (*model.FileInfo, bool) {
	rec, ok := c.cache.Get(fileKey)
	if ok {
		cacheHitsTotal.Inc()
		return rec, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *metadataCache) Set(fileKey string, rec *model.FileInfo) {
	c.cache.Add(fileKey, rec)
}

// Delete удаляет запись из кэша (инвалидация при удалении файла).
func (c *metadataCache) Delete(fileKey string) {
	c.cache.Remove(fileKey)
}
