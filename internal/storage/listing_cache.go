package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"upload-gate/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/jellydator/ttlcache/v3"
)

// ListingKeyPrefix é o prefixo das chaves de listagem de pasta
const ListingKeyPrefix = "drive_files:"

// BuildListingKey constrói a chave da listagem de uma pasta
func BuildListingKey(folderID string) string {
	return ListingKeyPrefix + folderID
}

// MemoryListingCache guarda listagens em memória com TTL
type MemoryListingCache struct {
	cache *ttlcache.Cache[string, []*domain.StoredFile]
}

// NewMemoryListingCache cria o cache e inicia a remoção de itens expirados
func NewMemoryListingCache(ttl time.Duration) *MemoryListingCache {
	cache := ttlcache.New[string, []*domain.StoredFile](
		ttlcache.WithTTL[string, []*domain.StoredFile](ttl),
		ttlcache.WithDisableTouchOnHit[string, []*domain.StoredFile](),
	)
	go cache.Start()

	return &MemoryListingCache{cache: cache}
}

func (m *MemoryListingCache) Get(ctx context.Context, folderID string) ([]*domain.StoredFile, bool, error) {
	item := m.cache.Get(BuildListingKey(folderID))
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (m *MemoryListingCache) Set(ctx context.Context, folderID string, files []*domain.StoredFile) error {
	m.cache.Set(BuildListingKey(folderID), files, ttlcache.DefaultTTL)
	return nil
}

func (m *MemoryListingCache) Invalidate(ctx context.Context, folderID string) error {
	m.cache.Delete(BuildListingKey(folderID))
	return nil
}

func (m *MemoryListingCache) Clear(ctx context.Context) (int, error) {
	cleared := m.cache.Len()
	m.cache.DeleteAll()
	return cleared, nil
}

// Close para a goroutine de expiração
func (m *MemoryListingCache) Close() error {
	m.cache.Stop()
	return nil
}

// RedisListingCache guarda listagens no Redis com TTL
type RedisListingCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger domain.Logger
}

// NewRedisListingCache cria uma nova instância do RedisListingCache
func NewRedisListingCache(client redis.Cmdable, ttl time.Duration, logger domain.Logger) *RedisListingCache {
	return &RedisListingCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *RedisListingCache) Get(ctx context.Context, folderID string) ([]*domain.StoredFile, bool, error) {
	start := time.Now()
	key := BuildListingKey(folderID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logRedisOperation(r.logger, "GET_LISTING", key, start, nil)
			return nil, false, nil
		}
		logRedisOperation(r.logger, "GET_LISTING", key, start, err)
		return nil, false, storeError("get", key, err)
	}

	var files []*domain.StoredFile
	if err := json.Unmarshal(data, &files); err != nil {
		logRedisOperation(r.logger, "GET_LISTING", key, start, err)
		return nil, false, fmt.Errorf("failed to unmarshal listing for key %s: %w", key, err)
	}

	logRedisOperation(r.logger, "GET_LISTING", key, start, nil)
	return files, true, nil
}

func (r *RedisListingCache) Set(ctx context.Context, folderID string, files []*domain.StoredFile) error {
	start := time.Now()
	key := BuildListingKey(folderID)

	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to marshal listing for key %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		logRedisOperation(r.logger, "SET_LISTING", key, start, err)
		return storeError("set", key, err)
	}

	logRedisOperation(r.logger, "SET_LISTING", key, start, nil)
	return nil
}

func (r *RedisListingCache) Invalidate(ctx context.Context, folderID string) error {
	start := time.Now()
	key := BuildListingKey(folderID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		logRedisOperation(r.logger, "DEL_LISTING", key, start, err)
		return storeError("delete", key, err)
	}

	logRedisOperation(r.logger, "DEL_LISTING", key, start, nil)
	return nil
}

// Clear remove apenas as chaves de listagem; contadores e cooldowns ficam intactos
func (r *RedisListingCache) Clear(ctx context.Context) (int, error) {
	start := time.Now()
	pattern := ListingKeyPrefix + "*"

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logRedisOperation(r.logger, "CLEAR_LISTING", pattern, start, err)
		return 0, storeError("scan", pattern, err)
	}

	if len(keys) == 0 {
		logRedisOperation(r.logger, "CLEAR_LISTING", pattern, start, nil)
		return 0, nil
	}

	deleted, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		logRedisOperation(r.logger, "CLEAR_LISTING", pattern, start, err)
		return 0, storeError("delete", pattern, err)
	}

	logRedisOperation(r.logger, "CLEAR_LISTING", pattern, start, nil)
	return int(deleted), nil
}
