package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"upload-gate/internal/domain"
	"upload-gate/internal/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/google/renameio"
	"github.com/jellydator/ttlcache/v3"
)

// UploadConfigKey é a chave Redis do documento de configuração
const UploadConfigKey = "upload_config"

// RedisConfigStore guarda a configuração de upload no Redis
type RedisConfigStore struct {
	client redis.Cmdable
	key    string
	logger domain.Logger
}

// NewRedisConfigStore cria uma nova instância do RedisConfigStore
func NewRedisConfigStore(client redis.Cmdable, logger domain.Logger) *RedisConfigStore {
	return &RedisConfigStore{
		client: client,
		key:    UploadConfigKey,
		logger: logger,
	}
}

// Get retorna a configuração gravada ou nil se não houver
func (r *RedisConfigStore) Get(ctx context.Context) (*domain.UploadConfig, error) {
	start := time.Now()

	result, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logRedisOperation(r.logger, "GET_CONFIG", r.key, start, nil)
			return nil, nil
		}
		logRedisOperation(r.logger, "GET_CONFIG", r.key, start, err)
		return nil, storeError("get", r.key, err)
	}

	var config domain.UploadConfig
	if err := json.Unmarshal(result, &config); err != nil {
		logRedisOperation(r.logger, "GET_CONFIG", r.key, start, err)
		return nil, fmt.Errorf("failed to unmarshal upload config: %w", err)
	}

	logRedisOperation(r.logger, "GET_CONFIG", r.key, start, nil)
	return &config, nil
}

// Set grava a configuração sem TTL
func (r *RedisConfigStore) Set(ctx context.Context, config *domain.UploadConfig) error {
	start := time.Now()

	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal upload config: %w", err)
	}

	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		logRedisOperation(r.logger, "SET_CONFIG", r.key, start, err)
		return storeError("set", r.key, err)
	}

	logRedisOperation(r.logger, "SET_CONFIG", r.key, start, nil)
	return nil
}

// FileConfigStore guarda a configuração em um arquivo JSON (durável entre reinícios)
type FileConfigStore struct {
	path   string
	mutex  sync.Mutex
	logger domain.Logger
}

// NewFileConfigStore cria uma nova instância do FileConfigStore
func NewFileConfigStore(path string, logger domain.Logger) *FileConfigStore {
	return &FileConfigStore{
		path:   path,
		logger: logger,
	}
}

// Get lê o arquivo; arquivo ausente significa "sem configuração"
func (f *FileConfigStore) Get(ctx context.Context) (*domain.UploadConfig, error) {
	start := time.Now()

	f.mutex.Lock()
	defer f.mutex.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.ObserveStorageOperation("file", "GET_CONFIG", time.Since(start).Seconds(), nil)
			return nil, nil
		}
		metrics.ObserveStorageOperation("file", "GET_CONFIG", time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("failed to read upload config file: %w", err)
	}

	var config domain.UploadConfig
	if err := json.Unmarshal(data, &config); err != nil {
		metrics.ObserveStorageOperation("file", "GET_CONFIG", time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("failed to parse upload config file: %w", err)
	}

	metrics.ObserveStorageOperation("file", "GET_CONFIG", time.Since(start).Seconds(), nil)
	return &config, nil
}

// Set grava o arquivo de forma atômica (write + rename)
func (f *FileConfigStore) Set(ctx context.Context, config *domain.UploadConfig) error {
	start := time.Now()

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal upload config: %w", err)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		metrics.ObserveStorageOperation("file", "SET_CONFIG", time.Since(start).Seconds(), err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := renameio.WriteFile(f.path, data, 0o644); err != nil {
		metrics.ObserveStorageOperation("file", "SET_CONFIG", time.Since(start).Seconds(), err)
		return fmt.Errorf("failed to write upload config file: %w", err)
	}

	metrics.ObserveStorageOperation("file", "SET_CONFIG", time.Since(start).Seconds(), nil)
	if f.logger != nil {
		f.logger.Debug("Upload config file written", map[string]interface{}{
			"path": f.path,
		})
	}
	return nil
}

// MemoryConfigStore guarda a configuração em memória
type MemoryConfigStore struct {
	mutex  sync.RWMutex
	config *domain.UploadConfig
}

// NewMemoryConfigStore cria uma nova instância do MemoryConfigStore
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{}
}

// Get retorna uma cópia da configuração ou nil
func (m *MemoryConfigStore) Get(ctx context.Context) (*domain.UploadConfig, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.config.Clone(), nil
}

// Set substitui a configuração
func (m *MemoryConfigStore) Set(ctx context.Context, config *domain.UploadConfig) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.config = config.Clone()
	return nil
}

// cachedConfig permite cachear também a ausência de configuração
type cachedConfig struct {
	config *domain.UploadConfig
}

const cachedConfigKey = "config"

// CachedConfigStore mantém a última leitura do ConfigStore por um TTL curto.
// Escritas feitas por esta instância invalidam o cache na hora.
type CachedConfigStore struct {
	inner domain.ConfigStore
	cache *ttlcache.Cache[string, cachedConfig]
}

// NewCachedConfigStore envolve o store; ttl <= 0 devolve o próprio store
func NewCachedConfigStore(inner domain.ConfigStore, ttl time.Duration) domain.ConfigStore {
	if ttl <= 0 {
		return inner
	}

	return &CachedConfigStore{
		inner: inner,
		cache: ttlcache.New[string, cachedConfig](
			ttlcache.WithTTL[string, cachedConfig](ttl),
			ttlcache.WithDisableTouchOnHit[string, cachedConfig](),
		),
	}
}

// Get lê do cache ou do store; erros não são cacheados
func (c *CachedConfigStore) Get(ctx context.Context) (*domain.UploadConfig, error) {
	if item := c.cache.Get(cachedConfigKey); item != nil {
		return item.Value().config.Clone(), nil
	}

	config, err := c.inner.Get(ctx)
	if err != nil {
		return nil, err
	}

	c.cache.Set(cachedConfigKey, cachedConfig{config: config.Clone()}, ttlcache.DefaultTTL)
	return config, nil
}

// Set grava no store e descarta o valor em cache
func (c *CachedConfigStore) Set(ctx context.Context, config *domain.UploadConfig) error {
	if err := c.inner.Set(ctx, config); err != nil {
		return err
	}
	c.cache.Delete(cachedConfigKey)
	return nil
}
