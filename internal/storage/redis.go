package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"upload-gate/internal/domain"
	"upload-gate/internal/metrics"

	"github.com/go-redis/redis/v8"
)

// incrementScript faz INCR + PEXPIRE atomicamente.
// A expiração só é armada no primeiro incremento da janela (janela fixa).
var incrementScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	local ttl = redis.call('PTTL', KEYS[1])

	-- Janela nova (ou chave sem expiração): arma o TTL
	if count == 1 or ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end

	return {count, ttl}
`)

// NewRedisClient cria o cliente Redis e testa a conexão
func NewRedisClient(host, port, password string, db int, logger domain.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,

		// Configurações de performance
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger != nil {
		logger.Info("Redis connection established", map[string]interface{}{
			"host": host,
			"port": port,
			"db":   db,
		})
	}

	return rdb, nil
}

// RedisCounterStore implementa a interface domain.CounterStore usando Redis
type RedisCounterStore struct {
	client redis.Cmdable
	logger domain.Logger
}

// NewRedisCounterStore cria uma nova instância do RedisCounterStore
func NewRedisCounterStore(client redis.Cmdable, logger domain.Logger) *RedisCounterStore {
	return &RedisCounterStore{
		client: client,
		logger: logger,
	}
}

// Increment incrementa o contador da janela via script Lua
func (r *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	start := time.Now()

	result, err := incrementScript.Run(ctx, r.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		r.logStorageOperation("INCREMENT", key, start, err)
		return 0, 0, storeError("increment", key, err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		err := fmt.Errorf("invalid result format: %v", result)
		r.logStorageOperation("INCREMENT", key, start, err)
		return 0, 0, storeError("increment", key, err)
	}

	count, err := strconv.ParseInt(fmt.Sprint(resultSlice[0]), 10, 64)
	if err != nil {
		r.logStorageOperation("INCREMENT", key, start, err)
		return 0, 0, storeError("increment", key, err)
	}

	ttlMs, err := strconv.ParseInt(fmt.Sprint(resultSlice[1]), 10, 64)
	if err != nil {
		r.logStorageOperation("INCREMENT", key, start, err)
		return 0, 0, storeError("increment", key, err)
	}

	r.logStorageOperation("INCREMENT", key, start, nil)
	return count, time.Duration(ttlMs) * time.Millisecond, nil
}

// Peek lê o contador e o TTL restante sem alterá-los
func (r *RedisCounterStore) Peek(ctx context.Context, key string) (int64, time.Duration, error) {
	start := time.Now()

	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logStorageOperation("PEEK", key, start, nil)
			return 0, 0, nil
		}
		r.logStorageOperation("PEEK", key, start, err)
		return 0, 0, storeError("peek", key, err)
	}

	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		r.logStorageOperation("PEEK", key, start, err)
		return 0, 0, storeError("peek", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}

	r.logStorageOperation("PEEK", key, start, nil)
	return count, ttl, nil
}

// SetCooldown grava o flag de cooldown com TTL
func (r *RedisCounterStore) SetCooldown(ctx context.Context, key string, duration time.Duration) error {
	start := time.Now()

	if err := r.client.Set(ctx, key, "1", duration).Err(); err != nil {
		r.logStorageOperation("SET_COOLDOWN", key, start, err)
		return storeError("set cooldown", key, err)
	}

	r.logStorageOperation("SET_COOLDOWN", key, start, nil)
	return nil
}

// CooldownRemaining lê o TTL do flag de cooldown
func (r *RedisCounterStore) CooldownRemaining(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()

	// PTTL retorna valores negativos para chave ausente ou sem expiração
	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		r.logStorageOperation("COOLDOWN_TTL", key, start, err)
		return 0, storeError("read cooldown", key, err)
	}

	r.logStorageOperation("COOLDOWN_TTL", key, start, nil)
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// Health verifica se o storage está saudável
func (r *RedisCounterStore) Health(ctx context.Context) error {
	start := time.Now()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logStorageOperation("HEALTH", "ping", start, err)
		return fmt.Errorf("redis health check failed: %w", err)
	}

	r.logStorageOperation("HEALTH", "ping", start, nil)
	return nil
}

// Close fecha a conexão com o storage
func (r *RedisCounterStore) Close() error {
	if client, ok := r.client.(*redis.Client); ok {
		if err := client.Close(); err != nil {
			if r.logger != nil {
				r.logger.Error("Failed to close Redis connection", err, nil)
			}
			return err
		}
		if r.logger != nil {
			r.logger.Info("Redis connection closed", nil)
		}
	}
	return nil
}

// logStorageOperation registra operações de storage
func (r *RedisCounterStore) logStorageOperation(operation, key string, start time.Time, err error) {
	logRedisOperation(r.logger, operation, key, start, err)
}

func logRedisOperation(logger domain.Logger, operation, key string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.ObserveStorageOperation("redis", operation, elapsed.Seconds(), err)

	if logger == nil {
		return
	}

	fields := map[string]interface{}{
		"operation": operation,
		"key":       key,
		"latency":   elapsed.Seconds() * 1000,
	}
	if err != nil {
		logger.Error("Storage operation failed", err, fields)
		return
	}
	logger.Debug("Storage operation completed", fields)
}

// storeError marca o erro como indisponibilidade do store
func storeError(operation, key string, err error) error {
	return fmt.Errorf("failed to %s key %s: %w: %w", operation, key, domain.ErrStoreUnavailable, err)
}
