package storage

import (
	"context"
	"sync"
	"time"

	"upload-gate/internal/domain"
	"upload-gate/internal/metrics"
)

// counterEntry é um contador de janela fixa
type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore implementa a interface domain.CounterStore usando memória
type MemoryCounterStore struct {
	counters  map[string]*counterEntry
	cooldowns map[string]time.Time // chave -> cooldown até
	mutex     sync.RWMutex
	logger    domain.Logger
	now       func() time.Time
	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCounterStore cria uma nova instância do MemoryCounterStore
func NewMemoryCounterStore(logger domain.Logger) *MemoryCounterStore {
	return NewMemoryCounterStoreWithClock(logger, time.Now)
}

// NewMemoryCounterStoreWithClock cria o store com um relógio injetável
func NewMemoryCounterStoreWithClock(logger domain.Logger, clock func() time.Time) *MemoryCounterStore {
	storage := &MemoryCounterStore{
		counters:  make(map[string]*counterEntry),
		cooldowns: make(map[string]time.Time),
		logger:    logger,
		now:       clock,
		stop:      make(chan struct{}),
	}

	// Inicia goroutine de limpeza
	go storage.cleanup()

	if logger != nil {
		logger.Info("Memory counter storage initialized", nil)
	}

	return storage
}

// Increment incrementa o contador e arma a expiração no primeiro incremento da janela
func (m *MemoryCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()

	entry, exists := m.counters[key]
	if !exists || !now.Before(entry.expiresAt) {
		// Janela nova: a expiração é fixada aqui e não é renovada
		entry = &counterEntry{expiresAt: now.Add(window)}
		m.counters[key] = entry
	}

	entry.count++

	m.logStorageOperation("INCREMENT", key, start, nil)
	return entry.count, entry.expiresAt.Sub(now), nil
}

// Peek lê o contador atual sem alterá-lo
func (m *MemoryCounterStore) Peek(ctx context.Context, key string) (int64, time.Duration, error) {
	start := time.Now()

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	now := m.now()

	entry, exists := m.counters[key]
	if !exists || !now.Before(entry.expiresAt) {
		m.logStorageOperation("PEEK", key, start, nil)
		return 0, 0, nil
	}

	m.logStorageOperation("PEEK", key, start, nil)
	return entry.count, entry.expiresAt.Sub(now), nil
}

// SetCooldown grava o cooldown da chave
func (m *MemoryCounterStore) SetCooldown(ctx context.Context, key string, duration time.Duration) error {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cooldowns[key] = m.now().Add(duration)

	m.logStorageOperation("SET_COOLDOWN", key, start, nil)
	return nil
}

// CooldownRemaining retorna quanto falta para o cooldown expirar
func (m *MemoryCounterStore) CooldownRemaining(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	until, exists := m.cooldowns[key]
	remaining := time.Duration(0)
	if exists {
		if left := until.Sub(m.now()); left > 0 {
			remaining = left
		}
	}

	m.logStorageOperation("COOLDOWN_TTL", key, start, nil)
	return remaining, nil
}

// Health verifica se o storage está saudável
func (m *MemoryCounterStore) Health(ctx context.Context) error {
	m.mutex.RLock()
	countersSize := len(m.counters)
	cooldownsSize := len(m.cooldowns)
	m.mutex.RUnlock()

	if m.logger != nil {
		m.logger.Debug("Memory storage health check", map[string]interface{}{
			"counter_entries":  countersSize,
			"cooldown_entries": cooldownsSize,
		})
	}
	return nil
}

// Close para a limpeza e descarta os dados
func (m *MemoryCounterStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)

		m.mutex.Lock()
		m.counters = make(map[string]*counterEntry)
		m.cooldowns = make(map[string]time.Time)
		m.mutex.Unlock()

		if m.logger != nil {
			m.logger.Info("Memory counter storage closed", nil)
		}
	})
	return nil
}

// GetStats retorna estatísticas do storage em memória
func (m *MemoryCounterStore) GetStats() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return map[string]interface{}{
		"counter_entries":  len(m.counters),
		"cooldown_entries": len(m.cooldowns),
		"type":             "memory",
	}
}

// cleanup remove entradas expiradas periodicamente
func (m *MemoryCounterStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpiredEntries()
		case <-m.stop:
			return
		}
	}
}

// cleanupExpiredEntries remove contadores e cooldowns expirados
func (m *MemoryCounterStore) cleanupExpiredEntries() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	removedCooldowns := 0
	removedCounters := 0

	for key, until := range m.cooldowns {
		if !now.Before(until) {
			delete(m.cooldowns, key)
			removedCooldowns++
		}
	}

	for key, entry := range m.counters {
		if !now.Before(entry.expiresAt) {
			delete(m.counters, key)
			removedCounters++
		}
	}

	if (removedCooldowns > 0 || removedCounters > 0) && m.logger != nil {
		m.logger.Debug("Memory storage cleanup completed", map[string]interface{}{
			"removed_cooldowns": removedCooldowns,
			"removed_counters":  removedCounters,
		})
	}
}

// logStorageOperation registra operações de storage
func (m *MemoryCounterStore) logStorageOperation(operation, key string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.ObserveStorageOperation("memory", operation, elapsed.Seconds(), err)

	if m.logger == nil {
		return
	}

	m.logger.Debug("Storage operation completed", map[string]interface{}{
		"operation": operation,
		"key":       key,
		"latency":   elapsed.Seconds() * 1000,
	})
}
