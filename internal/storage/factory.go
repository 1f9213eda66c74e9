package storage

import (
	"fmt"
	"strings"
	"time"

	"upload-gate/internal/domain"

	"github.com/go-redis/redis/v8"
)

// StorageType define os tipos de storage disponíveis
type StorageType string

const (
	RedisStorageType  StorageType = "redis"
	MemoryStorageType StorageType = "memory"
)

// StorageConfig contém configurações para criação dos stores
type StorageConfig struct {
	Type            StorageType
	RedisConfig     *RedisConfig
	ConfigFilePath  string // usado pelo tipo memory para manter a política entre reinícios
	ConfigCacheTTL  time.Duration
	ListingCacheTTL time.Duration
}

// RedisConfig contém configurações específicas do Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	Database int
}

// Backends agrupa os stores criados pela factory
type Backends struct {
	Counters domain.CounterStore
	Config   domain.ConfigStore
	Listings domain.ListingCache
	closers  []func() error
}

// Close fecha todos os stores, retornando o primeiro erro
func (b *Backends) Close() error {
	var firstErr error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StorageFactory cria instâncias de storage seguindo Strategy Pattern
type StorageFactory struct{}

// NewStorageFactory cria uma nova instância da factory
func NewStorageFactory() *StorageFactory {
	return &StorageFactory{}
}

// CreateBackends cria os stores baseados na configuração
func (f *StorageFactory) CreateBackends(config *StorageConfig, logger domain.Logger) (*Backends, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	switch strings.ToLower(string(config.Type)) {
	case string(RedisStorageType):
		return f.createRedisBackends(config, logger)
	default:
		return f.createMemoryBackends(config, logger), nil
	}
}

// createRedisBackends cria os stores Redis compartilhando um único cliente
func (f *StorageFactory) createRedisBackends(config *StorageConfig, logger domain.Logger) (*Backends, error) {
	rc := config.RedisConfig

	client, err := NewRedisClient(rc.Host, rc.Port, rc.Password, rc.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis storage: %w", err)
	}

	backends := newRedisBackends(client, config, logger)

	if logger != nil {
		logger.Info("Redis storage created successfully", map[string]interface{}{
			"host":     rc.Host,
			"port":     rc.Port,
			"database": rc.Database,
		})
	}

	return backends, nil
}

func newRedisBackends(client *redis.Client, config *StorageConfig, logger domain.Logger) *Backends {
	counters := NewRedisCounterStore(client, logger)

	return &Backends{
		Counters: counters,
		Config:   NewCachedConfigStore(NewRedisConfigStore(client, logger), config.ConfigCacheTTL),
		Listings: NewRedisListingCache(client, config.ListingCacheTTL, logger),
		closers:  []func() error{counters.Close},
	}
}

// createMemoryBackends cria os stores em memória (configuração em arquivo)
func (f *StorageFactory) createMemoryBackends(config *StorageConfig, logger domain.Logger) *Backends {
	counters := NewMemoryCounterStore(logger)
	listings := NewMemoryListingCache(config.ListingCacheTTL)

	var configStore domain.ConfigStore = NewMemoryConfigStore()
	if config.ConfigFilePath != "" {
		configStore = NewFileConfigStore(config.ConfigFilePath, logger)
	}

	if logger != nil {
		logger.Info("Memory storage created successfully", map[string]interface{}{
			"config_file": config.ConfigFilePath,
		})
	}

	return &Backends{
		Counters: counters,
		Config:   NewCachedConfigStore(configStore, config.ConfigCacheTTL),
		Listings: listings,
		closers:  []func() error{counters.Close, listings.Close},
	}
}

// GetSupportedTypes retorna os tipos de storage suportados
func (f *StorageFactory) GetSupportedTypes() []StorageType {
	return []StorageType{RedisStorageType, MemoryStorageType}
}

// ValidateConfig valida uma configuração de storage
func (f *StorageFactory) ValidateConfig(config *StorageConfig) error {
	if config == nil {
		return fmt.Errorf("storage config cannot be nil")
	}

	if config.ListingCacheTTL <= 0 {
		return fmt.Errorf("listing cache TTL must be greater than 0")
	}

	switch strings.ToLower(string(config.Type)) {
	case string(RedisStorageType):
		return f.validateRedisConfig(config.RedisConfig)
	case string(MemoryStorageType):
		return nil
	default:
		return fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// validateRedisConfig valida configuração do Redis
func (f *StorageFactory) validateRedisConfig(config *RedisConfig) error {
	if config == nil {
		return fmt.Errorf("redis config cannot be nil")
	}

	if config.Host == "" {
		return fmt.Errorf("redis host cannot be empty")
	}

	if config.Port == "" {
		return fmt.Errorf("redis port cannot be empty")
	}

	if config.Database < 0 || config.Database > 15 {
		return fmt.Errorf("redis database must be between 0 and 15, got: %d", config.Database)
	}

	return nil
}

// BuildStorageConfigFromEnv constrói configuração de storage a partir de variáveis de ambiente
func BuildStorageConfigFromEnv(storageType, redisHost, redisPort, redisPassword string, redisDB int, configFile string, configTTL, listingTTL time.Duration) *StorageConfig {
	config := &StorageConfig{
		Type:            StorageType(strings.ToLower(storageType)),
		ConfigFilePath:  configFile,
		ConfigCacheTTL:  configTTL,
		ListingCacheTTL: listingTTL,
	}

	if config.Type == RedisStorageType {
		config.RedisConfig = &RedisConfig{
			Host:     redisHost,
			Port:     redisPort,
			Password: redisPassword,
			Database: redisDB,
		}
	}

	return config
}
