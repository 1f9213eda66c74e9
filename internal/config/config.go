package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config representa todas as configurações da aplicação
type Config struct {
	// Storage Configuration
	StorageType   string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	StoreTimeout  time.Duration

	// Upload Configuration
	UploadDir        string
	UploadConfigFile string
	RootFolderID     string
	MaxRequestBodyMB int

	// Cache Configuration
	ConfigCacheTTL  time.Duration
	ListingCacheTTL time.Duration

	// Admin Configuration
	AdminPassword     string
	AdminPasswordHash string
	AdminRateLimit    int // escritas por minuto por IP

	// Server Configuration
	ServerPort string
	GinMode    string

	// Logging Configuration
	LogLevel  string
	LogFormat string
}

// ConfigLoader carrega a configuração de ambiente
type ConfigLoader struct {
	config *Config
}

// NewConfigLoader cria uma nova instância do ConfigLoader
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

// LoadConfig carrega as configurações do .env e do ambiente
func (c *ConfigLoader) LoadConfig() (*Config, error) {
	// Carrega o arquivo .env se existir
	if err := godotenv.Load(); err != nil {
		// Se não encontrar .env, continua com variáveis do sistema
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	config, err := c.loadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	c.config = config
	return config, nil
}

// Reload recarrega todas as configurações
func (c *ConfigLoader) Reload() error {
	_, err := c.LoadConfig()
	return err
}

// GetConfig retorna a configuração atual
func (c *ConfigLoader) GetConfig() *Config {
	return c.config
}

// loadFromEnv carrega configurações das variáveis de ambiente
func (c *ConfigLoader) loadFromEnv() (*Config, error) {
	config := &Config{
		StorageType:   strings.ToLower(getEnvWithDefault("STORAGE_TYPE", "memory")),
		RedisHost:     getEnvWithDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvWithDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvWithDefault("REDIS_PASSWORD", ""),

		UploadDir:        getEnvWithDefault("UPLOAD_DIR", "data/files"),
		UploadConfigFile: getEnvWithDefault("UPLOAD_CONFIG_FILE", "data/upload_config.json"),
		RootFolderID:     getEnvWithDefault("ROOT_FOLDER_ID", "root"),

		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		ServerPort: getEnvWithDefault("SERVER_PORT", "8080"),
		GinMode:    getEnvWithDefault("GIN_MODE", "debug"),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "json"),
	}

	var err error

	if config.RedisDB, err = strconv.Atoi(getEnvWithDefault("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}

	if config.MaxRequestBodyMB, err = strconv.Atoi(getEnvWithDefault("MAX_REQUEST_BODY_MB", "512")); err != nil {
		return nil, fmt.Errorf("invalid MAX_REQUEST_BODY_MB value: %w", err)
	}

	if config.AdminRateLimit, err = strconv.Atoi(getEnvWithDefault("ADMIN_RATE_LIMIT", "10")); err != nil {
		return nil, fmt.Errorf("invalid ADMIN_RATE_LIMIT value: %w", err)
	}

	if config.StoreTimeout, err = time.ParseDuration(getEnvWithDefault("STORE_TIMEOUT", "3s")); err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT value: %w", err)
	}

	if config.ConfigCacheTTL, err = time.ParseDuration(getEnvWithDefault("CONFIG_CACHE_TTL", "5s")); err != nil {
		return nil, fmt.Errorf("invalid CONFIG_CACHE_TTL value: %w", err)
	}

	if config.ListingCacheTTL, err = time.ParseDuration(getEnvWithDefault("LISTING_CACHE_TTL", "5m")); err != nil {
		return nil, fmt.Errorf("invalid LISTING_CACHE_TTL value: %w", err)
	}

	// Valida configurações obrigatórias
	if err := c.validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateConfig valida se as configurações são válidas
func (c *ConfigLoader) validateConfig(config *Config) error {
	if config.StorageType != "memory" && config.StorageType != "redis" {
		return fmt.Errorf("STORAGE_TYPE must be 'memory' or 'redis', got: %s", config.StorageType)
	}

	if config.RedisDB < 0 || config.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}

	if config.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be greater than 0")
	}

	// CONFIG_CACHE_TTL=0 desliga o cache de configuração
	if config.ConfigCacheTTL < 0 {
		return fmt.Errorf("CONFIG_CACHE_TTL must not be negative")
	}

	if config.ListingCacheTTL <= 0 {
		return fmt.Errorf("LISTING_CACHE_TTL must be greater than 0")
	}

	if config.MaxRequestBodyMB <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_MB must be greater than 0")
	}

	if config.AdminRateLimit <= 0 {
		return fmt.Errorf("ADMIN_RATE_LIMIT must be greater than 0")
	}

	if config.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR cannot be empty")
	}

	return nil
}

// getEnvWithDefault retorna o valor da variável de ambiente ou um valor padrão
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
