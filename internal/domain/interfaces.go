package domain

import (
	"context"
	"io"
	"time"
)

// CounterStore armazena os contadores por janela e o flag de cooldown.
// Qualquer key-value com incremento atômico e TTL por chave serve.
type CounterStore interface {
	// Increment incrementa atomicamente a chave e, se for o primeiro incremento
	// de uma janela nova, arma a expiração. Retorna o valor pós-incremento e o
	// tempo restante até a janela expirar.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)

	// Peek lê o contador sem alterá-lo
	Peek(ctx context.Context, key string) (int64, time.Duration, error)

	// SetCooldown grava o flag de cooldown com a duração informada
	SetCooldown(ctx context.Context, key string, duration time.Duration) error

	// CooldownRemaining retorna o tempo restante de cooldown (zero se ausente ou expirado)
	CooldownRemaining(ctx context.Context, key string) (time.Duration, error)

	// Health verifica se o storage está saudável
	Health(ctx context.Context) error

	// Close fecha a conexão com o storage
	Close() error
}

// ConfigStore guarda o documento de política de upload.
// Get retorna (nil, nil) quando não há documento; quem chama decide o fallback.
type ConfigStore interface {
	Get(ctx context.Context) (*UploadConfig, error)
	Set(ctx context.Context, config *UploadConfig) error
}

// ListingCache guarda listagens de diretório por pasta
type ListingCache interface {
	Get(ctx context.Context, folderID string) ([]*StoredFile, bool, error)
	Set(ctx context.Context, folderID string, files []*StoredFile) error
	Invalidate(ctx context.Context, folderID string) error
	Clear(ctx context.Context) (int, error)
}

// ObjectStorage é o backend que recebe os bytes dos uploads
type ObjectStorage interface {
	Create(ctx context.Context, meta *ObjectMeta, content io.Reader) (*StoredFile, error)
	List(ctx context.Context, parentID string) ([]*StoredFile, error)
	ListAll(ctx context.Context) ([]*StoredFile, error)
	Open(ctx context.Context, id string) (*StoredFile, io.ReadCloser, error)
}

// RateLimiter decide se uma identidade ainda pode fazer upload
type RateLimiter interface {
	Check(ctx context.Context, identity string, config *UploadConfig) (*RateDecision, error)
	Status(ctx context.Context, identity string) (*RateStatus, error)
}

// FileValidator valida os metadados de um único arquivo.
// Retorna nil quando válido ou *FileValidationError.
type FileValidator interface {
	Validate(name string, size int64, config *UploadConfig) error
}

// Authenticator valida o segredo do admin
type Authenticator interface {
	Authenticate(secret string) bool
}

// Logger define a interface para logging estruturado
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
	WithContext(ctx context.Context) Logger
}
