package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"upload-gate/internal/domain"
	"upload-gate/internal/metrics"
)

// AdminConfigService lê e altera a política de upload.
// A leitura é pública e nunca falha; a escrita exige o segredo do admin.
type AdminConfigService struct {
	store   domain.ConfigStore
	auth    domain.Authenticator
	limiter domain.RateLimiter
	logger  domain.Logger
}

// NewAdminConfigService cria uma nova instância do serviço
func NewAdminConfigService(
	store domain.ConfigStore,
	auth domain.Authenticator,
	limiter domain.RateLimiter,
	logger domain.Logger,
) *AdminConfigService {
	return &AdminConfigService{
		store:   store,
		auth:    auth,
		limiter: limiter,
		logger:  logger,
	}
}

// Read retorna a configuração atual ou os padrões quando ausente ou ilegível
func (s *AdminConfigService) Read(ctx context.Context) *domain.UploadConfig {
	config, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn("Failed to read upload config, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
		return domain.DefaultUploadConfig()
	}

	if config == nil {
		return domain.DefaultUploadConfig()
	}

	return config
}

// Write autentica, valida e persiste a configuração.
// Retorna domain.ErrUnauthorized, *domain.ConfigValidationError ou erro do store.
func (s *AdminConfigService) Write(ctx context.Context, secret string, raw json.RawMessage) (*domain.UploadConfig, error) {
	if !s.auth.Authenticate(secret) {
		metrics.ConfigWritesTotal.WithLabelValues("unauthorized").Inc()
		s.logger.Warn("Rejected admin config write: invalid secret", nil)
		return nil, domain.ErrUnauthorized
	}

	config, err := ParseUploadConfig(raw)
	if err != nil {
		metrics.ConfigWritesTotal.WithLabelValues("invalid").Inc()
		s.logger.Info("Rejected admin config write: invalid document", map[string]interface{}{
			"reason": err.Error(),
		})
		return nil, err
	}

	if err := s.store.Set(ctx, config); err != nil {
		metrics.ConfigWritesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Failed to persist upload config", err, nil)
		return nil, fmt.Errorf("failed to persist upload config: %w", err)
	}

	metrics.ConfigWritesTotal.WithLabelValues("success").Inc()
	s.logger.Info("Upload config updated", map[string]interface{}{
		"max_uploads_per_minute": config.MaxUploadsPerMinute,
		"max_uploads_per_hour":   config.MaxUploadsPerHour,
		"max_file_size_mb":       config.MaxFileSize,
		"cooldown_after_limit":   config.CooldownAfterLimit,
		"blocked_extensions":     len(config.BlockedExtensions),
	})

	return config, nil
}

// RateStatus expõe o estado de rate limit de uma identidade para o admin
func (s *AdminConfigService) RateStatus(ctx context.Context, secret, identity string) (*domain.RateStatus, error) {
	if !s.auth.Authenticate(secret) {
		return nil, domain.ErrUnauthorized
	}

	return s.limiter.Status(ctx, identity)
}

// uploadConfigInput usa ponteiros para distinguir campo ausente de zero
type uploadConfigInput struct {
	MaxUploadsPerMinute *float64 `json:"maxUploadsPerMinute"`
	MaxUploadsPerHour   *float64 `json:"maxUploadsPerHour"`
	MaxFileSize         *float64 `json:"maxFileSize"`
	CooldownAfterLimit  *float64 `json:"cooldownAfterLimit"`
	BlockedExtensions   []string `json:"blockedExtensions"`
}

// ParseUploadConfig decodifica e valida um documento de configuração.
// O documento é aceito inteiro ou rejeitado; nunca parcialmente.
func ParseUploadConfig(raw json.RawMessage) (*domain.UploadConfig, error) {
	if len(raw) == 0 {
		return nil, &domain.ConfigValidationError{Field: "config", Reason: "is required"}
	}

	var input uploadConfigInput
	if err := json.Unmarshal(raw, &input); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, &domain.ConfigValidationError{Field: typeErr.Field, Reason: "has an invalid type"}
		}
		return nil, &domain.ConfigValidationError{Field: "config", Reason: "must be a JSON object"}
	}

	perMinute, err := positiveInt("maxUploadsPerMinute", input.MaxUploadsPerMinute)
	if err != nil {
		return nil, err
	}

	perHour, err := positiveInt("maxUploadsPerHour", input.MaxUploadsPerHour)
	if err != nil {
		return nil, err
	}

	if input.MaxFileSize == nil {
		return nil, &domain.ConfigValidationError{Field: "maxFileSize", Reason: "is required"}
	}
	if *input.MaxFileSize <= 0 {
		return nil, &domain.ConfigValidationError{Field: "maxFileSize", Reason: "must be greater than 0"}
	}

	cooldown, err := positiveInt("cooldownAfterLimit", input.CooldownAfterLimit)
	if err != nil {
		return nil, err
	}

	extensions := input.BlockedExtensions
	if extensions == nil {
		extensions = []string{}
	}
	// Entrada vazia casaria com qualquer nome e bloquearia todos os uploads
	for i, ext := range extensions {
		if strings.TrimSpace(ext) == "" {
			return nil, &domain.ConfigValidationError{
				Field:  fmt.Sprintf("blockedExtensions[%d]", i),
				Reason: "must not be empty",
			}
		}
	}

	return &domain.UploadConfig{
		MaxUploadsPerMinute: perMinute,
		MaxUploadsPerHour:   perHour,
		MaxFileSize:         *input.MaxFileSize,
		CooldownAfterLimit:  cooldown,
		BlockedExtensions:   extensions,
	}, nil
}

func positiveInt(field string, value *float64) (int, error) {
	if value == nil {
		return 0, &domain.ConfigValidationError{Field: field, Reason: "is required"}
	}

	v := *value
	if v != math.Trunc(v) {
		return 0, &domain.ConfigValidationError{Field: field, Reason: "must be an integer"}
	}
	if v <= 0 {
		return 0, &domain.ConfigValidationError{Field: field, Reason: "must be greater than 0"}
	}
	if v > math.MaxInt32 {
		return 0, &domain.ConfigValidationError{Field: field, Reason: "is too large"}
	}

	return int(v), nil
}
