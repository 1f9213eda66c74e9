package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"upload-gate/internal/domain"
)

// RateLimiterService implementa a decisão de rate limit de uploads por identidade.
// Todo o estado mutável fica no CounterStore; o serviço é só lógica.
type RateLimiterService struct {
	store  domain.CounterStore
	logger domain.Logger
}

// NewRateLimiterService cria uma nova instância do serviço
func NewRateLimiterService(store domain.CounterStore, logger domain.Logger) *RateLimiterService {
	return &RateLimiterService{
		store:  store,
		logger: logger,
	}
}

// Check aplica, em ordem: cooldown, janela de minuto e janela de hora.
// Erros do store são devolvidos ao chamador (política fail-closed).
func (s *RateLimiterService) Check(ctx context.Context, identity string, config *domain.UploadConfig) (*domain.RateDecision, error) {
	cooldownKey := BuildCooldownKey(identity)

	// Cooldown é autoritativo: nenhum contador é tocado
	remaining, err := s.store.CooldownRemaining(ctx, cooldownKey)
	if err != nil {
		s.logger.Error("Failed to check cooldown", err, map[string]interface{}{
			"storage_key": cooldownKey,
		})
		return nil, fmt.Errorf("failed to check cooldown: %w", err)
	}

	if remaining > 0 {
		retryAfter := ceilSeconds(remaining)

		s.logger.Info("Upload denied by cooldown", map[string]interface{}{
			"identity":    identity,
			"retry_after": retryAfter,
		})

		return &domain.RateDecision{
			Allowed:    false,
			Reason:     domain.DenyCooldown,
			Message:    fmt.Sprintf("Too many uploads. Please wait %d seconds.", retryAfter),
			RetryAfter: retryAfter,
		}, nil
	}

	minuteKey := BuildWindowKey(identity, domain.MinuteWindow)
	minuteCount, _, err := s.store.Increment(ctx, minuteKey, domain.MinuteWindow.Duration())
	if err != nil {
		s.logger.Error("Failed to increment minute counter", err, map[string]interface{}{
			"storage_key": minuteKey,
		})
		return nil, fmt.Errorf("failed to increment minute counter: %w", err)
	}

	// O incremento que estoura a janela continua contando
	if minuteCount > int64(config.MaxUploadsPerMinute) {
		cooldown := time.Duration(config.CooldownAfterLimit) * time.Second
		if err := s.store.SetCooldown(ctx, cooldownKey, cooldown); err != nil {
			s.logger.Error("Failed to set cooldown", err, map[string]interface{}{
				"storage_key": cooldownKey,
				"cooldown":    cooldown.String(),
			})
			return nil, fmt.Errorf("failed to set cooldown: %w", err)
		}

		s.logger.Info("Minute limit exceeded, cooldown armed", map[string]interface{}{
			"identity":      identity,
			"current_count": minuteCount,
			"limit":         config.MaxUploadsPerMinute,
			"cooldown":      config.CooldownAfterLimit,
		})

		return &domain.RateDecision{
			Allowed:     false,
			Reason:      domain.DenyMinuteLimit,
			Message:     fmt.Sprintf("Exceeded %d uploads per minute. Wait %ds.", config.MaxUploadsPerMinute, config.CooldownAfterLimit),
			RetryAfter:  config.CooldownAfterLimit,
			MinuteCount: minuteCount,
		}, nil
	}

	hourKey := BuildWindowKey(identity, domain.HourWindow)
	hourCount, hourResetIn, err := s.store.Increment(ctx, hourKey, domain.HourWindow.Duration())
	if err != nil {
		s.logger.Error("Failed to increment hour counter", err, map[string]interface{}{
			"storage_key": hourKey,
		})
		return nil, fmt.Errorf("failed to increment hour counter: %w", err)
	}

	// Estouro da janela de hora não arma cooldown
	if hourCount > int64(config.MaxUploadsPerHour) {
		retryAfter := ceilSeconds(hourResetIn)

		s.logger.Info("Hour limit exceeded", map[string]interface{}{
			"identity":      identity,
			"current_count": hourCount,
			"limit":         config.MaxUploadsPerHour,
			"reset_in":      retryAfter,
		})

		return &domain.RateDecision{
			Allowed:     false,
			Reason:      domain.DenyHourLimit,
			Message:     fmt.Sprintf("Exceeded %d uploads per hour. Wait %ds.", config.MaxUploadsPerHour, retryAfter),
			RetryAfter:  retryAfter,
			MinuteCount: minuteCount,
			HourCount:   hourCount,
		}, nil
	}

	s.logger.Debug("Upload allowed", map[string]interface{}{
		"identity":     identity,
		"minute_count": minuteCount,
		"hour_count":   hourCount,
	})

	return &domain.RateDecision{
		Allowed:     true,
		MinuteCount: minuteCount,
		HourCount:   hourCount,
	}, nil
}

// Status retorna o estado atual de uma identidade sem alterá-lo
func (s *RateLimiterService) Status(ctx context.Context, identity string) (*domain.RateStatus, error) {
	minuteCount, minuteTTL, err := s.store.Peek(ctx, BuildWindowKey(identity, domain.MinuteWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read minute counter: %w", err)
	}

	hourCount, hourTTL, err := s.store.Peek(ctx, BuildWindowKey(identity, domain.HourWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read hour counter: %w", err)
	}

	cooldown, err := s.store.CooldownRemaining(ctx, BuildCooldownKey(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to read cooldown: %w", err)
	}

	return &domain.RateStatus{
		Identity:          identity,
		MinuteCount:       minuteCount,
		MinuteResetIn:     ceilSeconds(minuteTTL),
		HourCount:         hourCount,
		HourResetIn:       ceilSeconds(hourTTL),
		CooldownRemaining: ceilSeconds(cooldown),
		InCooldown:        cooldown > 0,
	}, nil
}

// BuildWindowKey constrói a chave do contador no formato upload_rate:<identity>:<window>
func BuildWindowKey(identity string, window domain.WindowKind) string {
	return fmt.Sprintf("upload_rate:%s:%s", identity, window)
}

// BuildCooldownKey constrói a chave do flag de cooldown
func BuildCooldownKey(identity string) string {
	return fmt.Sprintf("upload_cooldown:%s", identity)
}

// ceilSeconds arredonda para cima; 0.2s restantes ainda são "1 segundo"
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
