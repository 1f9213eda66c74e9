package domain

import (
	"io"
	"time"
)

// UploadConfig é a política de upload ajustável pelo admin (documento JSON único)
type UploadConfig struct {
	MaxUploadsPerMinute int      `json:"maxUploadsPerMinute"`
	MaxUploadsPerHour   int      `json:"maxUploadsPerHour"`
	MaxFileSize         float64  `json:"maxFileSize"`        // MB
	CooldownAfterLimit  int      `json:"cooldownAfterLimit"` // segundos
	BlockedExtensions   []string `json:"blockedExtensions"`
}

// DefaultBlockedExtensions lista as extensões executáveis/script bloqueadas por padrão
var DefaultBlockedExtensions = []string{
	".exe", ".bat", ".cmd", ".sh", ".ps1", ".vbs", ".js", ".jar",
	".msi", ".dll", ".scr", ".com", ".pif", ".application", ".gadget",
	".hta", ".cpl", ".msc", ".ws", ".wsf", ".wsc", ".wsh", ".reg",
}

// DefaultUploadConfig retorna a configuração usada quando o ConfigStore não tem nada
func DefaultUploadConfig() *UploadConfig {
	extensions := make([]string, len(DefaultBlockedExtensions))
	copy(extensions, DefaultBlockedExtensions)

	return &UploadConfig{
		MaxUploadsPerMinute: 5,
		MaxUploadsPerHour:   30,
		MaxFileSize:         50,
		CooldownAfterLimit:  60,
		BlockedExtensions:   extensions,
	}
}

// MaxFileSizeBytes converte o teto em MB para bytes
func (c *UploadConfig) MaxFileSizeBytes() float64 {
	return c.MaxFileSize * 1024 * 1024
}

// Clone retorna uma cópia profunda da configuração
func (c *UploadConfig) Clone() *UploadConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.BlockedExtensions != nil {
		clone.BlockedExtensions = make([]string, len(c.BlockedExtensions))
		copy(clone.BlockedExtensions, c.BlockedExtensions)
	}
	return &clone
}

// DenyReason identifica qual regra do rate limiter negou o upload
type DenyReason string

const (
	DenyNone        DenyReason = ""
	DenyCooldown    DenyReason = "cooldown"
	DenyMinuteLimit DenyReason = "minute_limit"
	DenyHourLimit   DenyReason = "hour_limit"
)

// WindowKind define os horizontes de contagem
type WindowKind string

const (
	MinuteWindow WindowKind = "minute"
	HourWindow   WindowKind = "hour"
)

// Duration retorna a duração fixa da janela
func (w WindowKind) Duration() time.Duration {
	switch w {
	case HourWindow:
		return time.Hour
	default:
		return time.Minute
	}
}

// RateDecision representa o resultado de uma verificação de rate limit
type RateDecision struct {
	Allowed     bool       `json:"allowed"`
	Reason      DenyReason `json:"reason,omitempty"`
	Message     string     `json:"message,omitempty"`
	RetryAfter  int        `json:"retryAfter,omitempty"` // segundos
	MinuteCount int64      `json:"minuteCount"`
	HourCount   int64      `json:"hourCount"`
}

// RateStatus é a visão administrativa (somente leitura) do estado de um cliente
type RateStatus struct {
	Identity          string `json:"identity"`
	MinuteCount       int64  `json:"minuteCount"`
	MinuteResetIn     int    `json:"minuteResetIn"`
	HourCount         int64  `json:"hourCount"`
	HourResetIn       int    `json:"hourResetIn"`
	CooldownRemaining int    `json:"cooldownRemaining"`
	InCooldown        bool   `json:"inCooldown"`
}

// UploadFile descreve um arquivo recebido do cliente
type UploadFile struct {
	Name     string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// UploadPayload é o conteúdo multipart já interpretado
type UploadPayload struct {
	Files    []*UploadFile
	ParentID string
}

// UploadRequest é a requisição transitória avaliada pelo UploadGate.
// O payload é carregado sob demanda, somente depois do rate limit.
type UploadRequest struct {
	ClientID    string
	LoadPayload func() (*UploadPayload, error)
}

// ObjectMeta são os metadados enviados ao backend de armazenamento
type ObjectMeta struct {
	Name     string
	MimeType string
	ParentID string
}

// StoredFile é a referência devolvida pelo backend de armazenamento
type StoredFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	CreatedTime time.Time `json:"createdTime"`
	Parents     []string  `json:"parents"`
}
