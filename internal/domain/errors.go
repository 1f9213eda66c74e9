package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidConfig    = errors.New("invalid upload config")
	ErrFileNotFound     = errors.New("file not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RejectionKind classifica uma rejeição do UploadGate
type RejectionKind string

const (
	RejectRateLimited RejectionKind = "rate_limited"
	RejectBadRequest  RejectionKind = "bad_request"
	RejectInternal    RejectionKind = "internal"
)

// RejectionError é o resultado "Rejected" do UploadGate.
// Reason é seguro para o cliente; Err fica apenas no servidor.
type RejectionError struct {
	Kind       RejectionKind
	Reason     string
	DenyReason DenyReason
	RetryAfter int
	Err        error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// HTTPStatus mapeia o tipo de rejeição para o status HTTP
func (e *RejectionError) HTTPStatus() int {
	switch e.Kind {
	case RejectRateLimited:
		return http.StatusTooManyRequests
	case RejectBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ConfigValidationError descreve qual campo da configuração é inválido
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ConfigValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// FileValidationCheck identifica a verificação de arquivo que falhou
type FileValidationCheck string

const (
	CheckSize      FileValidationCheck = "size"
	CheckExtension FileValidationCheck = "extension"
	CheckFilename  FileValidationCheck = "filename"
)

// FileValidationError é uma falha de validação esperada, exibida ao cliente
type FileValidationError struct {
	Check  FileValidationCheck
	Reason string
}

func (e *FileValidationError) Error() string {
	return e.Reason
}
