package service

import (
	"crypto/subtle"

	"upload-gate/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// SharedSecretAuthenticator compara o segredo com o ADMIN_PASSWORD em tempo constante
type SharedSecretAuthenticator struct {
	secret []byte
}

// NewSharedSecretAuthenticator cria o autenticador por segredo compartilhado
func NewSharedSecretAuthenticator(secret string) *SharedSecretAuthenticator {
	return &SharedSecretAuthenticator{secret: []byte(secret)}
}

// Authenticate retorna true se o segredo confere. Segredo configurado vazio nunca autentica.
func (a *SharedSecretAuthenticator) Authenticate(secret string) bool {
	if len(a.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), a.secret) == 1
}

// BcryptAuthenticator valida o segredo contra um hash bcrypt (ADMIN_PASSWORD_HASH)
type BcryptAuthenticator struct {
	hash []byte
}

// NewBcryptAuthenticator cria o autenticador por hash bcrypt
func NewBcryptAuthenticator(hash string) *BcryptAuthenticator {
	return &BcryptAuthenticator{hash: []byte(hash)}
}

// Authenticate retorna true se o segredo corresponde ao hash
func (a *BcryptAuthenticator) Authenticate(secret string) bool {
	if len(a.hash) == 0 || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(secret)) == nil
}

// NewAuthenticator escolhe o autenticador: o hash bcrypt tem precedência sobre o segredo em texto
func NewAuthenticator(password, passwordHash string, logger domain.Logger) domain.Authenticator {
	if passwordHash != "" {
		logger.Info("Admin authentication using bcrypt hash", nil)
		return NewBcryptAuthenticator(passwordHash)
	}

	if password == "" {
		logger.Warn("No admin secret configured, admin writes will be rejected", nil)
	}
	return NewSharedSecretAuthenticator(password)
}
