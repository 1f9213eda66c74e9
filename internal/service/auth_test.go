package service

import (
	"testing"

	"upload-gate/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSharedSecretAuthenticator(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		expected   bool
	}{
		{name: "Matching secret", configured: "s3cret", sent: "s3cret", expected: true},
		{name: "Wrong secret", configured: "s3cret", sent: "s3cre", expected: false},
		{name: "Empty secret sent", configured: "s3cret", sent: "", expected: false},
		{name: "Case sensitive", configured: "s3cret", sent: "S3CRET", expected: false},
		{name: "No secret configured", configured: "", sent: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewSharedSecretAuthenticator(tt.configured)
			assert.Equal(t, tt.expected, auth.Authenticate(tt.sent))
		})
	}
}

func TestBcryptAuthenticator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := NewBcryptAuthenticator(string(hash))

	assert.True(t, auth.Authenticate("s3cret"))
	assert.False(t, auth.Authenticate("wrong"))
	assert.False(t, auth.Authenticate(""))
	assert.False(t, NewBcryptAuthenticator("not-a-hash").Authenticate("s3cret"))
}

func TestNewAuthenticator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("from-hash"), bcrypt.MinCost)
	require.NoError(t, err)

	log := logger.NewNopLogger()

	withHash := NewAuthenticator("plain", string(hash), log)
	assert.IsType(t, &BcryptAuthenticator{}, withHash)
	assert.True(t, withHash.Authenticate("from-hash"))
	assert.False(t, withHash.Authenticate("plain"))

	plain := NewAuthenticator("plain", "", log)
	assert.IsType(t, &SharedSecretAuthenticator{}, plain)
	assert.True(t, plain.Authenticate("plain"))

	none := NewAuthenticator("", "", log)
	assert.False(t, none.Authenticate(""))
}
