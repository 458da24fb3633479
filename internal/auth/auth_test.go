package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth() *Auth {
	return New(Config{
		JWTSecret:     "test-secret-key",
		TokenDuration: time.Hour,
	})
}

func TestGenerateAndValidateHostToken(t *testing.T) {
	a := newTestAuth()

	token, err := a.GenerateHostToken("ABC123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := a.ValidateHostToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", claims.SessionCode)
	assert.Equal(t, "HOST", claims.Role)
	assert.Equal(t, "partyquiz", claims.Issuer)
}

func TestValidateHostTokenWrongSecret(t *testing.T) {
	a := newTestAuth()
	token, err := a.GenerateHostToken("ABC123")
	require.NoError(t, err)

	other := New(Config{JWTSecret: "different-secret", TokenDuration: time.Hour})
	_, err = other.ValidateHostToken(token)
	assert.Error(t, err)
}

func TestValidateHostTokenExpired(t *testing.T) {
	a := New(Config{
		JWTSecret:     "test-secret-key",
		TokenDuration: -time.Minute,
	})

	token, err := a.GenerateHostToken("ABC123")
	require.NoError(t, err)

	_, err = a.ValidateHostToken(token)
	assert.Error(t, err)
}

func TestValidateHostTokenGarbage(t *testing.T) {
	a := newTestAuth()
	_, err := a.ValidateHostToken("not-a-token")
	assert.Error(t, err)
}

func TestHostKeyRoundtrip(t *testing.T) {
	key, err := GenerateHostKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)

	hash, err := HashHostKey(key)
	require.NoError(t, err)
	require.NotEqual(t, key, hash)

	assert.True(t, CheckHostKey(hash, key))
	assert.False(t, CheckHostKey(hash, "wrong-key"))
}

func TestGenerateHostKeyUnique(t *testing.T) {
	a, err := GenerateHostKey()
	require.NoError(t, err)
	b, err := GenerateHostKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGenerateRejoinTokenUnique(t *testing.T) {
	a, err := GenerateRejoinToken()
	require.NoError(t, err)
	b, err := GenerateRejoinToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}

func TestDefaultTokenDuration(t *testing.T) {
	a := New(Config{JWTSecret: "s"})
	assert.Equal(t, DefaultTokenDuration, a.config.TokenDuration)
}
