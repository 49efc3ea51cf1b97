package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	util := NewJWTUtil("s3cret", "1h")

	token, err := util.GenerateToken("abc123", "dispatch", "manager")
	require.NoError(t, err)

	claims, err := util.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "abc123", claims.ManagerID)
	assert.Equal(t, "dispatch", claims.Username)
	assert.Equal(t, "manager", claims.Role)
	assert.Equal(t, "fleet-safety", claims.Issuer)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := NewJWTUtil("one", "1h").GenerateToken("id", "u", "manager")
	require.NoError(t, err)

	_, err = NewJWTUtil("two", "1h").ValidateToken(token)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	longLived := NewJWTUtil("k", "24h")
	token, err := longLived.GenerateToken("id", "u", "police")
	require.NoError(t, err)

	same, err := longLived.RefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, token, same)

	shortLived := NewJWTUtil("k", "30m")
	token, err = shortLived.GenerateToken("id", "u", "police")
	require.NoError(t, err)

	fresh, err := shortLived.RefreshToken(token)
	require.NoError(t, err)
	claims, err := shortLived.ValidateToken(fresh)
	require.NoError(t, err)
	assert.Equal(t, "police", claims.Role)
}

func TestNewJWTUtil_Defaults(t *testing.T) {
	util := NewJWTUtil("", "garbage")
	assert.Equal(t, []byte(defaultSecret), util.secretKey)
	assert.Equal(t, defaultLifetime, util.expiry)
}
