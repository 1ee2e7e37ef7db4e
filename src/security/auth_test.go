package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

func TestGenerateTokenRoundTripsUserID(t *testing.T) {
	auth := NewAuthService(testSecret, 15*time.Minute)

	token, err := auth.GenerateToken("42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sub, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	auth := NewAuthService(testSecret, -time.Minute)

	token, err := auth.GenerateToken("42")
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService(testSecret, 15*time.Minute)
	validator := NewAuthService("another-secret-another-secret-ab", 15*time.Minute)

	token, err := issuer.GenerateToken("42")
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestValidateTokenRejectsNonHMACSigning(t *testing.T) {
	auth := NewAuthService(testSecret, 15*time.Minute)

	claims := jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(15 * time.Minute).Unix(),
	}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorContains(t, err, "unexpected signing method")
}

func TestHashPasswordVerifiesAndRejects(t *testing.T) {
	auth := NewAuthService(testSecret, 15*time.Minute)

	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.NoError(t, auth.CompareHashAndPassword(hash, "correct horse battery staple"))
	assert.Error(t, auth.CompareHashAndPassword(hash, "wrong password"))
}
