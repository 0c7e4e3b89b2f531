package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestValidateTokenReturnsSubject(t *testing.T) {
	v := &JWTVerifier{secret: []byte("secret")}
	raw := sign(t, "secret", jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	uid, err := v.ValidateToken(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, "alice", uid)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	v := &JWTVerifier{secret: []byte("secret")}
	raw := sign(t, "other", jwt.RegisteredClaims{Subject: "alice"})

	_, err := v.ValidateToken(context.Background(), raw)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	v := &JWTVerifier{secret: []byte("secret")}
	raw := sign(t, "secret", jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})

	_, err := v.ValidateToken(context.Background(), raw)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsEmptySubject(t *testing.T) {
	v := &JWTVerifier{secret: []byte("secret")}
	raw := sign(t, "secret", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.ValidateToken(context.Background(), raw)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenChecksIssuer(t *testing.T) {
	v := &JWTVerifier{secret: []byte("secret"), issuer: "accounts"}
	raw := sign(t, "secret", jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.ValidateToken(context.Background(), raw)

	assert.ErrorIs(t, err, ErrInvalidToken)
}
