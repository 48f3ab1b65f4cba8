package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	tok, err := SignJWT("u1", "secret", time.Hour)
	require.NoError(t, err)

	uid, err := ParseJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestJWTRejects(t *testing.T) {
	good, err := SignJWT("u1", "secret", time.Hour)
	require.NoError(t, err)
	expired, err := SignJWT("u1", "secret", -time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong secret": good,
		"expired":      expired,
		"alg none":     none,
		"garbage":      "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			secret := "secret"
			if name == "wrong secret" {
				secret = "other"
			}
			_, err := ParseJWT(tok, secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestOTPGenerateAndHash(t *testing.T) {
	code, err := GenerateOTP(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}

	hash, err := HashCode(code)
	require.NoError(t, err)
	assert.True(t, CheckCode(hash, code))
	assert.False(t, CheckCode(hash, "x"+code))
}
