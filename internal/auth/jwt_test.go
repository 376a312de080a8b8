package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinelkey/internal/common"
)

func TestTokenRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")

	token, err := GenerateToken("alice", key, time.Hour, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	username, err := GetUsernameFromToken(token, key)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestToken_UniqueID(t *testing.T) {
	key := []byte("0123456789abcdef")
	issuedAt := time.Now()

	first, err := GenerateToken("alice", key, time.Hour, issuedAt)
	require.NoError(t, err)
	second, err := GenerateToken("alice", key, time.Hour, issuedAt)
	require.NoError(t, err)

	// identical inputs still yield distinct tokens thanks to the random ID
	assert.NotEqual(t, first, second)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(first, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	// 16 random bytes, hex-encoded
	assert.Len(t, claims.ID, 32)
}

func TestToken_WrongKey(t *testing.T) {
	token, err := GenerateToken("alice", []byte("key-one-16-bytes"), time.Hour, time.Now())
	require.NoError(t, err)

	_, err = GetUsernameFromToken(token, []byte("key-two-16-bytes"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestToken_Expired(t *testing.T) {
	key := []byte("0123456789abcdef")

	token, err := GenerateToken("alice", key, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = GetUsernameFromToken(token, key)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestToken_Garbage(t *testing.T) {
	_, err := GetUsernameFromToken("not-a-token", []byte("0123456789abcdef"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
