// Package auth issues and checks the bearer tokens handed out after a
// completed login, so an embedding front-end can hold a credential instead
// of the master password.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sentinelkey/internal/common"
)

// Claims carries the standard registered claims plus the account username.
type Claims struct {
	jwt.RegisteredClaims
	Username string
}

// GenerateToken signs a token for username, valid for validityDuration
// starting at issuedAt. Each token carries a random ID, so two logins within
// the same second still produce distinct tokens.
func GenerateToken(username string, secretKey []byte, validityDuration time.Duration, issuedAt time.Time) (string, error) {
	jti, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(validityDuration)),
		},
		Username: username,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUsernameFromToken verifies signature and expiry and returns the
// embedded username. Any failure maps to common.ErrInvalidToken.
func GetUsernameFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", common.ErrInvalidToken
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.Username, nil
}
