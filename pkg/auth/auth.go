// Package auth signs and verifies the HS256 bearer tokens accepted by the
// streamable HTTP tool host. It has no domain dependencies.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultJWTExpiry is the token lifetime in hours when none is given.
const DefaultJWTExpiry = 24

var (
	ErrEmptySecret  = errors.New("jwt secret is empty")
	ErrEmptyToken   = errors.New("token is empty")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims identifies the caller of the tool host.
type Claims struct {
	jwt.RegisteredClaims
}

// ParseExpiry parses an expiry given in hours. Empty or invalid input
// yields DefaultJWTExpiry.
func ParseExpiry(hours string) time.Duration {
	if hours == "" {
		return time.Duration(DefaultJWTExpiry) * time.Hour
	}
	n, err := strconv.Atoi(hours)
	if err != nil {
		return time.Duration(DefaultJWTExpiry) * time.Hour
	}
	return time.Duration(n) * time.Hour
}

// GenerateJWT signs a token for subject that expires after ttl.
func GenerateJWT(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// ParseJWT verifies tokenString against secret and returns its claims.
// Only HMAC signing methods are accepted.
func ParseJWT(secret []byte, tokenString string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
