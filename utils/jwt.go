package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/greenloop/binpoints/config"
)

// Claims is the contract with the identity collaborator: a verified user
// id plus the email-verification flag and the originating provider.
type Claims struct {
	UserID        uint   `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Provider      string `json:"provider"`
	jwt.RegisteredClaims
}

// GenerateToken issues a JWT for the specified identity. Used by tooling
// and tests; production tokens come from the identity provider with the
// same shared secret.
func GenerateToken(userID uint, email string, emailVerified bool, provider string, duration time.Duration) (string, error) {
	cfg := config.Get()

	claims := Claims{
		UserID:        userID,
		Email:         email,
		EmailVerified: emailVerified,
		Provider:      provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken validates a JWT and returns its claims.
func ParseToken(tokenStr string) (*Claims, error) {
	cfg := config.Get()
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
