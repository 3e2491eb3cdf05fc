package auth

import (
	"errors"
	"fmt"
	"time"

	"truck-tracker-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// GuestSubject is the token subject of anonymous read-only sessions.
const GuestSubject = "guest_viewer"

type Claims struct {
	Role    models.UserRole `json:"role"`
	IsGuest bool            `json:"is_guest,omitempty"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, subject string, role models.UserRole, guest bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:    role,
		IsGuest: guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry. Only HMAC-signed tokens are accepted.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
