package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrSecretNotConfigured = errors.New("JWT secret not configured")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidToken        = errors.New("invalid token")
)

// TokenValidator checks HMAC signed access tokens issued by the auth service.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenValidator{}
	}
	return &TokenValidator{secret: []byte(secret)}
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func (v *TokenValidator) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if v == nil || v.secret == nil {
		return nil, ErrSecretNotConfigured
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil || token == nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
		}
	}
	return claims, nil
}
