package middleware

import (
	"errors"
	"strings"

	"github.com/aredondocharro/ClothingStore-sub001/services/common/auth"
	apperrors "github.com/aredondocharro/ClothingStore-sub001/services/common/errors"
	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "userID"
	RoleKey   = "role"

	RoleAdmin = "admin"
)

// RequireAuth accepts a bearer access token, falling back to the
// access_token cookie set by the API gateway.
func RequireAuth(validator *auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			if v, err := c.Cookie("access_token"); err == nil {
				token = v
			}
		}
		if token == "" {
			abort(c, apperrors.ErrUnauthorized.WithReason("MISSING_TOKEN"))
			return
		}

		claims, err := validator.ParseAndValidateToken(token, "access")
		if errors.Is(err, auth.ErrTokenExpired) {
			abort(c, apperrors.ErrTokenExpired.WithReason("TOKEN_EXPIRED"))
			return
		}
		if err != nil {
			abort(c, apperrors.ErrInvalidToken.WithReason("INVALID_TOKEN"))
			return
		}

		if sub, ok := claims["sub"].(string); ok {
			c.Set(UserIDKey, sub)
		}
		if role, ok := claims["role"].(string); ok {
			c.Set(RoleKey, role)
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != role {
			abort(c, apperrors.ErrForbidden.WithReason("ROLE_REQUIRED"))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err *apperrors.Error) {
	c.AbortWithStatusJSON(err.Code, err)
}
