package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"stockbook/internal/core/apperror"
	appctx "stockbook/internal/core/context"
)

// TokenValidator validates a bearer token and extracts the caller.
// Token issuance lives in an external identity service; this side only
// verifies.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.CallerContext, error)
}

// Auth middleware validates bearer tokens and populates caller context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		caller, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ctx := appctx.WithCaller(c.Request.Context(), caller)
		c.Request = c.Request.WithContext(ctx)
		c.Set("caller", caller.Subject)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}

// HMACValidator validates HS256-signed tokens.
type HMACValidator struct {
	secret []byte
}

// NewHMACValidator creates a validator for a shared HMAC secret.
func NewHMACValidator(secret []byte) *HMACValidator {
	return &HMACValidator{secret: secret}
}

type callerClaims struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies the token signature and expiry.
func (v *HMACValidator) ValidateToken(tokenString string) (*appctx.CallerContext, error) {
	claims := &callerClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &appctx.CallerContext{
		Subject: claims.Subject,
		Name:    claims.Name,
		Roles:   claims.Roles,
	}, nil
}
