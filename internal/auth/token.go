// Package auth issues and checks the operator tokens that guard
// administrative endpoints.
package auth

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleOperator = "operator"
	contextKey   = "operator"
)

var ErrNoSecret = errors.New("auth: signing secret is empty")

// IssueToken signs an HS256 operator token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleOperator,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Protect requires a valid operator bearer token. An empty secret disables
// the check.
func Protect(secret string) fiber.Handler {
	if secret == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(secret),
		ContextKey: contextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		},
	})
}

// RequireOperator rejects verified tokens that lack the operator role. It
// must run after Protect; with no token in context the request passes.
func RequireOperator(c *fiber.Ctx) error {
	tok, ok := c.Locals(contextKey).(*jwt.Token)
	if !ok {
		return c.Next()
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || claims["role"] != RoleOperator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	return c.Next()
}

// Subject returns the sub claim of the verified token, if any.
func Subject(c *fiber.Ctx) string {
	tok, ok := c.Locals(contextKey).(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
