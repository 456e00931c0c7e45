package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"deptportal/internal/auth"
)

// SessionLocalKey is the key used to store the authenticated Session in Fiber's context locals.
const SessionLocalKey = "session"

// Session is the portal account an access token belongs to.
type Session struct {
	OwnerID string
	Role    string
}

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// SessionAuth reads the access token from cookieName, falling back to an
// "Authorization: Bearer" header. Missing or invalid tokens leave the request anonymous;
// handlers that need a session use RequireSession. A nil validator disables sessions.
func SessionAuth(v TokenValidator, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v == nil {
			return c.Next()
		}
		token := c.Cookies(cookieName)
		if token == "" {
			if h := c.Get(fiber.HeaderAuthorization); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
				token = strings.TrimSpace(h[7:])
			}
		}
		if token != "" {
			if claims, err := v.ValidateToken(token); err == nil {
				c.Locals(SessionLocalKey, Session{OwnerID: claims.OwnerID, Role: claims.Role})
			}
		}
		return c.Next()
	}
}

// RequireSession rejects anonymous requests with 401.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := SessionFromCtx(c); !ok {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	}
}

// SessionFromCtx returns the session stored by SessionAuth.
func SessionFromCtx(c *fiber.Ctx) (Session, bool) {
	s, ok := c.Locals(SessionLocalKey).(Session)
	return s, ok
}
