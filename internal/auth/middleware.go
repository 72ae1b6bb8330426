package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/pkg/util"
)

// SessionLocalsKey is where the middleware stores the parsed session; the
// websocket handler reads it back through conn.Locals.
const SessionLocalsKey = "auth_session"

// Middleware validates bearer tokens and attaches the session context.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		// WebSocket clients cannot set headers from the browser; accept the
		// token as a query parameter on upgrade requests.
		if token := c.Query("token"); token != "" {
			authHeader = "Bearer " + token
		}
	}
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}

	session, err := m.tokens.ParseSession(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	c.Locals(SessionLocalsKey, session)
	return c.Next()
}

// SessionFromContext retrieves the authenticated session.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	val := c.Locals(SessionLocalsKey)
	if val == nil {
		return nil, false
	}
	session, ok := val.(*domain.Session)
	return session, ok
}

// SessionFromLocals retrieves the session from a raw locals lookup, used by
// the websocket handler where only conn.Locals is available.
func SessionFromLocals(val interface{}) (*domain.Session, bool) {
	session, ok := val.(*domain.Session)
	return session, ok
}
