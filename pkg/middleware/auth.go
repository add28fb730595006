package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edi-spaghetti/cs50w-network/pkg/jwt"
	"github.com/edi-spaghetti/cs50w-network/pkg/log"
	"github.com/edi-spaghetti/cs50w-network/pkg/response"
)

const (
	UserIDKey     = "user_id"
	UsernameKey   = "username"
	RolesKey      = "roles"
	SessionIDKey  = "session_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	SessionCookie = "session"
	CSRFHeaderKey = "X-CSRFToken"
)

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// CSRFVerifier checks an anti-forgery token against a session.
type CSRFVerifier interface {
	Verify(ctx context.Context, sessionID, token string) (bool, error)
}

// AuthMiddleware attaches the caller identity and guards mutating routes.
type AuthMiddleware struct {
	tokens TokenVerifier
	csrf   CSRFVerifier
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(tokens TokenVerifier, csrf CSRFVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, csrf: csrf}
}

// Authenticate resolves the session token, if any, into caller info on the
// Gin context. A missing or invalid token leaves the caller anonymous.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Debug().Err(err).Msg("ignoring invalid session token")
			c.Next()
			return
		}
		id, _ := claims.ID()

		c.Set(UserIDKey, id)
		c.Set(UsernameKey, claims.Username)
		c.Set(RolesKey, claims.Roles)
		c.Set(SessionIDKey, claims.SessionID)

		c.Next()
	}
}

// RequireAuth rejects anonymous callers.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == 0 {
			response.Forbidden(c, "authentication required")
			return
		}
		c.Next()
	}
}

// RequireCSRF rejects calls whose X-CSRFToken header does not match the
// token issued for the caller's session.
func (m *AuthMiddleware) RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := GetSessionID(c)
		token := c.GetHeader(CSRFHeaderKey)
		if sessionID == "" || token == "" {
			response.Forbidden(c, "CSRF token missing")
			return
		}

		ok, err := m.csrf.Verify(c.Request.Context(), sessionID, token)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Error().Err(err).Msg("failed to verify CSRF token")
			response.ServiceUnavailable(c, "could not verify CSRF token, try again")
			return
		}
		if !ok {
			response.Forbidden(c, "CSRF token incorrect")
			return
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader(AuthHeaderKey); strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// GetUserID extracts user ID from Gin context, zero when anonymous.
func GetUserID(c *gin.Context) int64 {
	if id, exists := c.Get(UserIDKey); exists {
		return id.(int64)
	}
	return 0
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(UsernameKey); exists {
		return username.(string)
	}
	return ""
}

// GetRoles extracts roles from Gin context.
func GetRoles(c *gin.Context) []string {
	if roles, exists := c.Get(RolesKey); exists {
		return roles.([]string)
	}
	return nil
}

// GetSessionID extracts the session id from Gin context.
func GetSessionID(c *gin.Context) string {
	if sid, exists := c.Get(SessionIDKey); exists {
		return sid.(string)
	}
	return ""
}
