package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/api"
	"github.com/elskow/amsterdam-discovery/internal/config"
)

const (
	// userIDKey is the gin context key holding the authenticated user id
	userIDKey = "auth.user_id"
	userKey   = "auth.user"
)

type AuthMiddleware struct {
	config     *config.AuthConfig
	tokens     *TokenIssuer
	repository Repository
	log        *zap.Logger
}

func NewAuthMiddleware(config *config.AuthConfig, tokens *TokenIssuer, repo Repository, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		config:     config,
		tokens:     tokens,
		repository: repo,
		log:        log,
	}
}

// Authenticate accepts "Authorization: Bearer <token>" or the session
// cookie and stores the user id on the request context. Tokens of deleted
// accounts are refused.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			api.Abort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			m.log.Debug("token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			api.Abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := m.repository.GetUserByID(c.Request.Context(), claims.Subject)
		switch {
		case errors.Is(err, ErrUserNotFound):
			m.log.Info("token for deleted account", zap.String("user_id", claims.Subject))
			api.Abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		case err != nil:
			m.log.Error("failed to load token subject", zap.String("user_id", claims.Subject), zap.Error(err))
			api.Abort(c, http.StatusInternalServerError, "internal error, try again")
			return
		}

		c.Set(userIDKey, user.ID)
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			api.Abort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := m.currentUser(c, userID)
		switch {
		case errors.Is(err, ErrUserNotFound):
			api.Abort(c, http.StatusForbidden, "Admin access required")
			return
		case err != nil:
			m.log.Error("failed to load user for admin check", zap.String("user_id", userID), zap.Error(err))
			api.Abort(c, http.StatusInternalServerError, "internal error, try again")
			return
		case !user.IsAdmin:
			m.log.Warn("admin access denied", zap.String("user_id", userID), zap.String("path", c.FullPath()))
			api.Abort(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// currentUser prefers the account Authenticate already loaded.
func (m *AuthMiddleware) currentUser(c *gin.Context, userID string) (*User, error) {
	if user, ok := c.Get(userKey); ok {
		if u, ok := user.(*User); ok && u.ID == userID {
			return u, nil
		}
	}
	return m.repository.GetUserByID(c.Request.Context(), userID)
}

func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(m.config.CookieName); err == nil {
		return cookie
	}
	return ""
}

// UserID returns the id stored by Authenticate.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}
