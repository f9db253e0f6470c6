package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/service"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	claimsKey  = "claims"
	sessionKey = "desk_session"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Claims, *session.Session, error)
}

// RequireAuth accepts a bearer token or, for browser pages, the session
// cookie. Unauthenticated API calls get 401; pages are sent to /login.
func RequireAuth(authn Authenticator, cookieName string, pages bool, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie(cookieName)
		}
		if token == "" {
			deny(c, pages, "authentication required")
			return
		}

		claims, sess, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrSessionExpired) {
				log.Debug("token rejected", zap.String("request_id", RequestIDFrom(c)), zap.Error(err))
			}
			deny(c, pages, "session expired, please log in again")
			return
		}

		c.Set(claimsKey, claims)
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) *domain.Claims {
	claims, _ := c.MustGet(claimsKey).(*domain.Claims)
	return claims
}

func SessionFrom(c *gin.Context) *session.Session {
	sess, _ := c.MustGet(sessionKey).(*session.Session)
	return sess
}

func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func deny(c *gin.Context, pages bool, msg string) {
	if pages {
		c.Redirect(http.StatusSeeOther, "/login")
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
