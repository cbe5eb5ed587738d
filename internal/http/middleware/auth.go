package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-identity/internal/token"
)

const subjectKey = "authSubject"

// Auth validates the Authorization header and attaches the token subject to
// the request context.
type Auth struct {
	Codec *token.Codec
}

// RequireAuth aborts with 401 when no bearer token is presented and 403 when
// the presented token fails signature or expiry checks. Handlers load any
// user state they need from the subject ID.
func (m *Auth) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "Unauthorized", "message": "Authentication required"})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "Unauthorized", "message": "Bearer token required"})
		return
	}

	userID, err := m.Codec.Verify(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "Forbidden", "message": "Invalid or expired token"})
		return
	}

	c.Set(subjectKey, userID)
	c.Next()
}

// Subject returns the authenticated user ID attached by RequireAuth.
func Subject(c *gin.Context) (string, bool) {
	value, ok := c.Get(subjectKey)
	if !ok {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}
