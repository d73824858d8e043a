package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const sessionCtxKey = "sessionID"

// sessionMiddleware resolves the bearer token to a session id.
func sessionMiddleware(sessions sessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		sessionID, err := sessions.LookupByToken(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
			return
		}
		c.Set(sessionCtxKey, sessionID)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionCtxKey)
}
