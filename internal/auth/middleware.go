package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/williammiras/dash/pkg/logger"
)

// Middleware rejects requests without a valid "Authorization: Bearer <token>" header.
func Middleware(a *AccessTokenAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		ok, err := a.CheckToken(c.Request.Context(), token)
		if err != nil {
			logger.FromContext(c.Request.Context()).Error("Access token check failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to verify access token"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
