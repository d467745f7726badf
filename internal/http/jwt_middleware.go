package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"psy-relay/internal/service"
)

const (
	authUserIDKey = "auth_user_id"
	authTokenKey  = "auth_token"
)

// JWTAuthMiddleware valida el token de sesión y guarda el userID en el contexto.
// Sin header Bearer responde 401; token inválido o expirado responde 403.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		userID, err := jwtSvc.Verify(token)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authUserIDKey, userID)
		c.Set(authTokenKey, token)
		c.Next()
	}
}

// GetAuthUserID obtiene el userID autenticado desde el contexto.
func GetAuthUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(authUserIDKey)
	return userID, userID != ""
}
