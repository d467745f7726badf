package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"psy-relay/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	allowedOrigin string,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	chatH *ChatHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y CORS.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), cors.New(corsConfig(allowedOrigin)))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "psy-relay is running")
	})

	api := r.Group("/api", jsonContentTypeMiddleware())
	api.POST("/login", userH.Login)

	authed := api.Group("", JWTAuthMiddleware(jwtSvc))
	authed.POST("/logout", userH.Logout)
	authed.GET("/user", userH.GetUser)
	authed.POST("/user", userH.UpdateUser)
	authed.POST("/chat", chatH.Chat)

	return r
}

func corsConfig(allowedOrigin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if allowedOrigin == "" || allowedOrigin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{allowedOrigin}
	}
	return cfg
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
