package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/williammiras/dash/internal/auth"
	"github.com/williammiras/dash/internal/config"
	"github.com/williammiras/dash/internal/handlers"
	"github.com/williammiras/dash/internal/metrics"
	"github.com/williammiras/dash/pkg/logger"
)

// Routes are the handlers a router serves. Nil handlers leave their routes out.
type Routes struct {
	Query           *handlers.QueryHandler
	Sessions        *handlers.SessionHandler
	Recommendations *handlers.RecommendationHandler
	// Authorizer protects every API route when set.
	Authorizer *auth.AccessTokenAuthorizer
}

func NewRouter(cfg config.ServerConfig, log logger.Logger, routes Routes) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error("Invalid trusted proxies, forwarding headers are ignored", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(LoggerMiddleware(log))
	r.Use(RecoveryMiddleware())
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/")
	if routes.Authorizer != nil {
		api.Use(auth.Middleware(routes.Authorizer))
	}

	if routes.Query != nil {
		chain := []gin.HandlerFunc{}
		if cfg.RateLimit > 0 && cfg.RatePeriod > 0 {
			chain = append(chain, RateLimitMiddleware(cfg.RateLimit, cfg.RatePeriod))
		}
		api.POST("/query", append(chain, routes.Query.Query)...)
	}
	if routes.Sessions != nil {
		api.GET("/sessions/:id", routes.Sessions.GetSession)
		api.DELETE("/sessions/:id", routes.Sessions.DeleteSession)
	}
	if routes.Recommendations != nil {
		api.GET("/recommendations/similar", routes.Recommendations.Similar)
	}

	return r
}
