package api

import (
	"flagpole/internal/metrics"
	"flagpole/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(
	flagHandler *FlagHandler,
	streamHandler *StreamHandler,
	authHandler *AuthHandler,
	tokenParser middleware.TokenParser,
	rdb *redis.Client,
	requestsPerSecond int,
) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.CorsMiddleware(),
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
	)
	r.SetTrustedProxies(nil)

	r.GET("/health", flagHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	protected := r.Group("/v1")
	protected.Use(middleware.JWTMiddleware(tokenParser))

	writeLimiter := middleware.RateLimitMiddleware(rdb, requestsPerSecond)

	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetProfile)

		protected.POST("/flags", writeLimiter, flagHandler.CreateFlag)
		protected.GET("/flags/:id", flagHandler.GetFlag)
		protected.GET("/flags/:id/enabled", flagHandler.GetFlagEnabled)
		protected.PUT("/flags/:id", writeLimiter, flagHandler.UpdateFlag)
		protected.DELETE("/flags/:id", writeLimiter, flagHandler.DeleteFlag)
		protected.POST("/flags/:id/toggle", writeLimiter, flagHandler.ToggleFlag)
		protected.GET("/flags/:id/audits", flagHandler.ListAudits)
		protected.POST("/flags/:id/overrides", writeLimiter, flagHandler.CreateOverride)
		protected.POST("/flags/:id/import", writeLimiter, flagHandler.ImportFlag)
		protected.POST("/flags/:id/export", writeLimiter, flagHandler.ExportFlag)
		protected.DELETE("/overrides/:id", writeLimiter, flagHandler.DeleteOverride)

		protected.GET("/me/flags", flagHandler.ListMyFlags)
		protected.GET("/me/resolved", flagHandler.GetResolvedView)
		protected.GET("/organizations/:id/flags", flagHandler.ListOrganizationFlags)

		protected.GET("/stream/ws", streamHandler.WatchWebSocket)
		protected.GET("/stream/events", streamHandler.WatchSSE)
	}
	return r
}
