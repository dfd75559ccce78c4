package routes

import (
	"net/http"
	"time"

	"beacon/config"
	"beacon/handlers"
	"beacon/middleware"
	"beacon/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterNotificationRoutes registers the notification record endpoints.
func RegisterNotificationRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/notifications")
	{
		api.Use(middleware.JWTAuthUserMiddleware())
		api.POST("", hb.CreateNotificationHandler)
		api.GET("", hb.ListNotificationsHandler)
		api.GET("/unread-count", hb.UnreadCountHandler)
		api.PATCH("/read-all", hb.MarkAllReadHandler)
		api.GET("/:id", hb.GetNotificationHandler)
		api.PATCH("/:id/read", hb.MarkReadHandler)
		api.POST("/:id/click", hb.ClickNotificationHandler)
		api.DELETE("/:id", hb.DeleteNotificationHandler)
	}
}

// RegisterPreferenceRoutes registers the delivery policy endpoints.
func RegisterPreferenceRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/preferences")
	{
		api.Use(middleware.JWTAuthUserMiddleware())
		api.GET("", hb.GetPreferenceHandler)
		api.PUT("", hb.UpdatePreferenceHandler)
	}
}

// RegisterPushRoutes registers push subscription endpoints. The VAPID key is public.
func RegisterPushRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/push")
	{
		api.GET("/vapid-public-key", hb.VAPIDPublicKeyHandler)

		protected := api.Group("")
		protected.Use(middleware.JWTAuthUserMiddleware())
		protected.POST("/subscriptions", hb.SubscribeHandler)
		protected.DELETE("/subscriptions", hb.UnsubscribeHandler)
	}
}

// RegisterViewRoutes registers the live view websocket.
func RegisterViewRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/views")
	{
		api.Use(middleware.JWTAuthUserMiddleware())
		api.GET("/ws", hb.ViewSocketHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		if !status.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": status})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm Beacon", "dependencies": status})
	})
}

// RegisterMetricsRoute exposes Prometheus metrics.
func RegisterMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(utils.MetricsHandler()))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	if err := r.SetTrustedProxies(config.AppConfig.Proxies()); err != nil {
		utils.GetLogger().Warn("Invalid TRUSTED_PROXIES, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.AppConfig.Origins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Idempotency-Key", "X-Timezone"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterNotificationRoutes(r, hb)
	RegisterPreferenceRoutes(r, hb)
	RegisterPushRoutes(r, hb)
	RegisterViewRoutes(r, hb)
	RegisterHealthRoute(r)
	RegisterMetricsRoute(r)
}
