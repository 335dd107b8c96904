package notification

import (
	"github.com/gin-gonic/gin"

	"github.com/coursemarket/server-go/internal/middleware"
)

// RegisterRoutes attaches notification endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	notifications := router.Group("/notifications")
	notifications.Use(middleware.AuthenticateToken())

	notifications.GET("", handler.List)
	notifications.GET("/unread-count", handler.UnreadCount)
	notifications.PUT("/:notificationId/read", handler.MarkRead)
	notifications.PUT("/read-all", handler.MarkAllRead)
}
