package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/coursemarket/server-go/internal/middleware"
)

// RegisterRoutes attaches authentication endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	authGroup := router.Group("/auth")

	authGroup.POST("/register", handler.Register)
	authGroup.POST("/login", handler.Login)
	authGroup.POST("/logout", handler.Logout)
	authGroup.POST("/refresh", handler.Refresh)
	authGroup.GET("/me", middleware.AuthenticateToken(), handler.Me)
}
