package livelesson

import (
	"github.com/gin-gonic/gin"

	"github.com/coursemarket/server-go/internal/middleware"
	"github.com/coursemarket/server-go/pkg/types"
)

// RegisterRoutes attaches live lesson endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	lessons := router.Group("/live-lessons")

	learnerOnly := middleware.RequireRoles(types.RoleLearner)
	instructorOnly := middleware.RequireRoles(types.RoleInstructor)

	lessons.POST("/request", append(learnerOnly, handler.CreateRequest)...)
	lessons.GET("/my-requests", middleware.AuthenticateToken(), handler.MyRequests)
	lessons.GET("/assigned", append(instructorOnly, handler.AssignedLessons)...)
	lessons.PUT("/:requestId/status", middleware.AuthenticateToken(), handler.UpdateStatus)
}
