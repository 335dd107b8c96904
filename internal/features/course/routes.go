package course

import (
	"github.com/gin-gonic/gin"

	"github.com/coursemarket/server-go/internal/middleware"
	"github.com/coursemarket/server-go/pkg/types"
)

// RegisterRoutes attaches course endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	courses := router.Group("/courses")

	instructorOnly := middleware.RequireRoles(types.RoleInstructor)

	courses.GET("", handler.List)
	courses.GET("/mine", append(instructorOnly, handler.Mine)...)
	courses.GET("/:courseId", handler.GetByID)
	courses.POST("", append(instructorOnly, handler.Create)...)
	courses.PUT("/:courseId", append(instructorOnly, handler.Update)...)
	courses.DELETE("/:courseId", append(instructorOnly, handler.Deactivate)...)
}
