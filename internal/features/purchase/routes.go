package purchase

import (
	"github.com/gin-gonic/gin"

	"github.com/coursemarket/server-go/internal/middleware"
)

// RegisterRoutes attaches purchase and webhook endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	purchases := router.Group("/purchases")
	purchases.Use(middleware.AuthenticateToken())

	purchases.POST("/create-payment-intent", handler.CreatePaymentIntent)
	purchases.POST("/confirm", handler.ConfirmPurchase)
	purchases.GET("/my-purchases", handler.MyPurchases)

	// The webhook is unauthenticated; the signature check stands in for auth.
	router.POST("/webhooks/stripe", handler.StripeWebhook)
}
