package purchase

import (
	"errors"
	"io"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/middleware"
	"github.com/coursemarket/server-go/pkg/response"
	"github.com/coursemarket/server-go/pkg/stripe"
)

// Handler processes purchase HTTP requests.
type Handler struct {
	db            *gorm.DB
	service       *Service
	logger        *slog.Logger
	webhookSecret string
}

// NewHandler constructs a purchase handler instance.
func NewHandler(db *gorm.DB, service *Service, logger *slog.Logger, webhookSecret string) *Handler {
	return &Handler{db: db, service: service, logger: logger, webhookSecret: webhookSecret}
}

// CreatePaymentIntent opens a payment for a course.
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req struct {
		CourseID uint `json:"courseId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid payment payload", err)
		return
	}

	intent, err := h.service.CreatePaymentIntent(c.Request.Context(), actor.ID, req.CourseID)
	if err != nil {
		h.respondError(c, err, "failed to create payment intent")
		return
	}

	response.Success(c, http.StatusOK, intent, "", nil)
}

// ConfirmPurchase verifies a payment and records the purchase.
func (h *Handler) ConfirmPurchase(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req struct {
		PaymentIntentID string `json:"paymentIntentId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid confirmation payload", err)
		return
	}

	p, err := h.service.ConfirmPurchase(c.Request.Context(), actor.ID, req.PaymentIntentID)
	if err != nil {
		h.respondError(c, err, "failed to confirm purchase")
		return
	}

	response.Success(c, http.StatusOK, p, "", nil)
}

// MyPurchases lists the caller's purchases with their courses.
func (h *Handler) MyPurchases(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	purchases, err := ListForUser(h.db, actor.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list purchases", err)
		return
	}

	response.Success(c, http.StatusOK, purchases, "", nil)
}

// StripeWebhook verifies the gateway signature over the raw body and applies
// the event. The endpoint is safe to call repeatedly with the same event.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "failed to read webhook body", err)
		return
	}

	event, err := stripe.ParseWebhook(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "webhook verification failed", err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "stripe webhook received",
		slog.String("event_type", event.Type),
		slog.String("event_id", event.ID))

	if err := h.service.HandleWebhookEvent(c.Request.Context(), event); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "webhook processing failed", err)
		return
	}

	response.Success(c, http.StatusOK, nil, "", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrCourseNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrAlreadyPurchased):
		response.ErrorWithLog(h.logger, c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, ErrPaymentNotVerified), errors.Is(err, ErrInvalidIntentID):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, stripe.ErrGatewayUnavailable):
		response.ErrorWithLog(h.logger, c, http.StatusBadGateway, "payment gateway unavailable", err)
	default:
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, fallback, err)
	}
}
