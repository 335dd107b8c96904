package livelesson

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/coursemarket/server-go/internal/middleware"
	"github.com/coursemarket/server-go/internal/services/matching"
	"github.com/coursemarket/server-go/pkg/request"
	"github.com/coursemarket/server-go/pkg/response"
	"github.com/coursemarket/server-go/pkg/types"
)

// Handler processes live lesson HTTP requests.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a live lesson handler instance.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// CreateRequest submits a new lesson request for the caller and triggers
// instructor dispatch.
func (h *Handler) CreateRequest(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req struct {
		Topic         string  `json:"topic" binding:"required"`
		Description   string  `json:"description"`
		PreferredDate *string `json:"preferredDate"`
		Duration      int     `json:"duration" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson request payload", err)
		return
	}

	preferredDate, err := request.ParseRFC3339Ptr(req.PreferredDate)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "preferredDate must be RFC3339", err)
		return
	}

	created, err := h.service.CreateRequest(c.Request.Context(), CreateRequestInput{
		UserID:        actor.ID,
		Topic:         req.Topic,
		Description:   req.Description,
		PreferredDate: preferredDate,
		Duration:      req.Duration,
	})
	if err != nil {
		// The pending row outlives a failed match, so the client still gets
		// the created request back together with an explanatory message.
		if errors.Is(err, matching.ErrNoInstructorsAvailable) {
			response.Created(c, created, "request created, no instructors available yet")
			return
		}
		h.respondError(c, err, "failed to create lesson request")
		return
	}

	response.Created(c, created, "")
}

// MyRequests lists the caller's lesson requests.
func (h *Handler) MyRequests(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	requests, err := h.service.ListForRequester(c.Request.Context(), actor.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list lesson requests", err)
		return
	}

	response.Success(c, http.StatusOK, requests, "", nil)
}

// AssignedLessons lists the lessons assigned to the calling instructor.
func (h *Handler) AssignedLessons(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	assignments, err := h.service.ListAssignedTo(c.Request.Context(), actor.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list assigned lessons", err)
		return
	}

	response.Success(c, http.StatusOK, assignments, "", nil)
}

// UpdateStatus changes the status of a request and its assignment together.
func (h *Handler) UpdateStatus(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	raw := c.Param("requestId")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid request id", err)
		return
	}

	var req struct {
		Status types.RequestStatus `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid status payload", err)
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), uint(id), actor.ID, actor.Role, req.Status)
	if err != nil {
		h.respondError(c, err, "failed to update lesson request")
		return
	}

	response.Success(c, http.StatusOK, updated, "", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrForbidden):
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, err.Error(), err)
	case errors.Is(err, ErrTopicRequired), errors.Is(err, ErrDescriptionRequired),
		errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrInvalidStatus):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	default:
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, fallback, err)
	}
}
