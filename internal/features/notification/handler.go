package notification

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/middleware"
	"github.com/coursemarket/server-go/pkg/pagination"
	"github.com/coursemarket/server-go/pkg/response"
)

// Handler processes notification HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler constructs a notification handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// List returns the caller's notifications newest first.
func (h *Handler) List(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	params := pagination.Extract(c)

	notifications, total, err := ListForUser(h.db, actor.ID, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list notifications", err)
		return
	}

	response.Success(c, http.StatusOK, notifications, "", pagination.MetadataFrom(total, params))
}

// UnreadCount returns the caller's unread notification count.
func (h *Handler) UnreadCount(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	count, err := UnreadCount(h.db, actor.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to count notifications", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unreadCount": count}, "", nil)
}

// MarkRead flags one of the caller's notifications as read.
func (h *Handler) MarkRead(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	raw := c.Param("notificationId")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid notification id", err)
		return
	}

	n, err := MarkRead(h.db, actor.ID, uint(id))
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to update notification", err)
		return
	}

	response.Success(c, http.StatusOK, n, "", nil)
}

// MarkAllRead flags every unread notification of the caller as read.
func (h *Handler) MarkAllRead(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	updated, err := MarkAllRead(h.db, actor.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to update notifications", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated}, "notifications marked as read", nil)
}
