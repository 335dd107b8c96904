package course

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/middleware"
	"github.com/coursemarket/server-go/pkg/cache"
	"github.com/coursemarket/server-go/pkg/pagination"
	"github.com/coursemarket/server-go/pkg/request"
	"github.com/coursemarket/server-go/pkg/response"
	"github.com/coursemarket/server-go/pkg/types"
)

const (
	catalogVersionKey = "courses:catalog:ver"
	catalogTTL        = 5 * time.Minute
)

// Handler processes course HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	cache  cache.Client
}

// NewHandler constructs a course handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, cacheClient cache.Client) *Handler {
	return &Handler{db: db, logger: logger, cache: cacheClient}
}

type catalogPage struct {
	Courses    []Course            `json:"courses"`
	Pagination pagination.Metadata `json:"pagination"`
}

// List returns the public catalog of active courses. Pages are cached under a
// version key that mutations bump, so stale pages age out without scans.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)
	keyword := c.Query("search")

	cacheKey := h.catalogCacheKey(c, params, keyword)
	if cacheKey != "" {
		var page catalogPage
		if err := h.cache.GetJSON(c.Request.Context(), cacheKey, &page); err == nil {
			response.Success(c, http.StatusOK, page.Courses, "", page.Pagination)
			return
		}
	}

	courses, total, err := List(h.db, ListFilters{Keyword: keyword, ActiveOnly: true}, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list courses", err)
		return
	}

	meta := pagination.MetadataFrom(total, params)
	if cacheKey != "" {
		if err := h.cache.SetJSON(c.Request.Context(), cacheKey, catalogPage{Courses: courses, Pagination: meta}, catalogTTL); err != nil {
			h.logger.Warn("catalog cache write failed", slog.String("error", err.Error()))
		}
	}

	response.Success(c, http.StatusOK, courses, "", meta)
}

// GetByID fetches a single course.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := parseID(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	crs, err := Get(h.db, id)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	response.Success(c, http.StatusOK, crs, "", nil)
}

// Mine lists the courses created by the authenticated instructor.
func (h *Handler) Mine(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	courses, err := ListByInstructor(h.db, actor.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list courses", err)
		return
	}

	response.Success(c, http.StatusOK, courses, "", nil)
}

// Create inserts a new course owned by the calling instructor.
func (h *Handler) Create(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req struct {
		Title       string  `json:"title" binding:"required"`
		Description string  `json:"description" binding:"required"`
		Price       float64 `json:"price"`
		ImageURL    *string `json:"imageUrl"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course payload", err)
		return
	}

	crs, err := Create(h.db, CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Price:        types.NewMoney(req.Price),
		InstructorID: actor.ID,
		ImageURL:     req.ImageURL,
	})
	if err != nil {
		h.respondError(c, err, "failed to create course")
		return
	}

	h.bumpCatalogVersion(c)
	response.Created(c, crs, "")
}

// Update modifies an existing course. Only the owning instructor or an admin
// may mutate a course.
func (h *Handler) Update(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	id, err := parseID(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	crs, err := Get(h.db, id)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	if !CanMutate(actor.ID, actor.Role, crs) {
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, ErrForbidden.Error(), nil)
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course payload", err)
		return
	}

	input := UpdateInput{}

	if value, ok := body["title"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "title must be a string", err)
			return
		}
		input.Title = &str
	}

	if value, ok := body["description"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "description must be a string", err)
			return
		}
		input.Description = &str
	}

	if value, ok := body["price"]; ok {
		val, err := request.ReadFloat(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "price must be a number", err)
			return
		}
		m := types.NewMoney(val)
		input.Price = &m
	}

	if value, ok := body["imageUrl"]; ok {
		input.ImageURLProvided = true
		if value != nil {
			str, err := request.ReadString(value)
			if err != nil {
				response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "imageUrl must be a string", err)
				return
			}
			input.ImageURL = &str
		}
	}

	if value, ok := body["isActive"]; ok {
		active, err := request.ReadBool(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "isActive must be a boolean", err)
			return
		}
		input.Active = &active
	}

	updated, err := Update(h.db, id, input)
	if err != nil {
		h.respondError(c, err, "failed to update course")
		return
	}

	h.bumpCatalogVersion(c)
	response.Success(c, http.StatusOK, updated, "", nil)
}

// Deactivate soft-deletes a course by clearing the active flag.
func (h *Handler) Deactivate(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	id, err := parseID(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	crs, err := Get(h.db, id)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	if !CanMutate(actor.ID, actor.Role, crs) {
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, ErrForbidden.Error(), nil)
		return
	}

	updated, err := Deactivate(h.db, id)
	if err != nil {
		h.respondError(c, err, "failed to deactivate course")
		return
	}

	h.bumpCatalogVersion(c)
	response.Success(c, http.StatusOK, updated, "course deactivated", nil)
}

func (h *Handler) catalogCacheKey(c *gin.Context, params pagination.Params, keyword string) string {
	version, err := h.cache.Get(c.Request.Context(), catalogVersionKey)
	if err != nil {
		version = "0"
	}
	return fmt.Sprintf("courses:catalog:v%s:p%d:l%d:k%s", version, params.Page, params.Limit, keyword)
}

func (h *Handler) bumpCatalogVersion(c *gin.Context) {
	if _, err := h.cache.Increment(c.Request.Context(), catalogVersionKey); err != nil {
		h.logger.Warn("catalog cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrCourseNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrNegativePrice):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	default:
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, fallback, err)
	}
}

func parseID(raw string) (uint, error) {
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}
