package auth

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/user"
	"github.com/coursemarket/server-go/internal/middleware"
	"github.com/coursemarket/server-go/pkg/response"
	"github.com/coursemarket/server-go/pkg/types"
)

// Handler processes authentication HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	cfg    TokenConfig
}

// NewHandler constructs an auth handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, cfg TokenConfig) *Handler {
	return &Handler{db: db, logger: logger, cfg: cfg}
}

// Register creates a learner or instructor account and signs the user in.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email     string         `json:"email" binding:"required"`
		Password  string         `json:"password" binding:"required"`
		FirstName string         `json:"firstName" binding:"required"`
		LastName  string         `json:"lastName" binding:"required"`
		Role      types.UserRole `json:"role"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid registration payload", err)
		return
	}

	result, err := Register(h.db, RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}, h.cfg)
	if err != nil {
		h.respondError(c, err, "registration failed")
		return
	}

	response.Created(c, result, "account created")
}

// Login authenticates a user.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid login payload", err)
		return
	}

	result, err := Login(h.db, LoginInput{Email: req.Email, Password: req.Password}, h.cfg)
	if err != nil {
		h.respondError(c, err, "login failed")
		return
	}

	response.Success(c, http.StatusOK, result, "", nil)
}

// Logout revokes the caller's refresh token.
func (h *Handler) Logout(c *gin.Context) {
	token := ExtractToken(c.GetHeader("Authorization"))
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "No token provided", nil)
		return
	}

	if err := Logout(h.db, token, h.cfg); err != nil {
		h.respondError(c, err, "logout failed")
		return
	}

	response.Success(c, http.StatusOK, nil, "logged out", nil)
}

// Refresh rotates the caller's token pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid refresh payload", err)
		return
	}

	pair, err := RefreshAccessToken(h.db, req.RefreshToken, h.cfg)
	if err != nil {
		h.respondError(c, err, "token refresh failed")
		return
	}

	response.Success(c, http.StatusOK, pair, "", nil)
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *gin.Context) {
	actor, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	usr, err := user.Get(h.db, actor.ID)
	if err != nil {
		h.respondError(c, err, "failed to load profile")
		return
	}

	response.Success(c, http.StatusOK, usr, "", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, user.ErrInvalidPassword),
		errors.Is(err, user.ErrInvalidRole):
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, user.ErrEmailTaken):
		response.ErrorWithLog(h.logger, c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, err.Error(), err)
	case errors.Is(err, user.ErrUserNotFound):
		response.ErrorWithLog(h.logger, c, http.StatusNotFound, err.Error(), err)
	default:
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, fallback, err)
	}
}
