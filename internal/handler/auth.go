package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"openpatrol/api/internal/config"
	"openpatrol/api/internal/middleware"
	"openpatrol/api/internal/model"
	"openpatrol/api/internal/service"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *service.AuthService
	serviceManager *service.PatrolServiceManager
	config         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, serviceManager *service.PatrolServiceManager, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		serviceManager: serviceManager,
		config:         cfg,
	}
}

// Login authenticates a user and issues a JWT
// @Summary Login
// @Description Authenticate with email and password, returns a JWT
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body model.LoginRequest true "Credentials"
// @Success 200 {object} model.LoginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := h.authService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.authService.RecordLogin(ctx, nil, req.Email, c.ClientIP(), c.Request.UserAgent(), false, err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := middleware.GenerateToken(user, h.config.JWTSecret, h.config.JWTExpiration)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	h.authService.RecordLogin(ctx, &user.ID, user.Email, c.ClientIP(), c.Request.UserAgent(), true, "")

	c.JSON(http.StatusOK, model.LoginResponse{
		Token: token,
		User:  h.userInfo(c, user),
	})
}

// GetMe returns the authenticated user
// @Summary Current user
// @Description Get the authenticated user's profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UserInfo
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, h.userInfo(c, user))
}

// userInfo builds the auth payload, resolving the service name best-effort.
func (h *AuthHandler) userInfo(c *gin.Context, user *model.User) model.UserInfo {
	info := model.UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		ServiceID: user.ServiceID,
	}
	if user.ServiceID != nil {
		info.ServiceName = h.serviceManager.Name(c.Request.Context(), *user.ServiceID)
	}
	return info
}
