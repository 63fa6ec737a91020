package handler

import (
	"net/http"

	"receivables/internal/auth"
	"receivables/internal/middleware"
	"receivables/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	tokens      *auth.TokenManager
	loginLimit  *middleware.IPRateLimiter
}

// NewAuthHandler sets up the routing dependencies for auth endpoints
func NewAuthHandler(authService service.AuthService, tokens *auth.TokenManager, loginLimit *middleware.IPRateLimiter) *AuthHandler {
	return &AuthHandler{authService: authService, tokens: tokens, loginLimit: loginLimit}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", middleware.RateLimit(h.loginLimit), h.Login)
		authGroup.GET("/me", middleware.RequireAuth(h.tokens), h.GetMe)
	}
}

// Login authenticates the operator
// @Summary      Login
// @Description  Authenticates a user by username and password, returning a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest   true  "Login Credentials"
// @Success      200      {object}  service.LoginResponse
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// GetMe returns the operator the bearer token was issued to
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  service.UserResponse
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, err := h.authService.GetUserByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
