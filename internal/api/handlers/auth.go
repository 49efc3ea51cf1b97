package handlers

import (
	"net/http"
	"strings"

	"fleet-safety/internal/api/middleware"
	"fleet-safety/internal/services"
	"fleet-safety/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type AuthHandler struct {
	authService *services.AuthService
	validator   *validator.Validate
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator.New(),
	}
}

// Login handles manager, police and hospital authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	response, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Authentication failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Login successful", response)
}

// RefreshToken re-issues the bearer token the request was authenticated with.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))

	refreshed, err := h.authService.RefreshToken(token)
	if err != nil {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Token refresh failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Token refreshed successfully", gin.H{"token": refreshed})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	manager, ok := middleware.CurrentManager(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	profile, err := h.authService.GetProfile(c.Request.Context(), manager.ID)
	if err != nil {
		respondError(c, "Failed to load profile", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile retrieved successfully", profile)
}

// Register creates a manager, police or hospital account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	manager, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to create account", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Account created successfully", manager)
}
