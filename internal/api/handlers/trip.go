package handlers

import (
	"net/http"

	"fleet-safety/internal/services"
	"fleet-safety/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type TripHandler struct {
	tripService *services.TripService
	validator   *validator.Validate
}

func NewTripHandler(tripService *services.TripService) *TripHandler {
	return &TripHandler{
		tripService: tripService,
		validator:   validator.New(),
	}
}

type DriverLoginRequest struct {
	TemporaryUsername string `json:"temporaryUsername" validate:"required"`
	TemporaryPassword string `json:"temporaryPassword" validate:"required"`
}

// AssignTrip creates a trip and returns the one-time credentials.
func (h *TripHandler) AssignTrip(c *gin.Context) {
	var req services.AssignTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	assignment, err := h.tripService.AssignTrip(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to assign trip", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Trip assigned successfully", assignment)
}

func (h *TripHandler) CompleteTrip(c *gin.Context) {
	trip, err := h.tripService.CompleteTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to complete trip", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip completed successfully", trip)
}

func (h *TripHandler) CancelTrip(c *gin.Context) {
	trip, err := h.tripService.CancelTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to cancel trip", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip cancelled successfully", trip)
}

func (h *TripHandler) GetTrips(c *gin.Context) {
	trips, err := h.tripService.ListTrips(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to retrieve trips", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trips retrieved successfully", trips)
}

func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to retrieve trip", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip retrieved successfully", trip)
}

// CurrentTrip resolves the device's active trip from query credentials.
func (h *TripHandler) CurrentTrip(c *gin.Context) {
	username := c.Query("temporaryUsername")
	if username == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "temporaryUsername is required", nil)
		return
	}

	trip, err := h.tripService.ResolveCredentials(c.Request.Context(), username, c.Query("temporaryPassword"))
	if err != nil {
		respondError(c, "No active trip for these credentials", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip resolved successfully", trip)
}

func (h *TripHandler) DriverLogin(c *gin.Context) {
	var req DriverLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	trip, err := h.tripService.ResolveCredentials(c.Request.Context(), req.TemporaryUsername, req.TemporaryPassword)
	if err != nil {
		respondError(c, "Authentication failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Login successful", trip)
}
