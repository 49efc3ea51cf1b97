package handlers

import (
	"net/http"

	"fleet-safety/internal/models"
	"fleet-safety/internal/services"
	"fleet-safety/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FleetHandler serves the driver and vehicle reference data.
type FleetHandler struct {
	fleetService *services.FleetService
	validator    *validator.Validate
}

func NewFleetHandler(fleetService *services.FleetService) *FleetHandler {
	return &FleetHandler{
		fleetService: fleetService,
		validator:    validator.New(),
	}
}

func (h *FleetHandler) CreateDriver(c *gin.Context) {
	var req services.CreateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	driver, err := h.fleetService.CreateDriver(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to create driver", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Driver created successfully", driver)
}

func (h *FleetHandler) GetDrivers(c *gin.Context) {
	drivers, err := h.fleetService.ListDrivers(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to retrieve drivers", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Drivers retrieved successfully", drivers)
}

func (h *FleetHandler) GetDriver(c *gin.Context) {
	driver, err := h.fleetService.GetDriver(c.Request.Context(), c.Param("driverNumber"))
	if err != nil {
		respondError(c, "Failed to retrieve driver", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Driver retrieved successfully", driver)
}

// UpdateDriver changes contact fields only.
func (h *FleetHandler) UpdateDriver(c *gin.Context) {
	var update models.DriverContactUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	driver, err := h.fleetService.UpdateDriverContact(c.Request.Context(), c.Param("driverNumber"), update)
	if err != nil {
		respondError(c, "Failed to update driver", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Driver updated successfully", driver)
}

func (h *FleetHandler) CreateVehicle(c *gin.Context) {
	var req services.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	vehicle, err := h.fleetService.CreateVehicle(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to create vehicle", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Vehicle created successfully", vehicle)
}

func (h *FleetHandler) GetVehicles(c *gin.Context) {
	vehicles, err := h.fleetService.ListVehicles(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to retrieve vehicles", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicles retrieved successfully", vehicles)
}

func (h *FleetHandler) GetVehicle(c *gin.Context) {
	vehicle, err := h.fleetService.GetVehicle(c.Request.Context(), c.Param("vehicleNumber"))
	if err != nil {
		respondError(c, "Failed to retrieve vehicle", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicle retrieved successfully", vehicle)
}

// UpdateVehicle changes telemetry fields only.
func (h *FleetHandler) UpdateVehicle(c *gin.Context) {
	var update models.VehicleTelemetryUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	vehicle, err := h.fleetService.UpdateVehicleTelemetry(c.Request.Context(), c.Param("vehicleNumber"), update)
	if err != nil {
		respondError(c, "Failed to update vehicle", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicle updated successfully", vehicle)
}
