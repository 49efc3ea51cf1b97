package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fleet-safety/internal/api/middleware"
	"fleet-safety/internal/services"
	"fleet-safety/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

type EmergencyHandler struct {
	emergencyService *services.EmergencyService
	uploadDir        string
	now              func() time.Time
}

// NewEmergencyHandler stores uploaded videos in uploadDir. An empty
// uploadDir rejects video uploads.
func NewEmergencyHandler(emergencyService *services.EmergencyService, uploadDir string) *EmergencyHandler {
	return &EmergencyHandler{
		emergencyService: emergencyService,
		uploadDir:        uploadDir,
		now:              time.Now,
	}
}

// Trigger accepts JSON or a multipart form with an optional video. A new
// emergency answers 201; a replay inside the dedup window answers 200.
func (h *EmergencyHandler) Trigger(c *gin.Context) {
	var (
		req services.TriggerRequest
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err = h.bindMultipart(c)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if trip, ok := middleware.CurrentTrip(c); ok {
		if !claim(&req.DriverNumber, trip.DriverNumber) || !claim(&req.VehicleNumber, trip.VehicleNumber) {
			utils.ErrorResponse(c, http.StatusForbidden, "Trip credentials do not match this driver and vehicle", nil)
			return
		}
	}

	result, err := h.emergencyService.Trigger(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to raise emergency", err)
		return
	}

	if result.Deduplicated {
		utils.SuccessResponse(c, http.StatusOK, "Emergency already active", result)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Emergency raised successfully", result)
}

// claim fills an omitted field from the trip and reports whether a given
// one agrees with it.
func claim(field *string, fromTrip string) bool {
	value := strings.TrimSpace(*field)
	if value == "" {
		*field = fromTrip
		return true
	}
	return value == fromTrip
}

func (h *EmergencyHandler) bindMultipart(c *gin.Context) (services.TriggerRequest, error) {
	req := services.TriggerRequest{
		DriverNumber:  c.PostForm("driverNumber"),
		VehicleNumber: c.PostForm("vehicleNumber"),
		VideoRef:      c.PostForm("videoRef"),
	}

	lat, lng, err := formLocation(c)
	if err != nil {
		return req, err
	}
	req.Latitude, req.Longitude = lat, lng

	if _, err := c.FormFile("video"); err == nil {
		ref, err := h.saveVideo(c)
		if err != nil {
			return req, err
		}
		req.VideoRef = ref
	}
	return req, nil
}

// formLocation reads latitude/longitude fields or a "location" JSON field.
// Missing values stay nil so the service reports them.
func formLocation(c *gin.Context) (*float64, *float64, error) {
	if raw := c.PostForm("location"); raw != "" {
		var loc struct {
			Lat       *float64 `json:"lat"`
			Lng       *float64 `json:"lng"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			return nil, nil, fmt.Errorf("location must be JSON: %w", err)
		}
		if loc.Lat != nil || loc.Lng != nil {
			return loc.Lat, loc.Lng, nil
		}
		return loc.Latitude, loc.Longitude, nil
	}

	lat, err := optionalFloat(c.PostForm("latitude"), "latitude")
	if err != nil {
		return nil, nil, err
	}
	lng, err := optionalFloat(c.PostForm("longitude"), "longitude")
	if err != nil {
		return nil, nil, err
	}
	return lat, lng, nil
}

func optionalFloat(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", field)
	}
	return &v, nil
}

func (h *EmergencyHandler) saveVideo(c *gin.Context) (string, error) {
	if h.uploadDir == "" {
		return "", fmt.Errorf("video uploads are disabled")
	}
	file, err := c.FormFile("video")
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(file.Filename)
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	name := fmt.Sprintf("emergency-%d-%s%s", h.now().UnixMilli(), uuid.NewString(), strings.ToLower(ext))

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare upload dir: %w", err)
	}
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		return "", fmt.Errorf("failed to store video: %w", err)
	}
	return "/uploads/" + name, nil
}

func (h *EmergencyHandler) Acknowledge(c *gin.Context) {
	emergency, err := h.emergencyService.Acknowledge(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to acknowledge emergency", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Emergency acknowledged successfully", emergency)
}

func (h *EmergencyHandler) GetEmergencies(c *gin.Context) {
	list, err := h.emergencyService.ListEmergencies(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to retrieve emergencies", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Emergencies retrieved successfully", list)
}

func (h *EmergencyHandler) GetEmergency(c *gin.Context) {
	emergency, err := h.emergencyService.GetEmergency(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to retrieve emergency", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Emergency retrieved successfully", emergency)
}

func (h *EmergencyHandler) GetFacilities(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "latitude must be a number", nil)
		return
	}
	lng, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "longitude must be a number", nil)
		return
	}

	facilities, err := h.emergencyService.NearbyFacilities(lat, lng)
	if err != nil {
		respondError(c, "Failed to resolve facilities", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Facilities retrieved successfully", facilities)
}
