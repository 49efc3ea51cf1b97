package handlers

import (
	"errors"
	"log"
	"net/http"

	"fleet-safety/internal/services"
	"fleet-safety/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP status codes. Unexpected
// failures are logged and reported without detail.
func respondError(c *gin.Context, message string, err error) {
	var (
		validation *services.ValidationError
		notFound   *services.NotFoundError
		conflict   *services.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		utils.ErrorResponse(c, http.StatusBadRequest, message, err)
	case errors.As(err, &notFound):
		utils.ErrorResponse(c, http.StatusNotFound, message, err)
	case errors.As(err, &conflict):
		utils.ErrorResponse(c, http.StatusConflict, message, err)
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.ErrorResponse(c, http.StatusUnauthorized, message, err)
	default:
		log.Printf("%s: %v", message, err)
		utils.ErrorResponse(c, http.StatusInternalServerError, message, errors.New("internal server error"))
	}
}
