package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"fleet-safety/internal/models"
	"fleet-safety/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	managerKey = "manager"
	tripKey    = "trip"
)

// TokenValidator turns a bearer token into the manager it was issued to.
type TokenValidator interface {
	ValidateToken(token string) (*models.AuthManager, error)
}

// CredentialResolver maps temporary trip credentials onto an active trip.
type CredentialResolver interface {
	ResolveCredentials(ctx context.Context, username, password string) (*models.Trip, error)
}

func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// accept both "Bearer <token>" and a bare token
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		manager, err := validator.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(managerKey, manager)
		c.Set("manager_id", manager.ID)
		c.Set("role", manager.Role)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		manager, ok := CurrentManager(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		for _, role := range roles {
			if manager.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}

// DeviceAuth authenticates in-vehicle devices with the trip's temporary
// credentials sent as HTTP Basic auth.
func DeviceAuth(resolver CredentialResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="fleet-safety"`)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Trip credentials required"})
			c.Abort()
			return
		}

		trip, err := resolver.ResolveCredentials(c.Request.Context(), username, password)
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid trip credentials"})
			c.Abort()
			return
		}
		if err != nil {
			log.Printf("Failed to resolve trip credentials: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}

		c.Set(tripKey, trip)
		c.Next()
	}
}

func CurrentManager(c *gin.Context) (*models.AuthManager, bool) {
	v, ok := c.Get(managerKey)
	if !ok {
		return nil, false
	}
	manager, ok := v.(*models.AuthManager)
	return manager, ok
}

func CurrentTrip(c *gin.Context) (*models.Trip, bool) {
	v, ok := c.Get(tripKey)
	if !ok {
		return nil, false
	}
	trip, ok := v.(*models.Trip)
	return trip, ok
}
