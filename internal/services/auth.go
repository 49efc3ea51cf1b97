package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fleet-safety/internal/models"
	"fleet-safety/internal/repository"
	"fleet-safety/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
)

// AuthService authenticates managers and the police/hospital dashboard accounts.
type AuthService struct {
	managers repository.ManagerStore
	jwtUtil  *jwt.JWTUtil
	hashCost int
}

func NewAuthService(managers repository.ManagerStore, jwtUtil *jwt.JWTUtil) *AuthService {
	return &AuthService{
		managers: managers,
		jwtUtil:  jwtUtil,
		hashCost: bcrypt.DefaultCost,
	}
}

func (s *AuthService) SetHashCost(cost int) {
	s.hashCost = cost
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Manager *models.AuthManager `json:"manager"`
	Token   string              `json:"token"`
}

type RegisterManagerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=manager police hospital"`
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	manager, err := s.managers.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(manager.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.managers.UpdateLastLogin(ctx, manager.ID.Hex(), time.Now()); err != nil {
		log.Printf("Failed to record last login for %s: %v", manager.Username, err)
	}

	token, err := s.jwtUtil.GenerateToken(manager.ID.Hex(), manager.Username, manager.Role)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &LoginResponse{Manager: toAuthManager(manager), Token: token}, nil
}

func (s *AuthService) Register(ctx context.Context, req *RegisterManagerRequest) (*models.AuthManager, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	manager, err := s.managers.Create(ctx, &models.Manager{
		Username:  req.Username,
		Name:      req.Name,
		Password:  string(hash),
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, &ConflictError{Message: fmt.Sprintf("username %s is taken", req.Username)}
	}
	if err != nil {
		return nil, err
	}
	return toAuthManager(manager), nil
}

// EnsureManager creates the account unless the username already exists.
func (s *AuthService) EnsureManager(ctx context.Context, req *RegisterManagerRequest) error {
	if _, err := s.managers.FindByUsername(ctx, req.Username); err == nil {
		return nil
	}
	_, err := s.Register(ctx, req)
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}

func (s *AuthService) ValidateToken(tokenString string) (*models.AuthManager, error) {
	claims, err := s.jwtUtil.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &models.AuthManager{
		ID:       claims.ManagerID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

func (s *AuthService) RefreshToken(tokenString string) (string, error) {
	return s.jwtUtil.RefreshToken(tokenString)
}

func (s *AuthService) GetProfile(ctx context.Context, managerID string) (*models.AuthManager, error) {
	manager, err := s.managers.FindByID(ctx, managerID)
	if err != nil {
		return nil, lookupErr(err, "manager", managerID)
	}
	return toAuthManager(manager), nil
}

func toAuthManager(m *models.Manager) *models.AuthManager {
	return &models.AuthManager{
		ID:       m.ID.Hex(),
		Username: m.Username,
		Name:     m.Name,
		Role:     m.Role,
	}
}
