package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer          = "fleet-safety"
	defaultSecret   = "default-secret-key-change-this-in-production"
	defaultLifetime = 24 * time.Hour
)

type JWTUtil struct {
	secretKey []byte
	expiry    time.Duration
}

type Claims struct {
	ManagerID string `json:"manager_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTUtil builds a signer; an empty secret or unparsable expiry falls back to defaults.
func NewJWTUtil(secret, expiry string) *JWTUtil {
	if secret == "" {
		secret = defaultSecret
	}

	lifetime, err := time.ParseDuration(expiry)
	if err != nil || lifetime <= 0 {
		lifetime = defaultLifetime
	}

	return &JWTUtil{
		secretKey: []byte(secret),
		expiry:    lifetime,
	}
}

func (j *JWTUtil) GenerateToken(managerID, username, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		ManagerID: managerID,
		Username:  username,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   managerID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTUtil) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// RefreshToken reissues a token that is within an hour of expiry.
func (j *JWTUtil) RefreshToken(tokenString string) (string, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	if time.Until(claims.ExpiresAt.Time) > time.Hour {
		return tokenString, nil
	}

	return j.GenerateToken(claims.ManagerID, claims.Username, claims.Role)
}
