package services

import (
	"errors"
	"fmt"

	"fleet-safety/internal/repository"
)

// ErrInvalidCredentials is returned for any failed login, without saying which part was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// DispatchFailure is logged when a notification could not be delivered. It is
// never returned to callers.
type DispatchFailure struct {
	Phone  string
	Reason string
}

func (e *DispatchFailure) Error() string {
	return fmt.Sprintf("notification to %s failed: %s", e.Phone, e.Reason)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// lookupErr maps a store miss onto NotFoundError and passes other failures through.
func lookupErr(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return fmt.Errorf("failed to load %s %s: %w", resource, id, err)
}
