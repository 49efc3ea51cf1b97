package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fleet-safety/internal/models"
	"fleet-safety/internal/repository"
	"fleet-safety/pkg/notify"

	"golang.org/x/crypto/bcrypt"
)

const notifyTimeout = 15 * time.Second

type TripService struct {
	trips      repository.TripStore
	drivers    repository.DriverStore
	vehicles   repository.VehicleStore
	dispatcher notify.Dispatcher
	issuer     CredentialIssuer
	loginURL   string
	hashCost   int
	now        func() time.Time

	// compared against when a username is unknown so both paths cost a bcrypt check
	dummyHash []byte
}

func NewTripService(trips repository.TripStore, drivers repository.DriverStore, vehicles repository.VehicleStore, dispatcher notify.Dispatcher, baseURL string) *TripService {
	s := &TripService{
		trips:      trips,
		drivers:    drivers,
		vehicles:   vehicles,
		dispatcher: dispatcher,
		issuer:     RandomCredentialIssuer{},
		loginURL:   strings.TrimRight(baseURL, "/") + "/login/driver",
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused-trip-password"), s.hashCost)
	return s
}

// SetCredentialIssuer replaces the random credential source.
func (s *TripService) SetCredentialIssuer(issuer CredentialIssuer) {
	s.issuer = issuer
}

// SetHashCost sets the bcrypt cost used for temporary passwords.
func (s *TripService) SetHashCost(cost int) {
	s.hashCost = cost
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused-trip-password"), cost)
}

func (s *TripService) SetClock(now func() time.Time) {
	s.now = now
}

type AssignTripRequest struct {
	DriverNumber  string `json:"driverNumber" validate:"required"`
	VehicleNumber string `json:"vehicleNumber" validate:"required"`
}

// AssignTrip pairs a driver with a vehicle and texts the driver a one-time login.
// The trip is kept even when the text cannot be delivered.
func (s *TripService) AssignTrip(ctx context.Context, req *AssignTripRequest) (*models.TripAssignment, error) {
	driverNumber := strings.TrimSpace(req.DriverNumber)
	vehicleNumber := strings.TrimSpace(req.VehicleNumber)
	if driverNumber == "" {
		return nil, invalid("driverNumber", "is required")
	}
	if vehicleNumber == "" {
		return nil, invalid("vehicleNumber", "is required")
	}

	driver, err := s.drivers.FindByNumber(ctx, driverNumber)
	if err != nil {
		return nil, lookupErr(err, "driver", driverNumber)
	}
	if _, err := s.vehicles.FindByNumber(ctx, vehicleNumber); err != nil {
		return nil, lookupErr(err, "vehicle", vehicleNumber)
	}

	if err := s.ensureFree(ctx, driverNumber, vehicleNumber); err != nil {
		return nil, err
	}

	username, password, err := s.issuer.Issue()
	if err != nil {
		return nil, fmt.Errorf("failed to issue trip credentials: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash trip password: %w", err)
	}

	trip, err := s.trips.Create(ctx, &models.Trip{
		DriverNumber:          driverNumber,
		VehicleNumber:         vehicleNumber,
		TemporaryUsername:     username,
		TemporaryPasswordHash: string(hash),
		Status:                models.TripStatusActive,
		CreatedAt:             s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	log.Printf("Trip %s assigned: driver=%s vehicle=%s", trip.ID.Hex(), driverNumber, vehicleNumber)

	message := notify.TripAssignmentMessage(vehicleNumber, driverNumber, username, password, s.loginURL)
	sent := s.notify(ctx, driver.Phone, message)

	return &models.TripAssignment{
		Trip: trip,
		Credentials: models.TripCredentials{
			TemporaryUsername: username,
			TemporaryPassword: password,
			LoginURL:          s.loginURL,
		},
		SMSSent: sent,
	}, nil
}

func (s *TripService) ensureFree(ctx context.Context, driverNumber, vehicleNumber string) error {
	if existing, err := s.trips.FindActiveByDriver(ctx, driverNumber); err == nil {
		return &ConflictError{Message: fmt.Sprintf("driver %s already has an active trip (%s)", driverNumber, existing.ID.Hex())}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check driver trips: %w", err)
	}

	if existing, err := s.trips.FindActiveByVehicle(ctx, vehicleNumber); err == nil {
		return &ConflictError{Message: fmt.Sprintf("vehicle %s already has an active trip (%s)", vehicleNumber, existing.ID.Hex())}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check vehicle trips: %w", err)
	}
	return nil
}

func (s *TripService) CompleteTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, _, err := s.finish(ctx, tripID)
	return trip, err
}

// CancelTrip ends the trip like CompleteTrip and additionally tells the driver.
func (s *TripService) CancelTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, wasActive, err := s.finish(ctx, tripID)
	if err != nil || !wasActive {
		return trip, err
	}

	driver, err := s.drivers.FindByNumber(ctx, trip.DriverNumber)
	if err != nil {
		log.Printf("Trip %s cancelled but driver %s could not be loaded for notice: %v", tripID, trip.DriverNumber, err)
		return trip, nil
	}
	s.notify(ctx, driver.Phone, notify.TripCancelledMessage(trip.VehicleNumber, trip.DriverNumber))
	return trip, nil
}

func (s *TripService) finish(ctx context.Context, tripID string) (*models.Trip, bool, error) {
	current, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, false, lookupErr(err, "trip", tripID)
	}
	if !current.IsActive() {
		return current, false, nil
	}

	trip, err := s.trips.Complete(ctx, tripID, s.now())
	if err != nil {
		return nil, false, lookupErr(err, "trip", tripID)
	}
	log.Printf("Trip %s completed", tripID)
	return trip, true, nil
}

// ResolveCredentials authenticates a device. Only an ACTIVE trip whose
// username and password both match exactly is returned.
func (s *TripService) ResolveCredentials(ctx context.Context, username, password string) (*models.Trip, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	trip, err := s.trips.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to resolve trip credentials: %w", err)
	}

	userOK := subtle.ConstantTimeCompare([]byte(trip.TemporaryUsername), []byte(username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(trip.TemporaryPasswordHash), []byte(password)) == nil
	if !userOK || !passOK || !trip.IsActive() {
		return nil, ErrInvalidCredentials
	}
	return trip, nil
}

func (s *TripService) ListTrips(ctx context.Context) ([]*models.Trip, error) {
	return s.trips.FindAll(ctx)
}

func (s *TripService) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, lookupErr(err, "trip", tripID)
	}
	return trip, nil
}

func (s *TripService) notify(ctx context.Context, phone, message string) bool {
	if s.dispatcher == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	res := s.dispatcher.Send(ctx, phone, message)
	if !res.Success {
		log.Printf("Trip SMS: %v", &DispatchFailure{Phone: phone, Reason: res.Error})
		return false
	}
	return true
}
