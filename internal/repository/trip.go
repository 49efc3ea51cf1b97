package repository

import (
	"context"
	"time"

	"fleet-safety/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TripRepository struct {
	collection *mongo.Collection
}

func NewTripRepository(db *mongo.Database) *TripRepository {
	return &TripRepository{
		collection: db.Collection("trips"),
	}
}

func (r *TripRepository) Create(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	id, err := insertOne(ctx, r.collection, trip)
	if err != nil {
		return nil, err
	}
	trip.ID = id
	return trip, nil
}

func (r *TripRepository) FindByID(ctx context.Context, id string) (*models.Trip, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.Trip](ctx, r.collection, bson.M{"_id": oid})
}

func (r *TripRepository) FindActiveByDriver(ctx context.Context, driverNumber string) (*models.Trip, error) {
	return findOne[models.Trip](ctx, r.collection, bson.M{
		"driver_number": driverNumber,
		"status":        models.TripStatusActive,
	}, latest())
}

func (r *TripRepository) FindActiveByVehicle(ctx context.Context, vehicleNumber string) (*models.Trip, error) {
	return findOne[models.Trip](ctx, r.collection, bson.M{
		"vehicle_number": vehicleNumber,
		"status":         models.TripStatusActive,
	}, latest())
}

func (r *TripRepository) FindByUsername(ctx context.Context, username string) (*models.Trip, error) {
	return findOne[models.Trip](ctx, r.collection, bson.M{"temporary_username": username}, latest())
}

func (r *TripRepository) FindAll(ctx context.Context) ([]*models.Trip, error) {
	return findMany[models.Trip](ctx, r.collection, bson.M{}, newestFirst())
}

// Complete marks the trip COMPLETED. Completing an already completed trip
// returns it unchanged.
func (r *TripRepository) Complete(ctx context.Context, id string, at time.Time) (*models.Trip, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	qctx, cancel := withTimeout(ctx)
	defer cancel()

	var trip models.Trip
	err = r.collection.FindOneAndUpdate(
		qctx,
		bson.M{"_id": oid, "status": models.TripStatusActive},
		bson.M{"$set": bson.M{"status": models.TripStatusCompleted, "completed_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&trip)
	if err == nil {
		return &trip, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	return findOne[models.Trip](ctx, r.collection, bson.M{"_id": oid})
}
