package repository

import (
	"context"
	"time"

	"fleet-safety/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EmergencyRepository struct {
	collection *mongo.Collection
}

func NewEmergencyRepository(db *mongo.Database) *EmergencyRepository {
	return &EmergencyRepository{
		collection: db.Collection("emergencies"),
	}
}

func (r *EmergencyRepository) Create(ctx context.Context, emergency *models.Emergency) (*models.Emergency, error) {
	id, err := insertOne(ctx, r.collection, emergency)
	if err != nil {
		return nil, err
	}
	emergency.ID = id
	return emergency, nil
}

func (r *EmergencyRepository) FindByID(ctx context.Context, id string) (*models.Emergency, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.Emergency](ctx, r.collection, bson.M{"_id": oid})
}

func activePair(driverNumber, vehicleNumber string) bson.M {
	return bson.M{
		"driver_number":  driverNumber,
		"vehicle_number": vehicleNumber,
		"status":         models.EmergencyStatusActive,
	}
}

func (r *EmergencyRepository) FindLatestActive(ctx context.Context, driverNumber, vehicleNumber string) (*models.Emergency, error) {
	return findOne[models.Emergency](ctx, r.collection, activePair(driverNumber, vehicleNumber), latest())
}

func (r *EmergencyRepository) FindAll(ctx context.Context) ([]*models.Emergency, error) {
	return findMany[models.Emergency](ctx, r.collection, bson.M{}, newestFirst())
}

// Acknowledge moves an ACTIVE emergency to ACKNOWLEDGED. An already
// acknowledged record is returned as stored.
func (r *EmergencyRepository) Acknowledge(ctx context.Context, id string, at time.Time) (*models.Emergency, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	qctx, cancel := withTimeout(ctx)
	defer cancel()

	var emergency models.Emergency
	err = r.collection.FindOneAndUpdate(
		qctx,
		bson.M{"_id": oid, "status": models.EmergencyStatusActive},
		bson.M{"$set": bson.M{"status": models.EmergencyStatusAcknowledged, "acknowledged_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&emergency)
	if err == nil {
		return &emergency, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	return findOne[models.Emergency](ctx, r.collection, bson.M{"_id": oid})
}

func (r *EmergencyRepository) AcknowledgeActiveForPair(ctx context.Context, driverNumber, vehicleNumber string, at time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := r.collection.UpdateMany(
		ctx,
		activePair(driverNumber, vehicleNumber),
		bson.M{"$set": bson.M{"status": models.EmergencyStatusAcknowledged, "acknowledged_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
